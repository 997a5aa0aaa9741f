package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blingmoon/simple-goflow/internal/api"
	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <process> <username>",
	Short: "Start a process instance as a user",
	Long: `start checks that the process is enabled and that the user may instantiate it,
then creates the instance and dispatches its first work item.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		processName, username := args[0], args[1]
		skipCheck, _ := cmd.Flags().GetBool("skip-perm-check")
		if !skipCheck {
			if err := app.service.CheckStartInstancePerm(ctx, processName, username); err != nil {
				return err
			}
		}
		req := &workflow.StartProcessReq{ProcessName: processName, Username: username}
		req.Title, _ = cmd.Flags().GetString("title")
		req.Item.Type, _ = cmd.Flags().GetString("item-type")
		req.Item.ID, _ = cmd.Flags().GetString("item-id")
		req.Item.Label, _ = cmd.Flags().GetString("item-label")
		workItem, err := app.service.Start(ctx, req)
		if err != nil {
			return err
		}
		return printWorkItem(workItem)
	},
}

var permCmd = &cobra.Command{
	Use:   "perm",
	Short: "Inspect permissions",
}

var permCheckCmd = &cobra.Command{
	Use:   "check <process> <username>",
	Short: "Check whether a user may start a process",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := app.service.CheckStartInstancePerm(cmd.Context(), args[0], args[1])
		var permErr *workflow.PermissionError
		if errors.As(err, &permErr) {
			fmt.Printf("denied: %s (%s)\n", permErr.Error(), permErr.Reason)
			return err
		}
		if err != nil {
			return err
		}
		fmt.Printf("allowed: %s may start %s\n", args[1], args[0])
		return nil
	},
}

var workItemCmd = &cobra.Command{
	Use:   "workitem",
	Short: "Inspect work items",
}

var workItemShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a work item and its audit events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workItemID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.Wrapf(workflow.ErrWorkflowParamInvalid, "invalid work item id: %s", args[0])
		}
		workItem, err := app.service.GetWorkItem(cmd.Context(), workItemID)
		if err != nil {
			return err
		}
		events, err := app.service.ListWorkItemEvents(cmd.Context(), workItemID)
		if err != nil {
			return err
		}
		if isJSONOutput() {
			views := make([]*api.EventView, 0, len(events))
			for _, event := range events {
				views = append(views, api.NewEventView(event))
			}
			return printJSON(map[string]any{"work_item": api.NewWorkItemView(workItem), "events": views})
		}
		if err := printWorkItem(workItem); err != nil {
			return err
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Event", "Message", "Created At")
		for _, event := range events {
			_ = table.Append(event.ID, event.Message, event.CreatedAt)
		}
		return table.Render()
	},
}

func printWorkItem(workItem *workflow.WorkItem) error {
	view := api.NewWorkItemView(workItem)
	if isJSONOutput() {
		return printJSON(view)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Work Item", "Instance", "Activity", "User", "Status", "Pull Roles")
	_ = table.Append(view.ID, view.InstanceTitle, view.Activity, view.Username, view.Status, strings.Join(view.PullRoles, ","))
	return table.Render()
}

func init() {
	rootCmd.AddCommand(startCmd, permCmd, workItemCmd)
	permCmd.AddCommand(permCheckCmd)
	workItemCmd.AddCommand(workItemShowCmd)
	startCmd.Flags().String("title", "", "instance title, defaults to \"<process> <item>\"")
	startCmd.Flags().String("item-type", "", "type of the business object")
	startCmd.Flags().String("item-id", "", "id of the business object")
	startCmd.Flags().String("item-label", "", "display label of the business object")
	startCmd.Flags().Bool("skip-perm-check", false, "start without the permission check")
}
