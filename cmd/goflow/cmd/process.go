package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/blingmoon/simple-goflow/internal/api"
	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Manage process definitions",
}

var processAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a process with its initial activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		process, err := app.service.AddProcess(cmd.Context(), &workflow.AddProcessReq{Title: args[0], Description: description})
		if err != nil {
			return err
		}
		if isJSONOutput() {
			return printJSON(api.NewProcessView(process))
		}
		fmt.Printf("process %s created, begin activity %s (id %d)\n", process.Title, process.Begin.Title, process.Begin.ID)
		return nil
	},
}

var processListCmd = &cobra.Command{
	Use:   "list",
	Short: "List process definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := &workflow.QueryProcessParams{}
		if cmd.Flags().Changed("enabled") {
			enabled, _ := cmd.Flags().GetBool("enabled")
			params.Enabled = &enabled
		}
		processes, err := app.service.ListProcesses(cmd.Context(), params)
		if err != nil {
			return err
		}
		if isJSONOutput() {
			views := make([]*api.ProcessView, 0, len(processes))
			for _, process := range processes {
				views = append(views, api.NewProcessView(process))
			}
			return printJSON(views)
		}
		if len(processes) == 0 {
			fmt.Println("No processes defined")
			return nil
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Title", "Enabled", "Begin", "Mode", "Description")
		for _, process := range processes {
			begin, mode := "-", "-"
			if process.Begin != nil {
				begin = process.Begin.Title
				mode = process.Begin.DispatchMode()
			}
			_ = table.Append(process.ID, process.Title, process.Enabled, begin, mode, process.Description)
		}
		return table.Render()
	},
}

var processShowCmd = &cobra.Command{
	Use:   "show <title>",
	Short: "Show a process and its begin activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		process, err := app.service.GetProcess(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if isJSONOutput() {
			return printJSON(api.NewProcessView(process))
		}
		begin := process.Begin
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Field", "Value")
		_ = table.Append("ID", process.ID)
		_ = table.Append("Title", process.Title)
		_ = table.Append("Enabled", process.Enabled)
		_ = table.Append("Description", process.Description)
		_ = table.Append("Begin", fmt.Sprintf("%s (id %d)", begin.Title, begin.ID))
		_ = table.Append("Kind", begin.Kind)
		_ = table.Append("Dispatch", begin.DispatchMode())
		_ = table.Append("Application", begin.ApplicationURL)
		_ = table.Append("Push application", begin.PushApplicationURL)
		_ = table.Append("Roles", strings.Join(begin.Roles, ","))
		return table.Render()
	},
}

func newProcessEnableCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <title>",
		Short: use + " a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.service.SetProcessEnabled(cmd.Context(), args[0], enabled); err != nil {
				return err
			}
			fmt.Printf("process %s %sd\n", args[0], use)
			return nil
		},
	}
}

var applicationCmd = &cobra.Command{
	Use:   "application",
	Short: "Manage application urls",
}

var applicationAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Record an application url so activities can bind to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		test, _ := cmd.Flags().GetBool("test")
		err := app.service.AddApplication(cmd.Context(), &workflow.AddApplicationReq{URL: args[0], Kind: kind, Test: test})
		if err != nil {
			return err
		}
		fmt.Printf("%s application %s added\n", kind, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.AddCommand(processAddCmd, processListCmd, processShowCmd,
		newProcessEnableCmd("enable", true), newProcessEnableCmd("disable", false))
	processAddCmd.Flags().String("description", "", "process description")
	processListCmd.Flags().Bool("enabled", true, "only list processes with this enabled flag")

	rootCmd.AddCommand(applicationCmd)
	applicationCmd.AddCommand(applicationAddCmd)
	applicationAddCmd.Flags().String("kind", workflow.ApplicationKindApplication, "application or push")
	applicationAddCmd.Flags().Bool("test", false, "mark as a test application")
}
