package cmd

import (
	"fmt"
	"strconv"

	"github.com/blingmoon/simple-goflow/internal/api"
	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Manage activities of a process",
}

var activityAddCmd = &cobra.Command{
	Use:   "add <process> <title>",
	Short: "Add an activity to a process",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		req := &workflow.AddActivityReq{ProcessTitle: args[0], Title: args[1]}
		req.Description, _ = flags.GetString("description")
		req.Kind, _ = flags.GetString("kind")
		req.Autostart, _ = flags.GetBool("autostart")
		req.Autofinish, _ = flags.GetBool("autofinish")
		req.ApplicationURL, _ = flags.GetString("app")
		req.AppParam, _ = flags.GetString("app-param")
		req.PushApplicationURL, _ = flags.GetString("push-app")
		req.PushAppParam, _ = flags.GetString("pushapp-param")
		req.Roles, _ = flags.GetStringSlice("roles")
		req.JoinMode, _ = flags.GetString("join")
		req.SplitMode, _ = flags.GetString("split")
		activity, err := app.service.AddActivity(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printActivity(activity)
	},
}

var activityUpdateCmd = &cobra.Command{
	Use:   "update <activity-id>",
	Short: "Update fields of an activity, only the given flags are changed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		activityID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.Wrapf(workflow.ErrWorkflowParamInvalid, "invalid activity id: %s", args[0])
		}
		fields := updateFieldsFromFlags(cmd.Flags())
		activity, err := app.service.UpdateActivity(cmd.Context(), &workflow.UpdateActivityReq{
			ActivityID: activityID,
			Fields:     fields,
		})
		if err != nil {
			return err
		}
		return printActivity(activity)
	},
}

func updateFieldsFromFlags(flags *pflag.FlagSet) *workflow.UpdateActivityField {
	fields := &workflow.UpdateActivityField{}
	stringField := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	boolField := func(name string) *bool {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetBool(name)
		return &v
	}
	fields.Title = stringField("title")
	fields.Description = stringField("description")
	fields.Kind = stringField("kind")
	fields.Autostart = boolField("autostart")
	fields.Autofinish = boolField("autofinish")
	fields.ApplicationURL = stringField("app")
	fields.AppParam = stringField("app-param")
	fields.PushApplicationURL = stringField("push-app")
	fields.PushAppParam = stringField("pushapp-param")
	fields.JoinMode = stringField("join")
	fields.SplitMode = stringField("split")
	if flags.Changed("roles") {
		fields.Roles, _ = flags.GetStringSlice("roles")
		if fields.Roles == nil {
			fields.Roles = []string{}
		}
	}
	return fields
}

func printActivity(activity *workflow.Activity) error {
	view := api.NewActivityView(activity)
	if isJSONOutput() {
		return printJSON(view)
	}
	fmt.Printf("activity %s (id %d) saved, dispatch mode: %s\n", view.Title, view.ID, view.DispatchMode)
	return nil
}

func addActivityFlags(flags *pflag.FlagSet) {
	flags.String("description", "", "activity description")
	flags.String("kind", "", "standard, dummy or subflow")
	flags.Bool("autostart", false, "run the bound application when the work item is created")
	flags.Bool("autofinish", false, "finish the work item when the application completes")
	flags.String("app", "", "application url")
	flags.String("app-param", "", "application parameters as a json object")
	flags.String("push-app", "", "push application url")
	flags.String("pushapp-param", "", "push application parameters as a json object")
	flags.StringSlice("roles", nil, "groups allowed to pull the work item")
	flags.String("join", "", "join mode: and or xor")
	flags.String("split", "", "split mode: and or xor")
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.AddCommand(activityAddCmd, activityUpdateCmd)
	addActivityFlags(activityAddCmd.Flags())
	addActivityFlags(activityUpdateCmd.Flags())
	activityUpdateCmd.Flags().String("title", "", "activity title")
}
