package cmd

import (
	"fmt"

	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := app.directory.CreateUser(cmd.Context(), &workflow.UserPo{Username: args[0]})
		if err != nil {
			return err
		}
		fmt.Printf("user %s created (id %d)\n", user.Username, user.ID)
		return nil
	},
}

var userGrantCmd = &cobra.Command{
	Use:   "grant <username> <codename>",
	Short: "Grant a permission to a user, e.g. " + workflow.CapabilityInstantiate,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := app.directory.GetUserByUsername(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := app.directory.GrantUserPermission(cmd.Context(), user.ID, args[1]); err != nil {
			return err
		}
		fmt.Printf("granted %s to user %s\n", args[1], user.Username)
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups, a group named after a process scopes who may start it",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, err := app.directory.CreateGroup(cmd.Context(), &workflow.GroupPo{Name: args[0]})
		if err != nil {
			return err
		}
		fmt.Printf("group %s created (id %d)\n", group.Name, group.ID)
		return nil
	},
}

var groupGrantCmd = &cobra.Command{
	Use:   "grant <name> <codename>",
	Short: "Grant a permission to a group, e.g. " + workflow.ScopedPermissionInstantiate,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, err := app.directory.GetGroupByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := app.directory.GrantGroupPermission(cmd.Context(), group.ID, args[1]); err != nil {
			return err
		}
		fmt.Printf("granted %s to group %s\n", args[1], group.Name)
		return nil
	},
}

var groupMemberCmd = &cobra.Command{
	Use:   "member <name> <username>",
	Short: "Add a user to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		group, err := app.directory.GetGroupByName(ctx, args[0])
		if err != nil {
			return err
		}
		user, err := app.directory.GetUserByUsername(ctx, args[1])
		if err != nil {
			return err
		}
		if err := app.directory.AddUserToGroup(ctx, user.ID, group.ID); err != nil {
			return err
		}
		fmt.Printf("user %s added to group %s\n", user.Username, group.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd, groupCmd)
	userCmd.AddCommand(userAddCmd, userGrantCmd)
	groupCmd.AddCommand(groupAddCmd, groupGrantCmd, groupMemberCmd)
}
