package main

import (
	"github.com/spf13/cobra"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
)

func newGroupsCmd(repos func() *repositoriesDependency) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage versioned groups",
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := repos().groups.CreateGroup(cmd.Context(), args[0], optional(cmd, "description", description))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), group)
		},
	}
	create.Flags().StringVar(&description, "description", "", "group description")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Show the current version of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := repos().groups.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if group == nil {
				return apperrors.NotFound("group %q does not exist", args[0])
			}
			return printJSON(cmd.OutOrStdout(), group)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history <name>",
		Short: "List every version of a group, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := repos().groups.GetGroupHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), history)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "describe <name> [description]",
		Short: "Replace a group's description; omit it to clear",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var desc *string
			if len(args) == 2 {
				desc = &args[1]
			}
			group, err := repos().groups.Describe(cmd.Context(), args[0], desc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), group)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Expire the current version of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := repos().groups.RemoveGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), group)
		},
	})

	return cmd
}

// optional returns a pointer to value when the flag was given.
func optional(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}
