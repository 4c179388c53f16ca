package main

import (
	"github.com/spf13/cobra"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
)

func newRolesCmd(repos func() *repositoriesDependency) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Inspect roles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Show a role by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := repos().roles.GetRoleByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if role == nil {
				return apperrors.NotFound("role %q does not exist", args[0])
			}
			return printJSON(cmd.OutOrStdout(), role)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			roles, err := repos().roles.GetAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), roles)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "defaults",
		Short: "List the roles new users receive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			roles, err := repos().roles.GetDefaultRoles(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), roles)
		},
	})

	return cmd
}
