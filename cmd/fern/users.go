package main

import (
	"github.com/spf13/cobra"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newUsersCmd(repos func() *repositoriesDependency) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and create users",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <username>",
		Short: "Show a user and its roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := repos().users.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return apperrors.NotFound("user %q does not exist", args[0])
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <username> [role...]",
		Short: "Create a user with the named roles, or the default roles when none are given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r := repos()

			var roles []models.Role
			if len(args) == 1 {
				defaults, err := r.roles.GetDefaultRoles(ctx)
				if err != nil {
					return err
				}
				roles = defaults
			}
			for _, name := range args[1:] {
				role, err := r.roles.GetRoleByName(ctx, name)
				if err != nil {
					return err
				}
				if role == nil {
					return apperrors.NotFound("role %q does not exist", name)
				}
				roles = append(roles, *role)
			}

			user, err := r.users.CreateUser(ctx, args[0], roles)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "roles <username>",
		Short: "List the role names of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := repos().users.GetRoleNames(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), names)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "with-role <role>",
		Short: "List the users holding a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := repos().users.GetByRole(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), users)
		},
	})

	return cmd
}
