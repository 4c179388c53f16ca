package main

import (
	"github.com/spf13/cobra"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
)

func newTemplatesCmd(repos func() *repositoriesDependency) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect user templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Show a user template and its roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := repos().templates.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if tmpl == nil {
				return apperrors.NotFound("user template %q does not exist", args[0])
			}
			return printJSON(cmd.OutOrStdout(), tmpl)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "auto",
		Short: "List the templates applied without administrator approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			templates, err := repos().templates.GetAutoAuthorize(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), templates)
		},
	})

	return cmd
}
