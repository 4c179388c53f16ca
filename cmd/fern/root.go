package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configDir string
	var a *app

	root := &cobra.Command{
		Use:           "fern",
		Short:         "Administer roles, users, user templates and groups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = newApp(cmd.Context(), configDir)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a == nil {
				return nil
			}
			return a.close(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding application.properties (falls back to $FERN_CONFIG_DIR, then /etc/fern)")

	repos := func() *repositoriesDependency { return a.repos }
	root.AddCommand(
		newRolesCmd(repos),
		newUsersCmd(repos),
		newTemplatesCmd(repos),
		newGroupsCmd(repos),
		newServeCmd(repos),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
