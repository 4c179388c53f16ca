package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/routes"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(repos func() *repositoriesDependency) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve roles, users and groups over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := repos()

			var cache middleware.RoleCache
			if r.roleCache != nil {
				cache = r.roleCache
			}
			e := routes.NewServer(r.cfg.AppName, r.logger, routes.NewHandler(r.roles, r.users, r.groups), cache)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errs := make(chan error, 1)
			go func() {
				r.logger.Infof("Listening on %s", r.cfg.ServerAddr)
				errs <- e.Start(r.cfg.ServerAddr)
			}()

			select {
			case err := <-errs:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			r.logger.Info("Shutting down")
			return e.Shutdown(shutdownCtx)
		},
	}
}
