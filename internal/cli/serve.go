package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/tmdb-ingest/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP trigger service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comps, cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			defer comps.close()

			srv, err := server.New(server.Config{
				Port:   cfg.Port,
				Runner: comps.runner,
				Cursor: comps.cursor,
			})
			if err != nil {
				return err
			}

			return srv.Start(ctx)
		},
	}
}
