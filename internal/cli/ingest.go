package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/tmdb-ingest/pkg/ingest"
	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var startPage, pages int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion from the command line",
		Long: `Runs a single ingestion: resume from the cursor (or --start-page),
fetch up to --pages pages, upload the batch and advance the cursor.
Intended for job-style scheduling without the HTTP service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comps, _, err := setup(ctx)
			if err != nil {
				return err
			}
			defer comps.close()

			result, runErr := comps.runner.Run(ctx, ingest.Overrides{
				StartPage: startPage,
				Pages:     pages,
			})

			// A partial commit still produces a result worth printing.
			if result != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&startPage, "start-page", 0, "Override the resume page (default: cursor position)")
	cmd.Flags().IntVar(&pages, "pages", 0, "Pages to fetch this run (default: PAGES env, 5)")

	return cmd
}
