// Package cli wires configuration, storage backends and the ingestion
// core into the tmdb-ingest command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tmdb-ingest",
		Short: "Incremental movie catalog ingestion service",
		Long: `tmdb-ingest pulls the movie discovery catalog page by page into an
object store, resuming from a durable cursor. Each invocation fetches a
bounded window of pages, uploads it as one NDJSON batch and advances the
cursor, so repeated invocations walk the whole catalog.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
