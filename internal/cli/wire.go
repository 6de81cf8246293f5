package cli

import (
	"context"
	"fmt"

	"github.com/Sternrassler/tmdb-ingest/internal/config"
	"github.com/Sternrassler/tmdb-ingest/pkg/batch"
	"github.com/Sternrassler/tmdb-ingest/pkg/blobstore"
	"github.com/Sternrassler/tmdb-ingest/pkg/catalog"
	"github.com/Sternrassler/tmdb-ingest/pkg/cursor"
	"github.com/Sternrassler/tmdb-ingest/pkg/docstore"
	"github.com/Sternrassler/tmdb-ingest/pkg/ingest"
	"github.com/Sternrassler/tmdb-ingest/pkg/logging"
	"github.com/Sternrassler/tmdb-ingest/pkg/secrets"
)

// components holds everything a command needs to run ingestions.
type components struct {
	runner *ingest.Runner
	cursor *cursor.Store
	close  func()
}

// setup loads configuration, configures logging and wires the storage
// backends into a runner.
func setup(ctx context.Context) (*components, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logging.Setup(logCfg)

	docs, err := docstore.New(ctx, docstore.Config{
		Backend:   cfg.DocstoreBackend,
		ProjectID: cfg.ProjectID,
		RedisURL:  cfg.RedisURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create docstore: %w", err)
	}

	blobs, err := blobstore.New(ctx, blobstore.Config{
		Backend:  cfg.BlobBackend,
		LocalDir: cfg.BlobLocalDir,
	})
	if err != nil {
		docs.Close()
		return nil, nil, fmt.Errorf("create blobstore: %w", err)
	}

	secretProvider, err := secrets.New(ctx, secrets.Config{
		Provider:  cfg.SecretProvider,
		ProjectID: cfg.ProjectID,
	})
	if err != nil {
		blobs.Close()
		docs.Close()
		return nil, nil, fmt.Errorf("create secret provider: %w", err)
	}

	catalogCfg := catalog.DefaultConfig("")
	if cfg.BaseURL != "" {
		catalogCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Language != "" {
		catalogCfg.Language = cfg.Language
	}

	cursorStore := cursor.NewStore(docs, cfg.CursorCollection, cfg.CursorDoc)

	runner, err := ingest.NewRunner(ingest.Config{
		Secrets:      secretProvider,
		SecretName:   cfg.SecretName,
		Cursor:       cursorStore,
		Batch:        batch.NewWriter(blobs, cfg.BucketName),
		DefaultPages: cfg.Pages,
		Catalog:      catalogCfg,
	})
	if err != nil {
		secretProvider.Close()
		blobs.Close()
		docs.Close()
		return nil, nil, fmt.Errorf("create runner: %w", err)
	}

	return &components{
		runner: runner,
		cursor: cursorStore,
		close: func() {
			secretProvider.Close()
			blobs.Close()
			docs.Close()
		},
	}, cfg, nil
}
