// Package secrets resolves the catalog API credential at run time. The
// credential is fetched fresh on every run so rotations take effect
// without a restart.
package secrets

import (
	"context"
	"fmt"
)

// Provider returns secret values by logical name.
type Provider interface {
	// GetSecret returns the latest value of the named secret.
	GetSecret(ctx context.Context, name string) (string, error)

	// Close releases underlying client resources.
	Close() error
}

// Config selects and parameterizes a secret provider.
type Config struct {
	// Provider is one of "gcp", "env".
	Provider string

	// ProjectID is the GCP project for the gcp provider.
	ProjectID string
}

// New creates a secret provider for the configured backend.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "gcp", "": // Empty selects the default provider.
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("gcp secret provider requires a project id")
		}
		return NewGCP(ctx, cfg.ProjectID)
	case "env":
		return NewEnv(), nil
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", cfg.Provider)
	}
}
