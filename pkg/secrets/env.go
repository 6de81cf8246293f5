package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Env resolves secrets from environment variables for local development.
// The logical name is mangled to SCREAMING_SNAKE_CASE: the secret
// "tmdb-api-key" reads TMDB_API_KEY.
type Env struct{}

// NewEnv creates an environment-backed secret provider.
func NewEnv() *Env {
	return &Env{}
}

// EnvKey returns the environment variable a secret name maps to.
func EnvKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// GetSecret reads the mapped environment variable. A missing or empty
// variable is an error, matching the fatal behavior of the gcp provider.
func (e *Env) GetSecret(ctx context.Context, name string) (string, error) {
	key := EnvKey(name)
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("secret %s not set (expected env %s)", name, key)
	}
	return value, nil
}

// Close implements Provider. The env provider holds no resources.
func (e *Env) Close() error {
	return nil
}
