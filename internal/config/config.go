// Package config loads service configuration from environment variables
// (populated from a .env file in main, when present).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults for optional settings.
const (
	DefaultSecretName       = "tmdb-api-key"
	DefaultPages            = 5
	DefaultPort             = "8080"
	DefaultCursorCollection = "ingestion_state"
	DefaultCursorDoc        = "tmdb_movies"
)

// Config holds all service settings.
type Config struct {
	// ProjectID is the GCP project backing Firestore and Secret Manager.
	ProjectID string

	// BucketName is the object store bucket batches are written to.
	BucketName string

	// SecretName is the logical name of the catalog credential.
	SecretName string

	// SecretProvider selects the secret backend ("gcp", "env").
	SecretProvider string

	// Pages is the default page budget per run.
	Pages int

	// Port is the HTTP listen port.
	Port string

	// BaseURL overrides the catalog API base URL. Empty keeps the
	// live API default.
	BaseURL string

	// Language overrides the catalog language filter.
	Language string

	// CursorCollection and CursorDoc locate the resume record.
	CursorCollection string
	CursorDoc        string

	// DocstoreBackend selects the cursor store ("firestore", "redis", "memory").
	DocstoreBackend string

	// RedisURL is the connection URL for the redis docstore backend.
	RedisURL string

	// BlobBackend selects the object store ("gcs", "s3", "file").
	BlobBackend string

	// BlobLocalDir is the root directory for the file blob backend.
	BlobLocalDir string

	// LogLevel and LogPretty configure logging at boot.
	LogLevel  string
	LogPretty bool
}

// Load reads configuration from the environment. All problems are
// reported together so a misconfigured deployment fails with one
// complete message instead of one variable at a time.
func Load() (*Config, error) {
	cfg := &Config{
		ProjectID:        os.Getenv("PROJECT_ID"),
		BucketName:       os.Getenv("BUCKET_NAME"),
		SecretName:       getEnv("SECRET_NAME", DefaultSecretName),
		SecretProvider:   os.Getenv("SECRET_PROVIDER"),
		Port:             getEnv("PORT", DefaultPort),
		BaseURL:          os.Getenv("TMDB_BASE_URL"),
		Language:         os.Getenv("TMDB_LANGUAGE"),
		CursorCollection: getEnv("CURSOR_COLLECTION", DefaultCursorCollection),
		CursorDoc:        getEnv("CURSOR_DOC", DefaultCursorDoc),
		DocstoreBackend:  os.Getenv("DOCSTORE_BACKEND"),
		RedisURL:         os.Getenv("REDIS_URL"),
		BlobBackend:      os.Getenv("BLOB_BACKEND"),
		BlobLocalDir:     os.Getenv("BLOB_LOCAL_DIR"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvBool("LOG_PRETTY", false),
	}

	var problems []string

	pages, err := getEnvInt("PAGES", DefaultPages)
	if err != nil {
		problems = append(problems, err.Error())
	} else if pages < 1 {
		problems = append(problems, "PAGES must be >= 1")
	}
	cfg.Pages = pages

	if cfg.BucketName == "" {
		problems = append(problems, "BUCKET_NAME is required")
	}

	// The GCP-backed defaults need a project to talk to.
	usesFirestore := cfg.DocstoreBackend == "" || cfg.DocstoreBackend == "firestore"
	usesGCPSecrets := cfg.SecretProvider == "" || cfg.SecretProvider == "gcp"
	if cfg.ProjectID == "" && (usesFirestore || usesGCPSecrets) {
		problems = append(problems, "PROJECT_ID is required for the firestore and gcp backends")
	}

	if cfg.DocstoreBackend == "redis" && cfg.RedisURL == "" {
		problems = append(problems, "REDIS_URL is required when DOCSTORE_BACKEND=redis")
	}
	if cfg.BlobBackend == "file" && cfg.BlobLocalDir == "" {
		problems = append(problems, "BLOB_LOCAL_DIR is required when BLOB_BACKEND=file")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, value)
	}
	return parsed, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
