package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// GCP resolves secrets from Google Secret Manager.
type GCP struct {
	client    *secretmanager.Client
	projectID string
}

// NewGCP creates a Secret Manager provider for the given project.
// Credentials are resolved from the environment (ADC).
func NewGCP(ctx context.Context, projectID string) (*GCP, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}
	return &GCP{client: client, projectID: projectID}, nil
}

// GetSecret accesses the latest enabled version of the named secret.
func (g *GCP) GetSecret(ctx context.Context, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.projectID, name),
	}

	result, err := g.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}

	return string(result.GetPayload().GetData()), nil
}

// Close closes the underlying Secret Manager client.
func (g *GCP) Close() error {
	return g.client.Close()
}
