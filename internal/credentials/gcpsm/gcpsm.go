package gcpsm

import (
	"context"
	"fmt"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/travhall/el-camino-sub001/internal/credentials"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Provider reads the catalog API token from GCP Secret Manager. The
// value is fetched once and cached for the process lifetime; token
// rotation requires a restart.
type Provider struct {
	client  *secretmanager.Client
	project string
	secret  string

	mu    sync.Mutex
	token string
}

func New(ctx context.Context, project, secret string) (*Provider, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &Provider{client: client, project: project, secret: secret}, nil
}

func (p *Provider) secretResource() string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", p.project, p.secret)
}

func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}

	result, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: p.secretResource(),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", credentials.ErrNotConfigured
		}
		return "", fmt.Errorf("failed to access secret %q: %w", p.secret, err)
	}

	p.token = string(result.Payload.Data)
	return p.token, nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}
