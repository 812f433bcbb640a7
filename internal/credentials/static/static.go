package static

import (
	"context"

	"github.com/travhall/el-camino-sub001/internal/credentials"
)

// Provider serves a fixed token from configuration. An empty token is
// reported as not configured; the catalog client then sends
// unauthenticated requests, which sandbox catalogs accept.
type Provider struct {
	token string
}

func New(token string) *Provider {
	return &Provider{token: token}
}

func (p *Provider) Token(context.Context) (string, error) {
	if p.token == "" {
		return "", credentials.ErrNotConfigured
	}
	return p.token, nil
}

func (p *Provider) Close() error {
	return nil
}
