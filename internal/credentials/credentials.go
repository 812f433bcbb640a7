package credentials

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("el-camino: catalog credential not configured")

// Provider supplies the bearer token used to call the catalog API.
type Provider interface {
	// Token returns the current credential value.
	// Returns ErrNotConfigured when no credential is provisioned.
	Token(ctx context.Context) (string, error)

	// Close releases any resources held by the provider.
	Close() error
}
