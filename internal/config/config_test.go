package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, yaml string) (*Config, error) {
	t.Helper()

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))

	return Load(v)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t, `
inventory:
  base_url: https://connect.squareupsandbox.com
`)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Backend.Locks.Type)
	assert.Equal(t, "static", cfg.Backend.Credentials.Type)
	assert.Equal(t, 10*time.Minute, cfg.Locks.TTL)
	assert.Equal(t, time.Minute, cfg.Locks.SweepInterval)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10, cfg.RateLimit.Ceilings["default"])
	assert.Equal(t, time.Minute, cfg.Inventory.CacheTTL)
	assert.False(t, cfg.Inventory.FailOpen)
}

func TestFullConfig(t *testing.T) {
	cfg, err := load(t, `
backend:
  locks:
    type: firestore
    project: storefront-prod
    collection: reservations
  credentials:
    type: gcp-secret-manager
    project: storefront-prod
    secret: catalog-api-token
locks:
  ttl: 5m
  sweep_interval: 30s
rate_limit:
  window: 30s
  ceilings:
    default: 20
    trusted: 200
inventory:
  base_url: https://connect.squareup.com
  cache_ttl: 15s
  fail_open: true
`)
	require.NoError(t, err)

	assert.Equal(t, "firestore", cfg.Backend.Locks.Type)
	assert.Equal(t, "reservations", cfg.Backend.Locks.Collection)
	assert.Equal(t, "catalog-api-token", cfg.Backend.Credentials.Secret)
	assert.Equal(t, 5*time.Minute, cfg.Locks.TTL)
	assert.Equal(t, 30*time.Second, cfg.Locks.SweepInterval)
	assert.Equal(t, 200, cfg.RateLimit.Ceilings["trusted"])
	assert.Equal(t, 15*time.Second, cfg.Inventory.CacheTTL)
	assert.True(t, cfg.Inventory.FailOpen)
}

func TestMissingBaseURL(t *testing.T) {
	_, err := load(t, `
locks:
  ttl: 5m
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory.base_url")
}

func TestUnknownLockBackend(t *testing.T) {
	_, err := load(t, `
backend:
  locks:
    type: redis
inventory:
  base_url: https://connect.squareupsandbox.com
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown lock backend")
}

func TestFirestoreRequiresProjectAndCollection(t *testing.T) {
	_, err := load(t, `
backend:
  locks:
    type: firestore
    project: storefront-prod
inventory:
  base_url: https://connect.squareupsandbox.com
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.locks.collection")
}

func TestSecretManagerRequiresSecret(t *testing.T) {
	_, err := load(t, `
backend:
  credentials:
    type: gcp-secret-manager
    project: storefront-prod
inventory:
  base_url: https://connect.squareupsandbox.com
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.credentials.secret")
}

func TestRejectsNegativeTTL(t *testing.T) {
	_, err := load(t, `
locks:
  ttl: -5m
inventory:
  base_url: https://connect.squareupsandbox.com
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locks.ttl must not be negative")
}

func TestRejectsNonPositiveCeiling(t *testing.T) {
	_, err := load(t, `
rate_limit:
  ceilings:
    default: 10
    trusted: -5
inventory:
  base_url: https://connect.squareupsandbox.com
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ceilings["trusted"]`)
}
