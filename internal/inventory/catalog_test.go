package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	credstatic "github.com/travhall/el-camino-sub001/internal/credentials/static"
)

func TestCatalogClient(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		switch r.URL.Path {
		case "/v1/catalog/items/sku-1/availability":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"item_id": "sku-1", "on_hand": 12}`))
		case "/v1/catalog/items/sku-broken/availability":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"item_id": "sku-broken", "on_hand": -3}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewCatalogClient(srv.URL, credstatic.New("token-123"))
	ctx := context.Background()

	qty, err := c.OnHandQuantity(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 12, qty)
	assert.Equal(t, "Bearer token-123", gotAuth)

	_, err = c.OnHandQuantity(ctx, "sku-missing")
	assert.Error(t, err)

	_, err = c.OnHandQuantity(ctx, "sku-broken")
	assert.Error(t, err)
}

func TestCatalogClientUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"item_id": "sku-1", "on_hand": 2}`))
	}))
	defer srv.Close()

	c := NewCatalogClient(srv.URL, credstatic.New(""))

	qty, err := c.OnHandQuantity(context.Background(), "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 2, qty)
}
