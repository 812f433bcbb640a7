package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/travhall/el-camino-sub001/internal/credentials"
)

const defaultRequestTimeout = 10 * time.Second

// CatalogClient reads on-hand quantities from the commerce catalog API.
type CatalogClient struct {
	baseURL string
	creds   credentials.Provider
	http    *http.Client
}

func NewCatalogClient(baseURL string, creds credentials.Provider) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		creds:   creds,
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}
}

type availabilityResponse struct {
	ItemID string `json:"item_id"`
	OnHand int    `json:"on_hand"`
}

func (c *CatalogClient) OnHandQuantity(ctx context.Context, itemID string) (int, error) {
	endpoint := fmt.Sprintf("%s/v1/catalog/items/%s/availability", c.baseURL, url.PathEscape(itemID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build availability request: %w", err)
	}

	token, err := c.creds.Token(ctx)
	switch {
	case err == nil:
		req.Header.Set("Authorization", "Bearer "+token)
	case errors.Is(err, credentials.ErrNotConfigured):
		// Sandbox catalogs accept unauthenticated reads
	default:
		return 0, fmt.Errorf("failed to resolve catalog credential: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("availability request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("availability request for %q returned %s", itemID, resp.Status)
	}

	var body availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to parse availability response: %w", err)
	}
	if body.OnHand < 0 {
		return 0, fmt.Errorf("availability response for %q reported negative quantity %d", itemID, body.OnHand)
	}

	return body.OnHand, nil
}
