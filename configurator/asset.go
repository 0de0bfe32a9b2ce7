package configurator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/refurbd/ctoengine/cto"
)

// AssetStatus is the lifecycle state of a refurbished asset in the
// upstream inventory service.
type AssetStatus string

const (
	StatusSellable AssetStatus = "SELLABLE"
	StatusReserved AssetStatus = "RESERVED"
	StatusScrapped AssetStatus = "SCRAPPED"
)

// Asset is the inventory record a configuration is built against.
type Asset struct {
	ID           string      `json:"id"`
	ProductModel string      `json:"productModel"`
	Status       AssetStatus `json:"status"`
}

// AssetClient looks up assets in the inventory service. Lookups fail
// closed: any error blocks validation rather than letting an unknown
// asset through.
type AssetClient interface {
	GetAsset(ctx context.Context, assetID string) (*Asset, error)
}

// HTTPAssetClient talks to the inventory service over HTTP.
type HTTPAssetClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAssetClient creates a client for the inventory service at
// baseURL. timeout bounds each lookup; zero means 5 seconds.
func NewHTTPAssetClient(baseURL string, timeout time.Duration) *HTTPAssetClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPAssetClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetAsset fetches a single asset by ID.
func (c *HTTPAssetClient) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	u := fmt.Sprintf("%s/assets/%s", c.baseURL, url.PathEscape(assetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build asset request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w: %v", assetID, cto.ErrAssetLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset %s: %w: status %d", assetID, cto.ErrAssetLookupFailed, resp.StatusCode)
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return nil, fmt.Errorf("asset %s: %w: %v", assetID, cto.ErrAssetLookupFailed, err)
	}
	return &asset, nil
}
