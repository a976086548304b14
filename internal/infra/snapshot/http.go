// Package snapshot fetches contextual market snapshots for assets from a
// configured snapshot service. The fallback model never touches this package;
// it only consumes the returned value.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"assetpulse/internal/domain/entity"
	"assetpulse/internal/resilience/classify"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPProvider fetches snapshots as GET {BaseURL}/snapshots/{assetID}.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProvider creates a snapshot provider for the given base URL.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// wireSnapshot is the JSON shape served by the snapshot service.
type wireSnapshot struct {
	VolumeUSD24h  float64 `json:"volume_usd_24h"`
	MarketCapUSD  float64 `json:"market_cap_usd"`
	Volatility30d float64 `json:"volatility_30d"`
	AgeDays       int     `json:"age_days"`
}

// Snapshot fetches the contextual snapshot for one asset.
func (p *HTTPProvider) Snapshot(ctx context.Context, assetID string) (entity.AssetSnapshot, error) {
	url := fmt.Sprintf("%s/snapshots/%s", p.baseURL, assetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return entity.AssetSnapshot{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return entity.AssetSnapshot{}, fmt.Errorf("fetch snapshot for %s: %w", assetID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return entity.AssetSnapshot{}, &classify.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("snapshot service returned %d for %s", resp.StatusCode, assetID),
		}
	}

	var wire wireSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return entity.AssetSnapshot{}, fmt.Errorf("parse snapshot for %s: %w", assetID, err)
	}

	snap := entity.AssetSnapshot{
		AssetID:       assetID,
		VolumeUSD24h:  wire.VolumeUSD24h,
		MarketCapUSD:  wire.MarketCapUSD,
		Volatility30d: wire.Volatility30d,
		AgeDays:       wire.AgeDays,
	}
	if err := snap.Validate(); err != nil {
		return entity.AssetSnapshot{}, fmt.Errorf("invalid snapshot for %s: %w", assetID, err)
	}
	return snap, nil
}
