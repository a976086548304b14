package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"assetpulse/internal/domain/entity"
	"assetpulse/internal/fusion"
	"assetpulse/internal/resilience/classify"
)

const defaultRequestTimeout = 10 * time.Second

// Client performs analyzer HTTP calls. One client is shared by all analyzers.
type Client struct {
	httpClient *http.Client
}

// NewClient creates an analyzer HTTP client. A zero timeout uses the default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// metricsResponse is the wire shape returned by analyzer endpoints.
type metricsResponse struct {
	Metrics map[string]float64 `json:"metrics"`
}

// AnalyzeFunc returns the fusion.AnalyzeFunc for one declared endpoint.
// Non-2xx responses come back as classify.HTTPError so the retry executor
// can apply its status-based rules.
func (c *Client) AnalyzeFunc(d Decl) fusion.AnalyzeFunc {
	return func(ctx context.Context, assetID string, _ entity.AssetSnapshot) (map[string]float64, error) {
		url := fmt.Sprintf("%s/metrics/%s", d.BaseURL, assetID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call analyzer %s: %w", d.Name, err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read analyzer %s response: %w", d.Name, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &classify.HTTPError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("analyzer %s: %s", d.Name, truncate(string(body), 200)),
			}
		}

		var parsed metricsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("parse analyzer %s response: %w", d.Name, err)
		}
		if parsed.Metrics == nil {
			return nil, fmt.Errorf("parse analyzer %s response: missing metrics object", d.Name)
		}
		return parsed.Metrics, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
