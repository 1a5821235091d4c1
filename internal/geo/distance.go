// Package geo resolves driving distance between two addresses through the
// Google Distance Matrix API. The lookup is advisory: quoting works without it
// and callers treat any failure here as "distance unknown".
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// ErrUpstream wraps any failure on the provider side: transport errors,
// non-200 responses, provider-reported error statuses, or a response shape
// missing the distance.
var ErrUpstream = errors.New("distance provider error")

type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"` // meters
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// ResolveKM returns the driving distance in kilometers from origin to
// destination.
func (c *Client) ResolveKM(ctx context.Context, origin, destination string) (float64, error) {
	if origin == "" || destination == "" {
		return 0, fmt.Errorf("origin and destination are required")
	}
	if c.apiKey == "" {
		return 0, fmt.Errorf("distance lookup is not configured")
	}

	params := url.Values{}
	params.Set("origins", origin)
	params.Set("destinations", destination)
	params.Set("units", "metric")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build distance request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	if out.Status != "OK" {
		return 0, fmt.Errorf("%w: provider status %q", ErrUpstream, out.Status)
	}
	if len(out.Rows) == 0 || len(out.Rows[0].Elements) == 0 {
		return 0, fmt.Errorf("%w: empty result", ErrUpstream)
	}
	element := out.Rows[0].Elements[0]
	if element.Status != "OK" {
		return 0, fmt.Errorf("%w: element status %q", ErrUpstream, element.Status)
	}

	return float64(element.Distance.Value) / 1000.0, nil
}
