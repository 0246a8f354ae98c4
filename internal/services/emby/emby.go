// Package emby triggers library refreshes on an Emby server.
package emby

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer describes the HTTP client used by the refresher.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client refreshes an Emby library.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// New returns a client, or nil when baseURL or apiKey is missing.
func New(baseURL, apiKey string, client HTTPDoer) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	apiKey = strings.TrimSpace(apiKey)
	if baseURL == "" || apiKey == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, client: client}
}

// Refresh asks the server to rescan every library. A nil client is a no-op.
func (c *Client) Refresh(ctx context.Context) error {
	if c == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Library/Refresh", nil)
	if err != nil {
		return fmt.Errorf("build emby refresh request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh emby library: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("emby refresh returned %d", resp.StatusCode)
	}
	return nil
}

// Ping checks that the server answers its public info endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/System/Info/Public", nil)
	if err != nil {
		return fmt.Errorf("build emby ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach emby: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("emby info returned %d", resp.StatusCode)
	}
	return nil
}
