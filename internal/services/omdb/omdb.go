// Package omdb queries the OMDb title API.
package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"discripper/internal/services"
)

const (
	defaultBaseURL     = "https://www.omdbapi.com/"
	defaultHTTPTimeout = 10 * time.Second
)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client performs OMDb lookups.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New constructs a client. An empty baseURL selects the public endpoint.
func New(apiKey, baseURL string, timeoutSeconds int, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimSpace(baseURL),
		httpClient: &http.Client{Timeout: timeout},
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is a matched title.
type Result struct {
	Title     string
	Year      string
	Type      string
	IMDBID    string
	PosterURL string
}

type response struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	Type     string `json:"Type"`
	IMDBID   string `json:"imdbID"`
	Poster   string `json:"Poster"`
}

// Lookup asks for an exact title match. year and videoType may be empty.
// A title OMDb does not know returns (nil, nil).
func (c *Client) Lookup(ctx context.Context, title, year, videoType string) (*Result, error) {
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "omdb", "lookup", "omdb api key required", nil)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("omdb lookup: title required")
	}

	query := url.Values{}
	query.Set("t", title)
	if year = strings.TrimSpace(year); year != "" {
		query.Set("y", year)
	}
	if videoType = strings.TrimSpace(videoType); videoType != "" && videoType != "auto" {
		query.Set("type", videoType)
	}
	query.Set("plot", "short")
	query.Set("r", "json")
	query.Set("apikey", c.apiKey)

	endpoint := c.baseURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + query.Encode()
	} else {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build omdb request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "omdb", "lookup", "omdb request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, services.Wrap(services.ErrConfiguration, "omdb", "lookup", "omdb rejected the api key", nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrTransient, "omdb", "lookup", fmt.Sprintf("omdb returned %d", resp.StatusCode), nil)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode omdb response: %w", err)
	}
	if !strings.EqualFold(payload.Response, "True") {
		return nil, nil
	}
	poster := payload.Poster
	if strings.EqualFold(poster, "N/A") {
		poster = ""
	}
	return &Result{
		Title:     payload.Title,
		Year:      payload.Year,
		Type:      payload.Type,
		IMDBID:    payload.IMDBID,
		PosterURL: poster,
	}, nil
}
