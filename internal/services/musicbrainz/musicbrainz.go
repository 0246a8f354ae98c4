// Package musicbrainz looks up audio CDs by MusicBrainz disc id.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"discripper/internal/services"
)

const (
	defaultBaseURL     = "https://musicbrainz.org"
	defaultHTTPTimeout = 15 * time.Second
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

// Client talks to the MusicBrainz web service.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// New constructs a client. MusicBrainz rejects requests without a
// descriptive User-Agent.
func New(baseURL, userAgent string, timeoutSeconds int, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		userAgent:  strings.TrimSpace(userAgent),
		httpClient: &http.Client{Timeout: timeout},
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = "discripper/dev"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Release is the identified album.
type Release struct {
	ID         string
	Title      string
	Artist     string
	Year       string
	TrackCount int
	Stub       bool
}

// DisplayTitle renders "Artist Title" when the artist is known.
func (r *Release) DisplayTitle() string {
	if r == nil {
		return ""
	}
	if r.Artist == "" {
		return r.Title
	}
	return r.Artist + " " + r.Title
}

type discResponse struct {
	// Disc match.
	Releases []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Date         string `json:"date"`
		ArtistCredit []struct {
			Name string `json:"name"`
		} `json:"artist-credit"`
		Media []struct {
			Format     string `json:"format"`
			TrackCount int    `json:"track-count"`
		} `json:"media"`
	} `json:"releases"`
	// CD stub match.
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	TrackCount int    `json:"track-count"`
}

// LookupDisc returns the first CD release carrying discID. Unknown discs
// return (nil, nil).
func (c *Client) LookupDisc(ctx context.Context, discID string) (*Release, error) {
	discID = strings.TrimSpace(discID)
	if discID == "" {
		return nil, services.Wrap(services.ErrValidation, "musicbrainz", "lookup", "disc id required", nil)
	}
	endpoint := fmt.Sprintf("%s/ws/2/discid/%s?inc=artist-credits+recordings&cdstubs=yes&fmt=json", c.baseURL, discID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "musicbrainz", "lookup", "musicbrainz request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrTransient, "musicbrainz", "lookup", fmt.Sprintf("musicbrainz returned %d", resp.StatusCode), nil)
	}

	var payload discResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode musicbrainz response: %w", err)
	}

	for _, release := range payload.Releases {
		if len(release.Media) == 0 || release.Media[0].Format != "CD" {
			continue
		}
		out := &Release{
			ID:         release.ID,
			Title:      release.Title,
			TrackCount: release.Media[0].TrackCount,
		}
		if len(release.Date) >= 4 {
			out.Year = release.Date[:4]
		}
		if len(release.ArtistCredit) > 0 {
			out.Artist = release.ArtistCredit[0].Name
		}
		return out, nil
	}
	if len(payload.Releases) == 0 && payload.ID != "" && payload.Title != "" {
		return &Release{
			ID:         payload.ID,
			Title:      payload.Title,
			Artist:     payload.Artist,
			TrackCount: payload.TrackCount,
			Stub:       true,
		}, nil
	}
	return nil, nil
}
