// Package lookup provides a client for a keyed volume search API used
// to enrich book metadata.
package lookup

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	domainerrors "github.com/soundleaf/soundleaf-server/internal/errors"
)

const defaultLimit = 10

// Volume is a candidate match returned by the search API.
type Volume struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Series      string `json:"series,omitempty"`
	Description string `json:"description,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
}

// searchResponse is the raw API response.
type searchResponse struct {
	ResultCount int      `json:"resultCount"`
	Results     []Volume `json:"results"`
}

// Client searches the remote volume API. Requests are rate limited;
// failures surface as typed unavailable errors and are never retried
// internally, the caller decides.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a lookup client for the given API endpoint.
// Rate limited to one request per second with a small burst.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logger:      logger,
	}
}

// Search returns candidate volumes for a title, optionally narrowed by
// author and series.
func (c *Client) Search(ctx context.Context, title, author, series string) ([]Volume, error) {
	if title == "" {
		return nil, domainerrors.Validation("lookup title cannot be empty")
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("title", title)
	if author != "" {
		params.Set("author", author)
	}
	if series != "" {
		params.Set("series", series)
	}
	params.Set("limit", fmt.Sprintf("%d", defaultLimit))

	searchURL := c.baseURL + "/search?" + params.Encode()

	c.logger.Debug("searching volumes", "title", title, "author", author)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domainerrors.Unavailable("volume search unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.Unavailablef("volume search failed: status %d", resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.UnmarshalRead(resp.Body, &searchResp); err != nil {
		return nil, domainerrors.Unavailable("volume search returned malformed response").WithCause(err)
	}

	c.logger.Debug("volume search results", "title", title, "count", searchResp.ResultCount)
	return searchResp.Results, nil
}
