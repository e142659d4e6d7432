// Package serper provides a client for the Serper.dev Google search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/retry"
)

const defaultBaseURL = "https://google.serper.dev"

// Client performs web searches against the Serper API.
type Client interface {
	// Search issues a text query and returns up to num organic results.
	Search(ctx context.Context, query string, num int) ([]Result, error)
}

// Result is a single organic search result.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// searchRequest is the request body for POST /search.
type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

// searchResponse mirrors the fields of the Serper response we consume.
// Alternate keys observed in the wild are handled in normalize.
type searchResponse struct {
	Organic []rawResult `json:"organic"`
	Results []rawResult `json:"results"`
}

type rawResult struct {
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Link        string `json:"link"`
	URL         string `json:"url"`
	Source      string `json:"source"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRetry overrides the default retry configuration.
func WithRetry(cfg retry.Config) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   retry.Config
}

// NewClient creates a Serper API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: retry.Config{
			MaxAttempts:    2,
			InitialBackoff: 300 * time.Millisecond,
			OnRetry:        retry.Logger("serper", "search"),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, num int) ([]Result, error) {
	return retry.DoVal(ctx, c.retry, func(ctx context.Context) ([]Result, error) {
		return c.search(ctx, query, num)
	})
}

func (c *httpClient) search(ctx context.Context, query string, num int) ([]Result, error) {
	body, err := json.Marshal(searchRequest{Q: query, Num: num})
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serper: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serper: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("serper: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if retry.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, retry.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "serper: unmarshal response")
	}

	organic := result.Organic
	if len(organic) == 0 {
		organic = result.Results
	}
	if num > 0 && len(organic) > num {
		organic = organic[:num]
	}

	out := make([]Result, 0, len(organic))
	for _, r := range organic {
		out = append(out, normalize(r))
	}
	return out, nil
}

// normalize maps alternate response keys onto the canonical result shape.
func normalize(r rawResult) Result {
	snippet := r.Snippet
	if snippet == "" {
		snippet = r.Summary
	}
	if snippet == "" {
		snippet = r.Description
	}
	link := r.Link
	if link == "" {
		link = r.URL
	}
	if link == "" {
		link = r.Source
	}
	return Result{Title: r.Title, Snippet: snippet, Link: link}
}
