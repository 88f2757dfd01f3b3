package homebrew

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxCaskBytes = 4 << 20

// ErrCaskNotFound is returned when no cask exists for a token.
var ErrCaskNotFound = errors.New("cask not found")

// Client fetches cask JSON documents from the formulae API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a cask client. baseURL is the cask API root, for example
// https://formulae.brew.sh/api/cask.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("homebrew base url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Cask returns the raw JSON document for token.
func (c *Client) Cask(ctx context.Context, token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("cask token must not be empty")
	}
	endpoint := c.baseURL + "/" + url.PathEscape(token) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrCaskNotFound, token)
	default:
		return nil, fmt.Errorf("cask lookup returned %d (latency=%v)", resp.StatusCode, latency)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCaskBytes))
	if err != nil {
		return nil, fmt.Errorf("read cask response: %w", err)
	}
	return data, nil
}
