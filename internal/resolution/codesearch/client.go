package codesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.github.com"

	// maxJSONResponseBytes bounds search response bodies.
	maxJSONResponseBytes = 10 << 20

	// maxRawFileBytes bounds fetched file content.
	maxRawFileBytes = 1 << 20
)

// RateLimitError is returned when the search quota is exhausted.
type RateLimitError struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// Item is one code search hit.
type Item struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	URL        string `json:"url"`
	HTMLURL    string `json:"html_url"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

type searchResponse struct {
	TotalCount int    `json:"total_count"`
	Items      []Item `json:"items"`
}

// Client talks to the GitHub REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *Client) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *Client) {
		if base = strings.TrimSpace(base); base != "" {
			g.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *Client) {
		g.userAgent = ua
	}
}

// NewClient creates a client authenticated with token.
func NewClient(token string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		token:      strings.TrimSpace(token),
		userAgent:  "bundleid",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a token is present.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// SearchCode runs a code search and returns at most perPage items.
func (c *Client) SearchCode(ctx context.Context, query string, perPage int) ([]Item, error) {
	if perPage <= 0 {
		perPage = 10
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("per_page", strconv.Itoa(perPage))
	reqURL := c.baseURL + "/search/code?" + params.Encode()

	resp, err := c.doRequest(ctx, reqURL, "application/vnd.github+json")
	if err != nil {
		return nil, fmt.Errorf("searching code: %w", err)
	}
	defer resp.Body.Close()

	if rlErr := checkRateLimit(resp); rlErr != nil {
		return nil, rlErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searching code: unexpected status %d", resp.StatusCode)
	}
	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return payload.Items, nil
}

// RawContent fetches the raw file behind a search item's contents URL.
func (c *Client) RawContent(ctx context.Context, contentsURL string) (string, error) {
	resp, err := c.doRequest(ctx, contentsURL, "application/vnd.github.raw")
	if err != nil {
		return "", fmt.Errorf("fetching content %s: %w", redactURL(contentsURL), err)
	}
	defer resp.Body.Close()

	if rlErr := checkRateLimit(resp); rlErr != nil {
		return "", rlErr
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching content %s: unexpected status %d", redactURL(contentsURL), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRawFileBytes))
	if err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}
	return string(data), nil
}

func (c *Client) doRequest(ctx context.Context, reqURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	// The token only goes to the configured API host.
	if c.token != "" && isGitHubHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// checkRateLimit returns a RateLimitError when the response reports an
// exhausted quota.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}
	rem, err := strconv.Atoi(remaining)
	if err != nil || rem > 0 {
		return nil
	}
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(reqURL.Host, base.Host)
}

func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
