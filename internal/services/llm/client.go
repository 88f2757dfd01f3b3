package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout  = 15 * time.Second
)

// Config captures the runtime settings required to talk to OpenRouter.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	WebSearch      bool
	TimeoutSeconds int
}

// Client sends single-turn chat completions and returns the answer text.
type Client struct {
	cfg    Config
	http   *http.Client
	policy retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryMaxAttempts bounds how many requests a single completion may issue.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.policy.attempts = attempts
	}
}

// WithRetryBackoff sets the first backoff step and the ceiling.
func WithRetryBackoff(base, ceiling time.Duration) Option {
	return func(c *Client) {
		c.policy.base = base
		c.policy.ceiling = ceiling
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.policy.sleep = sleep
	}
}

// NewClient builds a client. Blank fields fall back to the public OpenRouter
// endpoint and a fifteen second timeout.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEndpoint
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		policy: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// Complete asks the model one question and returns its trimmed answer. With
// web search enabled the request carries the OpenRouter web plugin.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return "", errors.New("openrouter complete: system prompt required")
	case userPrompt == "":
		return "", errors.New("openrouter complete: user prompt required")
	case !c.Configured():
		return "", errors.New("openrouter complete: api key required")
	}
	req := c.newRequest(systemPrompt, userPrompt)
	if c.cfg.WebSearch {
		req.Plugins = []plugin{{ID: "web", MaxResults: 5}}
	}
	return c.completeWithRetry(ctx, "openrouter complete", req)
}

// HealthCheck sends a one-word prompt to confirm the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return errors.New("openrouter health: api key required")
	}
	answer, err := c.completeWithRetry(ctx, "openrouter health",
		c.newRequest("Answer with the single word OK.", "Are you available?"))
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToUpper(answer), "OK") {
		return fmt.Errorf("openrouter health: unexpected answer %q", snippet(answer))
	}
	return nil
}

func (c *Client) completeWithRetry(ctx context.Context, op string, req chatRequest) (string, error) {
	var last error
	attempts := c.policy.maxAttempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		answer, err := c.send(ctx, req)
		if err == nil {
			return answer, nil
		}
		err = fmt.Errorf("%s: %w", op, err)
		wait, ok := c.policy.next(ctx, err, attempt)
		if !ok {
			return "", err
		}
		if err := c.policy.wait(ctx, wait); err != nil {
			return "", err
		}
		last = err
	}
	return "", fmt.Errorf("%s: gave up after %d attempts: %w", op, attempts, last)
}
