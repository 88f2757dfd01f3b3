package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultHTTPTimeout = 60 * time.Second

// Config captures the runtime settings required to talk to the Gemini API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	GoogleSearch   bool
	TimeoutSeconds int
}

// Client wraps genai model generation with optional Google Search grounding.
type Client struct {
	cfg        Config
	httpClient *http.Client
	genai      *genai.Client
}

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

// NewClient constructs a Gemini client. Without an API key the returned client
// is unconfigured and every request fails fast.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			GoogleSearch:   cfg.GoogleSearch,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.APIKey == "" {
		return client, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     client.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: client.httpClient,
	}
	if client.cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: client.cfg.BaseURL}
	}
	gc, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	client.genai = gc
	return client, nil
}

// Configured reports whether the client has credentials to issue requests.
func (c *Client) Configured() bool {
	return c != nil && c.genai != nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// Complete generates a plain-text answer for the supplied prompts.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", errors.New("gemini complete: user prompt required")
	}
	if !c.Configured() {
		return "", errors.New("gemini complete: api key required")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if c.cfg.GoogleSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	started := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(userPrompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini complete: generate (latency=%s): %w", time.Since(started).Round(time.Millisecond), err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini complete: empty response")
	}
	return text, nil
}

// HealthCheck issues a minimal generation to verify the key and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	text, err := c.Complete(ctx, "Answer with the single word OK.", "Are you available?")
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToUpper(text), "OK") {
		return fmt.Errorf("gemini health: unexpected response %q", text)
	}
	return nil
}
