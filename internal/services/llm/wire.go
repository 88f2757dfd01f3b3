package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Plugins     []plugin  `json:"plugins,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type plugin struct {
	ID         string `json:"id"`
	MaxResults int    `json:"max_results,omitempty"`
}

// choice tolerates providers that answer a non-streaming request with the
// streaming "delta" shape or the legacy completion "text" field.
type choice struct {
	Message      answerBody `json:"message"`
	Delta        answerBody `json:"delta"`
	Text         string     `json:"text"`
	FinishReason string     `json:"finish_reason"`
}

type answerBody struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

type chatResponse struct {
	Choices []choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError is a non-2xx reply. RetryAfter is zero when the header was
// absent or unparsable.
type statusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, snippet(e.Body))
}

// emptyAnswerError means the reply parsed but carried no usable text.
type emptyAnswerError struct {
	FinishReason string
	Refusal      string
	Body         string
}

func (e *emptyAnswerError) Error() string {
	return fmt.Sprintf("empty answer (finish_reason=%q, refusal=%q, body=%s)",
		e.FinishReason, e.Refusal, snippet(e.Body))
}

func (c *Client) newRequest(systemPrompt, userPrompt string) chatRequest {
	return chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
}

// send performs one round trip and extracts the answer text.
func (c *Client) send(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post (timeout=%s): %w", c.http.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &statusError{Code: resp.StatusCode, Body: string(raw), RetryAfter: wait}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	return answerText(decoded, raw)
}

func answerText(resp chatResponse, raw []byte) (string, error) {
	empty := &emptyAnswerError{Body: string(raw)}
	for _, ch := range resp.Choices {
		for _, candidate := range []string{ch.Message.Content, ch.Delta.Content, ch.Text} {
			if text := strings.TrimSpace(candidate); text != "" {
				return text, nil
			}
		}
		if empty.FinishReason == "" {
			empty.FinishReason = ch.FinishReason
		}
		if empty.Refusal == "" {
			empty.Refusal = strings.TrimSpace(ch.Message.Refusal + ch.Delta.Refusal)
		}
	}
	return "", empty
}

// snippet flattens whitespace and caps text for error messages.
func snippet(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	if flat == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(flat); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return flat
}
