package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"pinchy/internal/config"
	appLog "pinchy/internal/log"
)

var (
	// ErrNotConfigured is returned when the gateway URL or token is missing.
	ErrNotConfigured = errors.New("gateway: url or token not configured")
	// ErrCircuitOpen is returned while the breaker rejects calls after
	// repeated failures.
	ErrCircuitOpen = errors.New("gateway: circuit open")
	// ErrEmptyContent is returned when the agent answered with no text.
	ErrEmptyContent = errors.New("gateway: empty content")
)

const (
	completionsPath = "/v1/chat/completions"

	breakerFailures = 3
	breakerTimeout  = time.Minute
)

// StatusError reports a non-200 gateway response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned HTTP %d", e.Code)
}

// Client talks to the OpenClaw gateway's OpenAI compatible chat
// completions endpoint.
type Client struct {
	baseURL   string
	token     string
	model     string
	maxTokens int

	client  *http.Client
	breaker *gobreaker.CircuitBreaker[string]
}

// NewClient creates a gateway client from config. A zero TimeoutSeconds
// means 30 seconds.
func NewClient(cfg config.GatewayConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "openclaw:main"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		token:     cfg.Token,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "gateway",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			appLog.Info("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

// Configured reports whether both URL and token are set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.token != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends a single user prompt and returns the first choice's
// content. maxTokens <= 0 uses the configured default.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	content, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, prompt, maxTokens)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", ErrCircuitOpen
	}
	return content, err
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	appLog.Debug("gateway request start", "url", redactURL(c.baseURL), "model", c.model)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gateway read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(raw)
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return "", &StatusError{Code: resp.StatusCode, Body: snippet}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("gateway decode: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyContent
	}

	content := parsed.Choices[0].Message.Content
	appLog.Debug("gateway response", "url", redactURL(c.baseURL), "chars", len(content))
	return content, nil
}

// redactURL keeps only scheme and host of a gateway URL for logging.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "gateway://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
