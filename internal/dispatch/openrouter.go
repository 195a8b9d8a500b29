// ABOUTME: OpenRouter completion client for aplmint
// ABOUTME: Issues single chat-completion calls and classifies failures

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds each outbound completion call. There is no
	// overall request deadline layered on top of this.
	DefaultTimeout = 30 * time.Second

	// systemPrompt is the fixed instruction sent ahead of every user prompt.
	systemPrompt = "You are a helpful assistant."
)

// Classified dispatch failures. Each maps to a distinct user-facing message
// at the admission boundary; none of them is retried here.
var (
	// ErrProviderRejected means the provider returned a non-success status
	// (bad credentials, invalid model, provider-side quota).
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrNetworkUnreachable means the transport-level call to the provider
	// failed.
	ErrNetworkUnreachable = errors.New("provider unreachable")
)

// Client issues completion requests to the OpenRouter API.
type Client struct {
	baseURL string
	apiKey  string
	referer string
	title   string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the OpenRouter endpoint. Used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// NewClient creates an OpenRouter client authenticated with the given API
// key. The referer and title identify this deployment to OpenRouter's
// attribution headers.
func NewClient(apiKey, referer, title string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		referer: referer,
		title:   title,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default().With("component", "dispatch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chatMessage is one message in the chat-completions payload.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for POST /chat/completions.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatResponse is the subset of the response body we consume.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt to the given model and returns the generated
// text, whitespace-trimmed. Exactly one call is made; failures are
// classified but never retried here.
func (c *Client) Complete(ctx context.Context, prompt, modelID string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: modelID,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	c.logger.Debug("dispatching completion", "model", modelID, "prompt_len", len(prompt))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.rejectionError(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("response contains no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// rejectionError builds an ErrProviderRejected carrying the status and a
// truncated response body for the internal log.
func (c *Client) rejectionError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	c.logger.Warn("provider rejected completion",
		"status", resp.StatusCode,
		"body", string(body),
	)
	return fmt.Errorf("%w: status %d", ErrProviderRejected, resp.StatusCode)
}
