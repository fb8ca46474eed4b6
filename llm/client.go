// Package llm provides a provider-agnostic chat-completion client with
// retry, fallback, and JSON-repair support for model endpoints.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize limits the response body read to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Endpoint describes one concrete model a Client can call.
type Endpoint struct {
	Provider string
	Model    string
	BaseURL  string
}

// Message represents a single chat turn.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request defines a completion request.
type Request struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

// TokenUsage captures token consumption for a single call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains a completion result.
type Response struct {
	RequestID    string
	Content      string
	Model        string
	TokensUsed   int
	Usage        TokenUsage
	FinishReason string
}

// Client is a provider-agnostic chat-completion client. It calls a primary
// endpoint with retry, and on a fatal failure advances through an ordered
// fallback list.
type Client struct {
	primary     Endpoint
	fallbacks   []Endpoint
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger

	// limiter, if set, is waited on before every outbound HTTP call so
	// overall request cadence to the model endpoint never exceeds the
	// configured spacing, regardless of which pipeline stage is calling.
	limiter Limiter
}

// Limiter is satisfied by ratelimit.Limiter; declared here to avoid an
// import cycle between llm and ratelimit.
type Limiter interface {
	Wait(ctx context.Context) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) { client.httpClient = c }
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) { client.retryConfig = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithFallbacks sets an ordered list of endpoints to try after the primary
// fails with a fatal (non-retryable) error.
func WithFallbacks(endpoints ...Endpoint) ClientOption {
	return func(client *Client) { client.fallbacks = endpoints }
}

// WithLimiter attaches a rate limiter that every outbound call waits on.
func WithLimiter(l Limiter) ClientOption {
	return func(client *Client) { client.limiter = l }
}

// NewClient creates a new Client for the given primary endpoint.
func NewClient(primary Endpoint, opts ...ClientOption) *Client {
	c := &Client{
		primary:     primary,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a completion request, retrying transient failures and
// falling back to configured alternate endpoints on fatal failures.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, NewFatalError(fmt.Errorf("at least one message is required"))
	}

	requestID := uuid.New().String()
	chain := append([]Endpoint{c.primary}, c.fallbacks...)

	var lastErr error
	for _, ep := range chain {
		resp, err := c.tryEndpointWithRetry(ctx, ep, req)
		if err == nil {
			resp.RequestID = requestID
			return resp, nil
		}

		lastErr = err
		c.logger.Warn("endpoint failed", "provider", ep.Provider, "model", ep.Model, "error", err)

		if IsFatal(err) {
			// A fatal error still permits trying the next configured
			// fallback, since fatal only describes this endpoint.
			continue
		}
		// A transient error has already been retried in place against this
		// endpoint; it is returned without moving to a fallback.
		break
	}

	return nil, fmt.Errorf("all endpoints failed: %w", lastErr)
}

// CompleteJSON calls Complete and extracts a JSON object from the response,
// retrying with corrective feedback appended to the conversation if the
// model's output does not parse.
func (c *Client) CompleteJSON(ctx context.Context, req Request, maxFormatRetries int) (string, *Response, error) {
	if maxFormatRetries <= 0 {
		maxFormatRetries = 1
	}

	messages := append([]Message(nil), req.Messages...)

	var lastResp *Response
	var lastErr error

	for attempt := 1; attempt <= maxFormatRetries; attempt++ {
		resp, err := c.Complete(ctx, Request{
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			return "", nil, err
		}
		lastResp = resp

		extracted := ExtractJSON(resp.Content)
		if extracted != "" {
			return extracted, resp, nil
		}

		lastErr = fmt.Errorf("no JSON object found in model output")
		if attempt == maxFormatRetries {
			break
		}

		messages = append(messages,
			Message{Role: "assistant", Content: resp.Content},
			Message{Role: "user", Content: formatCorrectionPrompt(lastErr)},
		)
	}

	return "", lastResp, NewMalformedOutputError("complete_json", lastErr)
}

func formatCorrectionPrompt(err error) string {
	return fmt.Sprintf("Your previous response could not be parsed as JSON (%s). "+
		"Reply again with a single valid JSON object and nothing else.", err)
}

func (c *Client) tryEndpointWithRetry(ctx context.Context, ep Endpoint, req Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if IsFatal(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("request failed, retrying",
				"attempt", attempt, "max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff, "error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, lastErr
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

func (c *Client) doRequest(ctx context.Context, ep Endpoint, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(errUnknownProvider(ep.Provider))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := provider.BuildURL(ep.BaseURL)

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("sending llm request", "provider", ep.Provider, "model", ep.Model, "url", url, "messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create http request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("http request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return provider.ParseResponse(respBody, ep.Model)
}

func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}
	err := fmt.Errorf("llm endpoint error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(err)
	case statusCode == http.StatusServiceUnavailable,
		statusCode == http.StatusBadGateway,
		statusCode == http.StatusGatewayTimeout:
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return NewFatalError(err)
	case statusCode == http.StatusBadRequest:
		return NewFatalError(err)
	default:
		return NewFatalError(err)
	}
}
