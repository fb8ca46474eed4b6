// Package retrieval provides a keyword-query client against an external
// retrieval service, returning normalized evidence snippets.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/docuplan/llm"
)

const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Snippet is a single piece of evidence returned by the retrieval service.
type Snippet struct {
	Content string
	Source  string
}

// Client queries a keyword-based retrieval endpoint.
type Client struct {
	baseURL    string
	resultPath []string // dotted path to the snippet array, e.g. ["results"]
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithResultPath overrides the dotted JSON path used to find the snippet
// array in the response body. Defaults to "results".
func WithResultPath(path string) ClientOption {
	return func(cl *Client) {
		if path != "" {
			cl.resultPath = strings.Split(path, ".")
		}
	}
}

// NewClient creates a Client against baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		resultPath: []string{"results"},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a keyword query and returns normalized snippets. An empty
// result set is returned (not an error) when the service responds but finds
// nothing — callers treat that as RetrievalUnavailable-shaped silence per
// the pipeline's error taxonomy, not a hard failure.
func (c *Client) Search(ctx context.Context, query string) ([]Snippet, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("parse retrieval base url: %w", err))
	}
	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("create retrieval request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("retrieval request failed", "query", query, "error", err)
		return nil, llm.NewTransientError(fmt.Errorf("retrieval request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("read retrieval response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("retrieval service returned non-200, treating as unavailable",
			"status", resp.StatusCode, "query", query)
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		c.logger.Warn("retrieval response was not valid JSON, treating as unavailable",
			"query", query, "error", err)
		return nil, nil
	}

	items := navigatePath(doc, c.resultPath)
	arr, ok := items.([]any)
	if !ok {
		return nil, nil
	}

	snippets := make([]Snippet, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, _ := m["content"].(string)
		if content == "" {
			continue
		}
		source, _ := m["source"].(string)

		normalized := Normalize(content)
		if normalized == "" {
			continue
		}
		snippets = append(snippets, Snippet{Content: normalized, Source: source})
	}

	return snippets, nil
}

func navigatePath(doc any, path []string) any {
	cur := doc
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}
