// Package llmtest provides test doubles for the llm package.
package llmtest

import (
	"context"
	"sync"

	"github.com/c360studio/docuplan/llm"
)

// MockClient is a thread-safe mock llm.Completer for testing. It captures
// the context passed to Complete/CompleteJSON and returns configured
// responses in sequence.
//
// Usage:
//
//	mock := &MockClient{Responses: []*llm.Response{
//	    {Content: `{"result": "success"}`, Model: "test-model"},
//	}}
type MockClient struct {
	mu              sync.Mutex
	capturedContext context.Context
	Responses       []*llm.Response // returned in sequence
	Err             error           // takes precedence over Responses
	callCount       int
	responseIndex   int
}

// Complete returns the next queued response, or Err if set.
func (m *MockClient) Complete(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capturedContext = ctx
	m.callCount++

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// CompleteJSON extracts JSON from the next queued response's content, using
// the same extraction rules as the real client so format-retry tests can
// queue unparseable-then-parseable responses.
func (m *MockClient) CompleteJSON(ctx context.Context, req llm.Request, maxFormatRetries int) (string, *llm.Response, error) {
	if maxFormatRetries <= 0 {
		maxFormatRetries = 1
	}

	var lastResp *llm.Response
	for attempt := 1; attempt <= maxFormatRetries; attempt++ {
		resp, err := m.Complete(ctx, req)
		if err != nil {
			return "", nil, err
		}
		lastResp = resp

		extracted := llm.ExtractJSON(resp.Content)
		if extracted != "" {
			return extracted, resp, nil
		}
	}

	return "", lastResp, llm.NewMalformedOutputError("complete_json", errNoJSON)
}

var errNoJSON = &noJSONError{}

type noJSONError struct{}

func (e *noJSONError) Error() string { return "no JSON object found in model output" }

// GetCapturedContext returns the last context passed to Complete.
func (m *MockClient) GetCapturedContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturedContext
}

// GetCallCount returns the number of times Complete was called.
func (m *MockClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears call count, response index, and captured context.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.responseIndex = 0
	m.capturedContext = nil
}

var _ llm.Completer = (*MockClient)(nil)
