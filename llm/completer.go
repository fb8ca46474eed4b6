package llm

import "context"

// Completer is the interface pipeline stages depend on, satisfied by
// *Client and by llmtest.MockClient in tests.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	CompleteJSON(ctx context.Context, req Request, maxFormatRetries int) (string, *Response, error)
}

var _ Completer = (*Client)(nil)
