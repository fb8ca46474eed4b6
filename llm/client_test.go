package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// httptestProvider is a minimal Provider for exercising Client against a
// real httptest.Server: it marshals messages as-is and expects
// {"content": "...", "status": <optional>} shaped responses.
type httptestProvider struct{}

func (httptestProvider) Name() string { return "httptest-stub" }

func (httptestProvider) BuildURL(baseURL string) string { return baseURL + "/complete" }

func (httptestProvider) SetHeaders(req *http.Request) { req.Header.Set("X-Stub", "1") }

func (httptestProvider) BuildRequestBody(model string, messages []Message, _ *float64, _ int) ([]byte, error) {
	return json.Marshal(struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}{Model: model, Messages: messages})
}

func (httptestProvider) ParseResponse(body []byte, model string) (*Response, error) {
	var parsed struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &Response{Content: parsed.Content, Model: model}, nil
}

func init() {
	RegisterProvider(httptestProvider{})
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 1, MaxBackoff: 5 * time.Millisecond}
}

func TestClient_Complete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.Header.Get("X-Stub"))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "hello there"})
	}))
	defer srv.Close()

	c := NewClient(Endpoint{Provider: "httptest-stub", Model: "test-model", BaseURL: srv.URL}, WithRetryConfig(fastRetryConfig()))

	resp, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Complete_RequiresAtLeastOneMessage(t *testing.T) {
	c := NewClient(Endpoint{Provider: "httptest-stub", Model: "test-model", BaseURL: "http://unused"})
	_, err := c.Complete(t.Context(), Request{})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestClient_Complete_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("temporarily unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "eventually ok"})
	}))
	defer srv.Close()

	c := NewClient(Endpoint{Provider: "httptest-stub", Model: "test-model", BaseURL: srv.URL}, WithRetryConfig(fastRetryConfig()))

	resp, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "eventually ok", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Complete_FatalErrorSkipsRetryButTriesFallback(t *testing.T) {
	var primaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("unauthorized"))
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "from fallback"})
	}))
	defer fallback.Close()

	c := NewClient(
		Endpoint{Provider: "httptest-stub", Model: "test-model", BaseURL: primary.URL},
		WithRetryConfig(fastRetryConfig()),
		WithFallbacks(Endpoint{Provider: "httptest-stub", Model: "test-model", BaseURL: fallback.URL}),
	)

	resp, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Content)
	// A fatal error is not retried against the same endpoint.
	assert.Equal(t, int32(1), primaryCalls.Load())
}

func TestClient_Complete_AllEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	c := NewClient(Endpoint{Provider: "httptest-stub", Model: "test-model", BaseURL: srv.URL}, WithRetryConfig(fastRetryConfig()))

	_, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
}

func TestClient_CompleteJSON_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"content": `{"score": 90}`})
	}))
	defer srv.Close()

	c := NewClient(Endpoint{Provider: "httptest-stub", Model: "test-model", BaseURL: srv.URL}, WithRetryConfig(fastRetryConfig()))

	raw, resp, err := c.CompleteJSON(t.Context(), Request{Messages: []Message{{Role: "user", Content: "score this"}}}, 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 90}`, raw)
	assert.NotNil(t, resp)
}

func TestClient_CompleteJSON_CorrectiveRetryThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.WriteHeader(http.StatusOK)
		if n == 1 {
			_ = json.NewEncoder(w).Encode(map[string]string{"content": "not json at all"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"content": `{"score": 50}`})
	}))
	defer srv.Close()

	c := NewClient(Endpoint{Provider: "httptest-stub", Model: "test-model", BaseURL: srv.URL}, WithRetryConfig(fastRetryConfig()))

	raw, _, err := c.CompleteJSON(t.Context(), Request{Messages: []Message{{Role: "user", Content: "score this"}}}, 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 50}`, raw)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_CompleteJSON_ExhaustsRetriesReturnsMalformedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "still not json"})
	}))
	defer srv.Close()

	c := NewClient(Endpoint{Provider: "httptest-stub", Model: "test-model", BaseURL: srv.URL}, WithRetryConfig(fastRetryConfig()))

	_, _, err := c.CompleteJSON(t.Context(), Request{Messages: []Message{{Role: "user", Content: "score this"}}}, 2)
	require.Error(t, err)

	var malformed *MalformedOutputError
	assert.ErrorAs(t, err, &malformed)
}
