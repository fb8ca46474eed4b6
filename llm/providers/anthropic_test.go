package providers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/c360studio/docuplan/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_BuildURL(t *testing.T) {
	p := &AnthropicProvider{}
	assert.Equal(t, "https://api.anthropic.com/v1/messages", p.BuildURL(""))
	assert.Equal(t, "https://gateway.internal/v1/messages", p.BuildURL("https://gateway.internal"))
}

func TestAnthropicProvider_SetHeaders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-test-key")
	p := &AnthropicProvider{}
	req := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
	p.SetHeaders(req)
	assert.Equal(t, "anthropic-test-key", req.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
}

func TestAnthropicProvider_BuildRequestBody_SeparatesSystemMessage(t *testing.T) {
	p := &AnthropicProvider{}
	body, err := p.BuildRequestBody("claude-3-5-sonnet", []llm.Message{
		{Role: "system", Content: "be concise"},
		{Role: "user", Content: "hi"},
	}, nil, 0)
	require.NoError(t, err)

	var decoded anthropicRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "be concise", decoded.System)
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, "user", decoded.Messages[0].Role)
	assert.Equal(t, 4096, decoded.MaxTokens) // default applied when maxTokens <= 0
}

func TestAnthropicProvider_ParseResponse_ConcatenatesTextBlocks(t *testing.T) {
	p := &AnthropicProvider{}
	body := []byte(`{
		"model": "claude-3-5-sonnet",
		"stop_reason": "end_turn",
		"content": [{"type": "text", "text": "hello "}, {"type": "text", "text": "world"}],
		"usage": {"input_tokens": 10, "output_tokens": 4}
	}`)

	resp, err := p.ParseResponse(body, "unused")
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 14, resp.TokensUsed)
}
