package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	out := ExtractJSON(`here you go: {"a": 1, "b": 2} thanks`)
	assert.JSONEq(t, `{"a": 1, "b": 2}`, out)
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	input := "```json\n{\"a\": 1}\n```"
	out := ExtractJSON(input)
	assert.JSONEq(t, `{"a": 1}`, out)
}

func TestExtractJSON_TrailingCommasRemoved(t *testing.T) {
	out := ExtractJSON(`{"a": 1, "b": 2,}`)
	assert.JSONEq(t, `{"a": 1, "b": 2}`, out)
}

func TestExtractJSON_LineCommentStrippedOutsideString(t *testing.T) {
	input := "{\n  \"a\": 1 // the answer\n}"
	out := ExtractJSON(input)
	assert.JSONEq(t, `{"a": 1}`, out)
}

func TestExtractJSON_LineCommentMarkerInsideStringPreserved(t *testing.T) {
	input := `{"url": "https://example.com/path"}`
	out := ExtractJSON(input)
	assert.JSONEq(t, `{"url": "https://example.com/path"}`, out)
}

func TestExtractJSON_NoObjectReturnsEmpty(t *testing.T) {
	assert.Empty(t, ExtractJSON("just some prose, no braces here"))
}

func TestExtractJSONArray_PlainArray(t *testing.T) {
	out := ExtractJSONArray(`prefix [1, 2, 3] suffix`)
	assert.JSONEq(t, `[1, 2, 3]`, out)
}

func TestExtractJSONArray_MarkdownFence(t *testing.T) {
	input := "```json\n[\"a\", \"b\"]\n```"
	out := ExtractJSONArray(input)
	assert.JSONEq(t, `["a", "b"]`, out)
}

func TestExtractJSONArray_NoArrayReturnsEmpty(t *testing.T) {
	assert.Empty(t, ExtractJSONArray("no array here"))
}
