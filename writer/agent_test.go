package writer

import (
	"context"
	"strings"
	"testing"

	"github.com/c360studio/docuplan/llm"
	"github.com/c360studio/docuplan/llm/llmtest"
	"github.com/c360studio/docuplan/plan"
	"github.com/stretchr/testify/assert"
)

const longDraft = "This is a perfectly reasonable paragraph of prose about the topic at hand, " +
	"providing enough context and detail that a reader unfamiliar with the subject could " +
	"follow along without getting lost, which is exactly what a passable first draft needs " +
	"to do before anyone asks for revisions."

const revisedDraft = "This is a much better, more specific paragraph addressing the feedback given " +
	"on the previous attempt, adding the concrete detail and direct examples that were " +
	"missing before, so the section now reads as complete rather than a rough sketch " +
	"of what it might eventually say."

func TestAgent_Write_AcceptsFirstGoodDraft(t *testing.T) {
	mock := &llmtest.MockClient{Responses: []*llm.Response{
		{Content: longDraft},
		{Content: `{"score": 85, "feedback": "good"}`},
	}}

	agent := New(mock, Config{MaxAttempts: 3, QualityThreshold: 0.7}, nil, nil)
	p := &plan.Plan{Parts: []*plan.Part{{Leaves: []*plan.Leaf{{ID: "l1", Heading: "Topic"}}}}}

	agent.Write(context.Background(), p, "goal")

	leaf := p.Parts[0].Leaves[0]
	assert.True(t, leaf.Draft.Done)
	assert.Equal(t, 1, leaf.Draft.Attempts)
	assert.NotEmpty(t, leaf.Draft.Text)
}

func TestAgent_Write_RetriesOnLowScore(t *testing.T) {
	mock := &llmtest.MockClient{Responses: []*llm.Response{
		{Content: longDraft},
		{Content: `{"score": 40, "feedback": "too vague"}`},
		{Content: revisedDraft},
		{Content: `{"score": 90, "feedback": "great"}`},
	}}

	agent := New(mock, Config{MaxAttempts: 3, QualityThreshold: 0.7}, nil, nil)
	p := &plan.Plan{Parts: []*plan.Part{{Leaves: []*plan.Leaf{{ID: "l1", Heading: "Topic"}}}}}

	agent.Write(context.Background(), p, "goal")

	leaf := p.Parts[0].Leaves[0]
	assert.True(t, leaf.Draft.Done)
	assert.Equal(t, 2, leaf.Draft.Attempts)
}

func TestAgent_Write_FastCheckRejectsShortDraftWithoutEvaluationCall(t *testing.T) {
	mock := &llmtest.MockClient{Responses: []*llm.Response{
		{Content: "too short"},
		{Content: longDraft},
		{Content: `{"score": 90, "feedback": "great"}`},
	}}

	agent := New(mock, Config{MaxAttempts: 3, QualityThreshold: 0.7}, nil, nil)
	p := &plan.Plan{Parts: []*plan.Part{{Leaves: []*plan.Leaf{{ID: "l1", Heading: "Topic"}}}}}

	agent.Write(context.Background(), p, "goal")

	leaf := p.Parts[0].Leaves[0]
	// Fast check burns one attempt without consuming an evaluation call,
	// so only 3 Complete-ish calls happen: short draft, good draft, score.
	assert.Equal(t, 3, mock.GetCallCount())
	assert.Equal(t, 0.1, leaf.Draft.Scores[0])
}

func TestAgent_Write_FastCheckRejectsErrorEnvelope(t *testing.T) {
	mock := &llmtest.MockClient{Responses: []*llm.Response{
		{Content: `[{"error": "upstream timeout"}]`},
		{Content: longDraft},
		{Content: `{"score": 90, "feedback": "great"}`},
	}}

	agent := New(mock, Config{MaxAttempts: 3, QualityThreshold: 0.7}, nil, nil)
	p := &plan.Plan{Parts: []*plan.Part{{Leaves: []*plan.Leaf{{ID: "l1", Heading: "Topic"}}}}}

	agent.Write(context.Background(), p, "goal")

	leaf := p.Parts[0].Leaves[0]
	assert.Equal(t, 0.0, leaf.Draft.Scores[0])
}

func TestAgent_Write_ExhaustsAttemptsGracefully(t *testing.T) {
	mock := &llmtest.MockClient{Responses: []*llm.Response{
		{Content: longDraft},
		{Content: `{"score": 20, "feedback": "nope"}`},
		{Content: revisedDraft},
		{Content: `{"score": 20, "feedback": "nope"}`},
	}}

	agent := New(mock, Config{MaxAttempts: 2, QualityThreshold: 0.7}, nil, nil)
	p := &plan.Plan{Parts: []*plan.Part{{Leaves: []*plan.Leaf{{ID: "l1", Heading: "Topic"}}}}}

	agent.Write(context.Background(), p, "goal")

	leaf := p.Parts[0].Leaves[0]
	assert.True(t, leaf.Draft.Done)
	assert.Equal(t, 2, leaf.Draft.Attempts)
	assert.NotEqual(t, unavailablePlaceholder, leaf.Draft.Text)
}

func TestAgent_Write_UnrecoverableFailureSetsPlaceholder(t *testing.T) {
	mock := &llmtest.MockClient{Err: assert.AnError}

	agent := New(mock, Config{MaxAttempts: 2, QualityThreshold: 0.7}, nil, nil)
	p := &plan.Plan{Parts: []*plan.Part{{Leaves: []*plan.Leaf{{ID: "l1", Heading: "Topic"}}}}}

	agent.Write(context.Background(), p, "goal")

	leaf := p.Parts[0].Leaves[0]
	assert.True(t, leaf.Draft.Done)
	assert.Equal(t, unavailablePlaceholder, leaf.Draft.Text)
	assert.Equal(t, []float64{0.0}, leaf.Draft.Scores)
}

func TestClean_Idempotent(t *testing.T) {
	in := "Line one.\n\n\n\n\nLine two.   \n"
	once := clean(in, "Topic")
	twice := clean(once, "Topic")
	assert.Equal(t, once, twice)
	assert.Equal(t, "Line one.\n\nLine two.", once)
}

func TestClean_StripsLeadingSubtitleAndMarkdownMarkers(t *testing.T) {
	in := "## Topic\n\n**Bold** statement with _emphasis_ throughout."
	once := clean(in, "Topic")
	twice := clean(once, "Topic")
	assert.Equal(t, once, twice)
	assert.NotContains(t, once, "#")
	assert.NotContains(t, once, "*")
	assert.NotContains(t, once, "_")
}

func TestFastCheck_Tiers(t *testing.T) {
	short := fastCheck("too short")
	assert.False(t, short.ok)
	assert.Equal(t, 0.1, short.score)

	long := fastCheck(strings.Repeat("word ", 500))
	assert.False(t, long.ok)
	assert.Equal(t, 0.4, long.score)

	envelope := fastCheck(`[{"error": "bad"}]`)
	assert.False(t, envelope.ok)
	assert.Equal(t, 0.0, envelope.score)

	good := fastCheck(longDraft)
	assert.True(t, good.ok)
}
