package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/c360studio/docuplan/llm"
	"github.com/c360studio/docuplan/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgent_Plan_HappyPath(t *testing.T) {
	mock := &llmtest.MockClient{
		Responses: []*llm.Response{
			{Content: `{"title":"Guide","goal":"explain X","parts":[
				{"heading":"Intro","leaves":[{"heading":"Background"},{"heading":"Scope"}]}
			]}`},
			{Content: `{"guides":[
				{"subtitle":"Background","how_to_write":"Cover the background and motivation behind this request in two or three sentences, tying it to the document's overall goal."},
				{"subtitle":"Scope","how_to_write":"State plainly what is and is not covered by this document, so readers can calibrate expectations up front."}
			]}`},
		},
	}

	agent := New(mock, Config{MaxFormatRetries: 3, GuidanceWorkers: 1}, nil)
	p, err := agent.Plan(context.Background(), "explain X")
	require.NoError(t, err)

	assert.Equal(t, "Guide", p.Title)
	require.Len(t, p.Parts, 1)
	assert.Equal(t, "Intro", p.Parts[0].Heading)
	require.Len(t, p.Parts[0].Leaves, 2)
	assert.Contains(t, p.Parts[0].Leaves[0].HowToWrite, "background and motivation")
	assert.Contains(t, p.Parts[0].Leaves[1].HowToWrite, "is and is not covered")
	assert.Equal(t, 2, mock.GetCallCount())
}

func TestAgent_Plan_GuidanceDefaultsUnmatchedLeaf(t *testing.T) {
	mock := &llmtest.MockClient{
		Responses: []*llm.Response{
			{Content: `{"title":"Guide","goal":"explain X","parts":[
				{"heading":"Intro","leaves":[{"heading":"Background"},{"heading":"Scope"}]}
			]}`},
			{Content: `{"guides":[{"subtitle":"Background","how_to_write":"Cover the background and motivation."}]}`},
		},
	}

	agent := New(mock, Config{MaxFormatRetries: 3, GuidanceWorkers: 1}, nil)
	p, err := agent.Plan(context.Background(), "explain X")
	require.NoError(t, err)

	require.Len(t, p.Parts[0].Leaves, 2)
	assert.Equal(t, "Cover the background and motivation.", p.Parts[0].Leaves[0].HowToWrite)
	assert.Equal(t, defaultHowToWrite, p.Parts[0].Leaves[1].HowToWrite)
}

func TestAgent_Plan_FallsBackToSkeletonOnMalformedJSON(t *testing.T) {
	mock := &llmtest.MockClient{
		Responses: []*llm.Response{
			{Content: "not json at all"},
			{Content: "still not json"},
			{Content: "nope"},
		},
	}

	agent := New(mock, Config{MaxFormatRetries: 3, GuidanceWorkers: 1}, nil)
	p, err := agent.Plan(context.Background(), "my request")
	require.NoError(t, err)

	assert.Equal(t, "Untitled Document", p.Title)
	assert.Equal(t, "my request", p.Goal)
	require.Len(t, p.Parts, 1)
}

func TestAgent_Plan_StructurePhaseErrorFallsBackToSkeleton(t *testing.T) {
	mock := &llmtest.MockClient{Err: errors.New("connection refused")}

	agent := New(mock, Config{}, nil)
	p, err := agent.Plan(context.Background(), "req")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Document", p.Title)
}

func TestAgent_Plan_GuidanceWorkersBoundedToOneByDefault(t *testing.T) {
	mock := &llmtest.MockClient{
		Responses: []*llm.Response{
			{Content: `{"title":"T","goal":"G","parts":[
				{"heading":"A","leaves":[{"heading":"a1"}]},
				{"heading":"B","leaves":[{"heading":"b1"}]},
				{"heading":"C","leaves":[{"heading":"c1"}]}
			]}`},
			{Content: "guidance A"},
			{Content: "guidance B"},
			{Content: "guidance C"},
		},
	}

	agent := New(mock, Config{MaxFormatRetries: 1}, nil)
	assert.Equal(t, 1, agent.cfg.GuidanceWorkers)
	p, err := agent.Plan(context.Background(), "req")
	require.NoError(t, err)
	require.Len(t, p.Parts, 3)
	assert.Equal(t, 4, mock.GetCallCount())
}
