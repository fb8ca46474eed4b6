// Package planner implements the structure and guidance phases of document
// planning: one call proposes the outline, then a bounded pool of calls
// fills in per-part writing guidance.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360studio/docuplan/llm"
	"github.com/c360studio/docuplan/plan"
)

// Config configures the Planner agent.
type Config struct {
	MaxFormatRetries int
	GuidanceWorkers  int
}

// Agent builds a Plan from a free-text request.
type Agent struct {
	client llm.Completer
	cfg    Config
	logger *slog.Logger
}

// New creates a Planner agent.
func New(client llm.Completer, cfg Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFormatRetries <= 0 {
		cfg.MaxFormatRetries = 3
	}
	if cfg.GuidanceWorkers <= 0 {
		cfg.GuidanceWorkers = 1
	}
	return &Agent{client: client, cfg: cfg, logger: logger}
}

// structureResponse is the JSON shape requested in the structure prompt.
type structureResponse struct {
	Title string      `json:"title"`
	Goal  string       `json:"goal"`
	Parts []structurePart `json:"parts"`
}

type structurePart struct {
	Heading string          `json:"heading"`
	Leaves  []structureLeaf `json:"leaves"`
}

type structureLeaf struct {
	Heading string `json:"heading"`
}

// Plan runs the structure phase followed by the guidance phase and returns
// the resulting Plan.
func (a *Agent) Plan(ctx context.Context, request string) (*plan.Plan, error) {
	p, err := a.buildStructure(ctx, request)
	if err != nil {
		return nil, err
	}

	a.fillGuidance(ctx, p)

	return p, nil
}

func (a *Agent) buildStructure(ctx context.Context, request string) (*plan.Plan, error) {
	raw, _, err := a.client.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: structurePrompt(request)},
		},
	}, a.cfg.MaxFormatRetries)

	if err != nil {
		a.logger.Warn("structure phase exhausted format retries, using default skeleton", "error", err)
		return defaultSkeleton(request), nil
	}

	var parsed structureResponse
	if jsonErr := json.Unmarshal([]byte(raw), &parsed); jsonErr != nil {
		a.logger.Warn("structure phase JSON did not match expected shape, using default skeleton", "error", jsonErr)
		return defaultSkeleton(request), nil
	}

	if len(parsed.Parts) == 0 {
		a.logger.Warn("structure phase produced zero parts, using default skeleton")
		return defaultSkeleton(request), nil
	}

	return toPlan(parsed, request), nil
}

func toPlan(parsed structureResponse, request string) *plan.Plan {
	title := parsed.Title
	if title == "" {
		title = "Untitled Document"
	}
	goal := parsed.Goal
	if goal == "" {
		goal = request
	}

	p := &plan.Plan{Title: title, Goal: goal}
	for i, sp := range parsed.Parts {
		part := &plan.Part{
			ID:      fmt.Sprintf("part-%d", i+1),
			Heading: sp.Heading,
		}
		for j, sl := range sp.Leaves {
			part.Leaves = append(part.Leaves, &plan.Leaf{
				ID:      fmt.Sprintf("part-%d-leaf-%d", i+1, j+1),
				Heading: sl.Heading,
			})
		}
		p.Parts = append(p.Parts, part)
	}
	return p
}

// fillGuidance runs the guidance phase: one LLM call per part, dispatched
// through a pool bounded at cfg.GuidanceWorkers. Each worker only ever
// writes to the single *Part it was handed, so there is no cross-part
// aliasing to guard against.
func (a *Agent) fillGuidance(ctx context.Context, p *plan.Plan) {
	sem := make(chan struct{}, a.cfg.GuidanceWorkers)
	var wg sync.WaitGroup

	for _, part := range p.Parts {
		part := part

		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			a.fillPartGuidance(ctx, p.Goal, part)
		}()
	}

	wg.Wait()
}

// defaultHowToWrite is the neutral instruction applied to any leaf the
// guidance phase's response did not address by name.
const defaultHowToWrite = "Cover this subsection's topic clearly and concisely, in context with the rest of the section."

// guidanceResponse is the JSON shape requested in the guidance prompt.
type guidanceResponse struct {
	Guides []guidanceGuide `json:"guides"`
}

type guidanceGuide struct {
	Subtitle   string `json:"subtitle"`
	HowToWrite string `json:"how_to_write"`
}

func (a *Agent) fillPartGuidance(ctx context.Context, goal string, part *plan.Part) {
	headings := make([]string, len(part.Leaves))
	for i, leaf := range part.Leaves {
		headings[i] = leaf.Heading
	}

	raw, _, err := a.client.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: guidancePrompt(goal, part.Heading, headings)},
		},
	}, a.cfg.MaxFormatRetries)
	if err != nil {
		a.logger.Warn("guidance call failed, applying default instruction to every leaf", "part", part.ID, "error", err)
		for _, leaf := range part.Leaves {
			leaf.HowToWrite = defaultHowToWrite
		}
		return
	}

	var parsed guidanceResponse
	if jsonErr := json.Unmarshal([]byte(raw), &parsed); jsonErr != nil {
		a.logger.Warn("guidance JSON did not match expected shape, applying default instruction to every leaf", "part", part.ID, "error", jsonErr)
		for _, leaf := range part.Leaves {
			leaf.HowToWrite = defaultHowToWrite
		}
		return
	}

	byHeading := make(map[string]string, len(parsed.Guides))
	for _, g := range parsed.Guides {
		byHeading[g.Subtitle] = g.HowToWrite
	}

	for _, leaf := range part.Leaves {
		howToWrite, ok := byHeading[leaf.Heading]
		if !ok || howToWrite == "" {
			a.logger.Warn("guidance response did not address leaf, applying default instruction", "part", part.ID, "leaf", leaf.Heading)
			leaf.HowToWrite = defaultHowToWrite
			continue
		}
		leaf.HowToWrite = howToWrite
	}
}
