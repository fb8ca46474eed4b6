// Package writer implements the per-leaf draft/evaluate loop: a fast rule
// check gates an expensive model evaluation, and a bounded worker pool
// writes leaves concurrently.
package writer

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"

	"github.com/c360studio/docuplan/llm"
	"github.com/c360studio/docuplan/plan"
)

// Config configures the Writer agent.
type Config struct {
	MaxAttempts      int
	QualityThreshold float64
	Workers          int
}

// ProgressRecorder is the subset of progress.Tracker the agent uses.
type ProgressRecorder interface {
	RecordLeafComplete(stage, leafID string, iteration int, score float64)
}

// Agent writes prose for every leaf of a Plan.
type Agent struct {
	client llm.Completer
	cfg    Config
	prog   ProgressRecorder
	logger *slog.Logger
}

// New creates a Writer agent.
func New(client llm.Completer, cfg Config, prog ProgressRecorder, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = 0.7
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	return &Agent{client: client, cfg: cfg, prog: prog, logger: logger}
}

// Write runs the per-leaf draft loop for every leaf in the plan, dispatched
// through a pool bounded at cfg.Workers. Each worker only mutates the
// single *plan.Leaf it was handed.
func (a *Agent) Write(ctx context.Context, p *plan.Plan, goal string) {
	sem := make(chan struct{}, a.cfg.Workers)
	var wg sync.WaitGroup

	for _, part := range p.Parts {
		for _, leaf := range part.Leaves {
			leaf := leaf

			wg.Add(1)
			go func() {
				defer wg.Done()

				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					return
				}

				a.writeLeaf(ctx, goal, leaf)
			}()
		}
	}

	wg.Wait()
}

// unavailablePlaceholder is the fixed prose substituted when every draft
// attempt fails to produce any LLM output at all.
const unavailablePlaceholder = "Content unavailable for this section."

func (a *Agent) writeLeaf(ctx context.Context, goal string, leaf *plan.Leaf) {
	var feedback string
	var gotDraft bool

	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}

		resp, err := a.client.Complete(ctx, llm.Request{
			Messages: []llm.Message{
				{Role: "user", Content: draftPrompt(goal, leaf.Heading, leaf.HowToWrite, leaf.Evidence, feedback)},
			},
		})
		if err != nil {
			a.logger.Warn("draft call failed", "leaf", leaf.ID, "attempt", attempt+1, "error", err)
			leaf.Draft.Attempts = attempt + 1
			continue
		}
		gotDraft = true

		draft := clean(resp.Content, leaf.Heading)

		if check := fastCheck(draft); !check.ok {
			feedback = check.feedback
			leaf.Draft.Attempts = attempt + 1
			leaf.Draft.Scores = append(leaf.Draft.Scores, check.score)
			leaf.Draft.Text = draft
			if a.prog != nil {
				a.prog.RecordLeafComplete("writer", leaf.ID, attempt+1, check.score)
			}
			continue
		}

		score, evalFeedback := a.evaluate(ctx, goal, leaf.Heading, leaf.HowToWrite, leaf.Evidence, draft)
		leaf.Draft.Attempts = attempt + 1
		leaf.Draft.Scores = append(leaf.Draft.Scores, score)
		leaf.Draft.Text = draft

		if a.prog != nil {
			a.prog.RecordLeafComplete("writer", leaf.ID, attempt+1, score)
		}

		if score >= a.cfg.QualityThreshold {
			leaf.Draft.Done = true
			return
		}

		feedback = evalFeedback
	}

	if !gotDraft {
		// Every attempt failed to reach the model at all: an unrecoverable
		// failure, distinct from drafts that kept scoring below threshold.
		leaf.Draft.Text = unavailablePlaceholder
		leaf.Draft.Scores = append(leaf.Draft.Scores, 0.0)
		leaf.Draft.Done = true
		a.logger.Warn("every draft attempt failed, using placeholder prose", "leaf", leaf.ID)
		return
	}

	// Attempt budget exhausted: keep the last draft produced, logged as
	// QualityBelowThreshold rather than failing the leaf.
	leaf.Draft.Done = true
	a.logger.Info("leaf writing exhausted attempt budget below quality threshold",
		"leaf", leaf.ID, "attempts", leaf.Draft.Attempts)
}

func (a *Agent) evaluate(ctx context.Context, goal, heading, howToWrite, evidence, draft string) (float64, string) {
	raw, _, err := a.client.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: evaluatePrompt(goal, heading, howToWrite, evidence, draft)},
		},
	}, 2)
	if err != nil {
		a.logger.Warn("draft evaluation call failed, treating as zero score", "error", err)
		return 0, "evaluation failed; revise for clarity and accuracy"
	}

	var parsed struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		a.logger.Warn("draft evaluation response did not match expected shape", "error", err)
		return 0, "evaluation response was malformed; revise for clarity"
	}

	return normalizeScore(parsed.Score), parsed.Feedback
}

// normalizeScore converts a 0-100 model score into a 0-1 quality score,
// clamped to the valid range.
func normalizeScore(raw float64) float64 {
	v := raw / 100
	return math.Min(1, math.Max(0, v))
}
