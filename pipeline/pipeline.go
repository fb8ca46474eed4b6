// Package pipeline wires the Planner, Retriever, Writer, and Assembler into
// a single sequential run, persisting a plan snapshot after each stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/docuplan/assembler"
	"github.com/c360studio/docuplan/config"
	"github.com/c360studio/docuplan/llm"
	_ "github.com/c360studio/docuplan/llm/providers"
	"github.com/c360studio/docuplan/plan"
	"github.com/c360studio/docuplan/planner"
	"github.com/c360studio/docuplan/progress"
	"github.com/c360studio/docuplan/ratelimit"
	"github.com/c360studio/docuplan/retrieval"
	"github.com/c360studio/docuplan/retriever"
	"github.com/c360studio/docuplan/writer"
)

// Pipeline runs the full Planner -> Retriever -> Writer -> Assembler flow.
type Pipeline struct {
	cfg     *config.Config
	store   *plan.Store
	logger  *slog.Logger
	tracker *progress.Tracker

	llmClient       llm.Completer
	retrievalClient retriever.Searcher
}

// Option overrides a Pipeline dependency, primarily for tests.
type Option func(*Pipeline)

// WithCompleter overrides the LLM client used by every stage.
func WithCompleter(c llm.Completer) Option {
	return func(p *Pipeline) { p.llmClient = c }
}

// WithSearcher overrides the retrieval client used by the Retriever stage.
func WithSearcher(s retriever.Searcher) Option {
	return func(p *Pipeline) { p.retrievalClient = s }
}

// New constructs a Pipeline from configuration. artifactDir is where the
// per-stage plan snapshots are written; the assembled document is returned
// by Run and is not written to artifactDir.
func New(cfg *config.Config, artifactDir string, tracker *progress.Tracker, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		// A caller that doesn't care about metrics still gets a tracker
		// with unregistered collectors, so stage code never has to guard
		// against a nil ProgressRecorder.
		tracker = progress.New(logger, nil)
	}

	limiter := ratelimit.New(time.Duration(cfg.RateLimit.MinSpacingS * float64(time.Second)))

	client := llm.NewClient(llm.Endpoint{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.Endpoint,
	},
		llm.WithLogger(logger),
		llm.WithLimiter(limiter),
		llm.WithRetryConfig(llm.RetryConfig{
			MaxAttempts:       cfg.LLM.MaxAttempts,
			BackoffBase:       2 * time.Second,
			BackoffMultiplier: 2.0,
			MaxBackoff:        30 * time.Second,
		}),
	)

	retrievalClient := retrieval.NewClient(cfg.Retrieval.Endpoint,
		retrieval.WithLogger(logger),
		retrieval.WithResultPath(cfg.Retrieval.ResultPath),
	)

	p := &Pipeline{
		cfg:             cfg,
		store:           plan.NewStore(artifactDir),
		logger:          logger,
		tracker:         tracker,
		llmClient:       client,
		retrievalClient: retrievalClient,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run executes the full pipeline for a free-text request and returns the
// assembled document.
func (p *Pipeline) Run(ctx context.Context, request string) (string, error) {
	plannerAgent := planner.New(p.llmClient, planner.Config{
		MaxFormatRetries: p.cfg.Planner.MaxFormatRetries,
		GuidanceWorkers:  p.cfg.Planner.GuidanceWorkers,
	}, p.logger)

	doc, err := plannerAgent.Plan(ctx, request)
	if err != nil {
		return "", fmt.Errorf("planner stage: %w", err)
	}
	if err := p.store.Save(plan.ArtifactAfterPlanner, doc); err != nil {
		p.logger.Warn("failed to persist planner artifact", "error", err)
	}

	retrieverAgent := retriever.New(p.retrievalClient, p.llmClient, retriever.Config{
		MaxIterations:    p.cfg.Retriever.MaxIterations,
		QualityThreshold: p.cfg.Retriever.QualityThreshold,
		NoProgressScore:  p.cfg.Retriever.NoProgressScore,
		DedupStrategy:    p.cfg.Retriever.DedupStrategy,
		Workers:          p.cfg.Retriever.Workers,
	}, p.tracker, p.logger)

	retrieverAgent.Retrieve(ctx, doc, doc.Goal)
	if err := p.store.Save(plan.ArtifactAfterRetriever, doc); err != nil {
		p.logger.Warn("failed to persist retriever artifact", "error", err)
	}

	writerAgent := writer.New(p.llmClient, writer.Config{
		MaxAttempts:      p.cfg.Writer.MaxAttempts,
		QualityThreshold: p.cfg.Writer.QualityThreshold,
		Workers:          p.cfg.Writer.Workers,
	}, p.tracker, p.logger)

	writerAgent.Write(ctx, doc, doc.Goal)
	if err := p.store.Save(plan.ArtifactAfterWriter, doc); err != nil {
		p.logger.Warn("failed to persist writer artifact", "error", err)
	}

	document := assembler.Assemble(doc)
	return document, nil
}
