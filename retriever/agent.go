package retriever

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/c360studio/docuplan/llm"
	"github.com/c360studio/docuplan/plan"
	"github.com/c360studio/docuplan/retrieval"
)

// evidenceSnippetLimit is K in "top-K snippets from the highest-scoring
// query" (see assembleEvidence).
const evidenceSnippetLimit = 5

// Config configures the Retriever agent.
type Config struct {
	MaxIterations    int
	QualityThreshold float64
	NoProgressScore  float64
	DedupStrategy    string
	Workers          int
}

// Searcher is the retrieval dependency, satisfied by *retrieval.Client.
type Searcher interface {
	Search(ctx context.Context, query string) ([]retrieval.Snippet, error)
}

// ProgressRecorder is the subset of progress.Tracker the agent uses.
type ProgressRecorder interface {
	RecordRetrievalCall()
	RecordLeafComplete(stage, leafID string, iteration int, score float64)
}

// Agent runs retrieval for every leaf of a Plan.
type Agent struct {
	search Searcher
	client llm.Completer
	cfg    Config
	logger *slog.Logger
	prog   ProgressRecorder
}

// New creates a Retriever agent.
func New(search Searcher, client llm.Completer, cfg Config, prog ProgressRecorder, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = 0.7
	}
	if cfg.NoProgressScore <= 0 {
		cfg.NoProgressScore = 0.3
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &Agent{search: search, client: client, cfg: cfg, prog: prog, logger: logger}
}

// Retrieve runs the per-leaf retrieval loop for every leaf in the plan,
// dispatched through a pool bounded at cfg.Workers. Each worker only
// mutates the single *plan.Leaf it was handed.
func (a *Agent) Retrieve(ctx context.Context, p *plan.Plan, goal string) {
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

				a.retrieveLeaf(ctx, goal, leaf)
			}()
		}
	}

	wg.Wait()
}

// iterationResult is the auxiliary per-leaf state needed to assemble
// evidence at the end of the loop: held only during the loop and discarded
// afterward, never persisted to plan.RetrieverState.
type iterationResult struct {
	score    float64
	snippets []retrieval.Snippet
}

// retrieveLeaf runs the bounded reason/act/observe/reflect loop for a single
// leaf: reason/act (model picks a strategy and keywords), observe (dedup and
// append, then score the iteration's raw results), reflect (decide whether
// to continue). Once the loop ends, evidence is assembled from the
// highest-scoring iteration's raw results.
func (a *Agent) retrieveLeaf(ctx context.Context, goal string, leaf *plan.Leaf) {
	seen := make(map[string]struct{}, len(leaf.Retrieval.Snippets))
	for _, s := range leaf.Retrieval.Snippets {
		seen[s.Content] = struct{}{}
	}

	var attemptedQueries []string
	var attemptedStrategies []Strategy
	var qualityHistory []float64
	var iterationResults []iterationResult

	for iteration := 0; iteration < a.cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return
		}

		strategy, query := a.reasonAct(ctx, goal, leaf, iteration, attemptedQueries, qualityHistory)

		if queryAttempted(query, attemptedQueries) {
			strategy = nextUnusedStrategy(attemptedStrategies)
			query = buildQuery(strategy, goal, leaf.Heading)
		}
		attemptedQueries = append(attemptedQueries, query)
		attemptedStrategies = append(attemptedStrategies, strategy)

		snippets, err := a.search.Search(ctx, query)
		if a.prog != nil {
			a.prog.RecordRetrievalCall()
		}
		if err != nil {
			// RetrievalUnavailable: log and proceed with whatever evidence
			// has already been gathered rather than aborting the leaf.
			a.logger.Warn("retrieval call failed, continuing without new evidence",
				"leaf", leaf.ID, "strategy", strategy, "error", err)
		}

		a.observe(leaf, query, snippets, seen)

		score := a.scoreIteration(ctx, goal, leaf.Heading, leaf.HowToWrite, query, snippets)
		iterationResults = append(iterationResults, iterationResult{score: score, snippets: snippets})
		qualityHistory = append(qualityHistory, score)

		leaf.Retrieval.Iterations = iteration + 1
		leaf.Retrieval.LastStrategy = string(strategy)
		leaf.Retrieval.Scores = append(leaf.Retrieval.Scores, score)

		if a.prog != nil {
			a.prog.RecordLeafComplete("retriever", leaf.ID, iteration+1, score)
		}

		if score >= a.cfg.QualityThreshold {
			leaf.Retrieval.Done = true
			leaf.Evidence = assembleEvidence(iterationResults)
			return
		}

		if a.noProgress(leaf.Retrieval.Scores) {
			leaf.Retrieval.Done = true
			leaf.Evidence = assembleEvidence(iterationResults)
			return
		}
	}

	leaf.Retrieval.Done = true
	leaf.Evidence = assembleEvidence(iterationResults)
}

// reasonAct asks the model to choose a strategy and keywords given what has
// been tried for this leaf so far. On any LLM/parse failure, or an invalid
// strategy name, it falls back to the deterministic iteration-cycled
// strategy and query builder.
func (a *Agent) reasonAct(ctx context.Context, goal string, leaf *plan.Leaf, iteration int, attemptedQueries []string, qualityHistory []float64) (Strategy, string) {
	fallback := func() (Strategy, string) {
		strategy := strategyForIteration(iteration)
		return strategy, buildQuery(strategy, goal, leaf.Heading)
	}

	raw, _, err := a.client.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: reasonActPrompt(goal, leaf.Heading, leaf.HowToWrite, attemptedQueries, qualityHistory)},
		},
	}, 2)
	if err != nil {
		a.logger.Warn("reason/act call failed, falling back to deterministic strategy", "leaf", leaf.ID, "error", err)
		return fallback()
	}

	var parsed struct {
		Analysis string `json:"analysis"`
		Strategy string `json:"strategy"`
		Keywords string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		a.logger.Warn("reason/act response did not match expected shape, falling back to deterministic strategy", "leaf", leaf.ID, "error", err)
		return fallback()
	}

	strategy := Strategy(parsed.Strategy)
	if !strategy.IsValid() {
		a.logger.Warn("reason/act response named an unrecognized strategy, falling back to deterministic strategy", "leaf", leaf.ID, "strategy", parsed.Strategy)
		return fallback()
	}

	query := queryFromKeywords(parsed.Keywords)
	if query == "" {
		return fallback()
	}

	return strategy, query
}

// queryFromKeywords turns the model's comma-separated keyword list into a
// single query string.
func queryFromKeywords(keywords string) string {
	parts := strings.Split(keywords, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			fields = append(fields, p)
		}
	}
	return strings.Join(fields, " ")
}

// queryAttempted reports whether query byte-matches a query already tried
// for this leaf.
func queryAttempted(query string, attempted []string) bool {
	for _, q := range attempted {
		if q == query {
			return true
		}
	}
	return false
}

// assembleEvidence builds the leaf's evidence string: the top-K snippets, in
// order of arrival, from the single iteration that scored highest. Returns
// the empty string if no iteration ever returned any snippets.
func assembleEvidence(results []iterationResult) string {
	best := -1
	for i, r := range results {
		if len(r.snippets) == 0 {
			continue
		}
		if best == -1 || r.score > results[best].score {
			best = i
		}
	}
	if best == -1 {
		return ""
	}

	snippets := results[best].snippets
	if len(snippets) > evidenceSnippetLimit {
		snippets = snippets[:evidenceSnippetLimit]
	}

	bodies := make([]string, len(snippets))
	for i, s := range snippets {
		bodies[i] = s.Content
	}
	return strings.Join(bodies, "\n\n")
}

// observe appends newly-seen snippets to the leaf, deduplicating by exact
// text match (the only dedup strategy implemented today — see
// Config.DedupStrategy). Returns the number of snippets actually added.
func (a *Agent) observe(leaf *plan.Leaf, query string, snippets []retrieval.Snippet, seen map[string]struct{}) int {
	added := 0
	for _, s := range snippets {
		if _, dup := seen[s.Content]; dup {
			continue
		}
		seen[s.Content] = struct{}{}
		leaf.Retrieval.Snippets = append(leaf.Retrieval.Snippets, plan.Snippet{
			Query:   query,
			Content: s.Content,
			Source:  s.Source,
		})
		added++
	}
	return added
}

// scoreIteration scores how well a single iteration's raw search results
// (at most the first 3) cover the leaf's heading. On any LLM failure it
// returns 0, which allows the no-progress guard to terminate the loop
// rather than spin.
func (a *Agent) scoreIteration(ctx context.Context, goal, heading, howToWrite, query string, snippets []retrieval.Snippet) float64 {
	if len(snippets) == 0 {
		return 0
	}

	limit := 3
	if len(snippets) < limit {
		limit = len(snippets)
	}
	bodies := make([]string, limit)
	for i := 0; i < limit; i++ {
		bodies[i] = snippets[i].Content
	}

	raw, _, err := a.client.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: evaluatePrompt(goal, heading, howToWrite, query, bodies)},
		},
	}, 2)
	if err != nil {
		a.logger.Warn("evaluation call failed, treating as zero score", "leaf", heading, "error", err)
		return 0
	}

	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		a.logger.Warn("evaluation response did not match expected shape", "leaf", heading, "error", err)
		return 0
	}

	return normalizeScore(parsed.Score)
}

// normalizeScore converts a 0-100 model score into a 0-1 quality score,
// clamped to the valid range.
func normalizeScore(raw float64) float64 {
	v := raw / 100
	return math.Min(1, math.Max(0, v))
}

// noProgress reports whether the two most recent scores are both below the
// configured no-progress threshold, meaning further iterations are unlikely
// to help.
func (a *Agent) noProgress(scores []float64) bool {
	if len(scores) < 2 {
		return false
	}
	last := scores[len(scores)-1]
	prev := scores[len(scores)-2]
	return last < a.cfg.NoProgressScore && prev < a.cfg.NoProgressScore
}
