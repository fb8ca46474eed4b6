// Package progress provides a thread-safe counter and metrics surface shared
// by every pipeline stage, backed by in-memory atomics, structured logging,
// and Prometheus collectors.
package progress

import (
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Tracker records pipeline progress: LLM calls, retrieval calls, and
// per-stage leaf completions, both as in-memory counters for synchronous
// callers (e.g. the CLI's final summary) and as Prometheus collectors for
// anyone scraping the process.
type Tracker struct {
	logger *slog.Logger

	llmCalls       atomic.Int64
	retrievalCalls atomic.Int64
	leavesPlanned  atomic.Int64
	leavesRetrieved atomic.Int64
	leavesWritten  atomic.Int64

	llmCallsMetric        prometheus.Counter
	retrievalCallsMetric  prometheus.Counter
	leavesCompletedMetric *prometheus.CounterVec
	leafQualityMetric     *prometheus.HistogramVec
}

// New creates a Tracker and registers its collectors with reg. Pass
// prometheus.NewRegistry() for test isolation, or
// prometheus.DefaultRegisterer for a process-wide tracker.
func New(logger *slog.Logger, reg prometheus.Registerer) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		logger: logger,
		llmCallsMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docuplan_llm_calls_total",
			Help: "Total number of LLM completion calls made across all stages.",
		}),
		retrievalCallsMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docuplan_retrieval_calls_total",
			Help: "Total number of retrieval service queries made.",
		}),
		leavesCompletedMetric: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docuplan_leaves_completed_total",
			Help: "Total number of leaves completed, by stage.",
		}, []string{"stage"}),
		leafQualityMetric: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docuplan_leaf_quality",
			Help:    "Quality scores assigned to leaves, by stage.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"stage"}),
	}

	if reg != nil {
		reg.MustRegister(t.llmCallsMetric, t.retrievalCallsMetric, t.leavesCompletedMetric, t.leafQualityMetric)
	}

	return t
}

// RecordLLMCall increments the LLM call counter.
func (t *Tracker) RecordLLMCall() {
	t.llmCalls.Add(1)
	t.llmCallsMetric.Inc()
}

// RecordRetrievalCall increments the retrieval call counter.
func (t *Tracker) RecordRetrievalCall() {
	t.retrievalCalls.Add(1)
	t.retrievalCallsMetric.Inc()
}

// RecordLeafComplete records that a leaf finished a given stage with the
// given quality score, logging the event and incrementing both the
// in-memory and Prometheus counters.
func (t *Tracker) RecordLeafComplete(stage, leafID string, iteration int, score float64) {
	switch stage {
	case "planner":
		t.leavesPlanned.Add(1)
	case "retriever":
		t.leavesRetrieved.Add(1)
	case "writer":
		t.leavesWritten.Add(1)
	}

	t.leavesCompletedMetric.WithLabelValues(stage).Inc()
	t.leafQualityMetric.WithLabelValues(stage).Observe(score)

	t.logger.Info("leaf stage complete",
		"stage", stage, "leaf", leafID, "iteration", iteration, "score", score)
}

// Snapshot is a point-in-time read of the in-memory counters.
type Snapshot struct {
	LLMCalls        int64
	RetrievalCalls  int64
	LeavesPlanned   int64
	LeavesRetrieved int64
	LeavesWritten   int64
}

// Snapshot returns the current counter values.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		LLMCalls:        t.llmCalls.Load(),
		RetrievalCalls:  t.retrievalCalls.Load(),
		LeavesPlanned:   t.leavesPlanned.Load(),
		LeavesRetrieved: t.leavesRetrieved.Load(),
		LeavesWritten:   t.leavesWritten.Load(),
	}
}
