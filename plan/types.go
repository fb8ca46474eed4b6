// Package plan defines the document plan tree shared, in place, by every
// pipeline stage: the Planner builds it, the Retriever attaches evidence to
// its leaves, the Writer fills in prose, and the Assembler walks it to
// produce the final document.
package plan

import "time"

// Plan is the root of a document outline.
type Plan struct {
	Title     string     `json:"title"`
	Goal      string     `json:"goal"`
	CreatedAt time.Time  `json:"created_at"`
	Parts     []*Part    `json:"parts"`
}

// Part is a top-level section of the document.
type Part struct {
	ID      string  `json:"id"`
	Heading string  `json:"heading"`
	Leaves  []*Leaf `json:"leaves"`
}

// Leaf is the unit of work for the Retriever and Writer: a single subsection
// that carries its own writing instructions and accumulates evidence and,
// eventually, finished prose.
type Leaf struct {
	ID      string `json:"id"`
	Heading string `json:"heading"`

	// HowToWrite is the Planner's per-leaf writing instruction (100-200
	// characters), filled during the guidance phase.
	HowToWrite string `json:"how_to_write"`

	// Evidence is the Retriever's consolidated snippet bundle for this leaf:
	// the top-K snippets from its highest-scoring query, blank-line
	// separated. Empty if retrieval gathered nothing.
	Evidence string `json:"evidence"`

	// Retrieval holds the accumulated retrieval state for this leaf.
	Retrieval RetrieverState `json:"retrieval"`

	// Draft holds the Writer's working and final text for this leaf.
	Draft DraftState `json:"draft"`
}

// Snippet is one piece of evidence gathered for a leaf.
type Snippet struct {
	Query   string `json:"query"`
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// RetrieverState tracks the Retriever agent's iterative progress on a leaf.
type RetrieverState struct {
	// Snippets accumulated so far, in the order they were gathered.
	Snippets []Snippet `json:"snippets"`

	// Iterations is the number of reason/act/observe/reflect rounds run.
	Iterations int `json:"iterations"`

	// Scores is the per-iteration quality score history, used by the
	// no-progress guard.
	Scores []float64 `json:"scores"`

	// LastStrategy is the retrieval strategy used on the most recent
	// iteration.
	LastStrategy string `json:"last_strategy,omitempty"`

	// Done indicates retrieval stopped (quality threshold met, iteration
	// budget exhausted, or no-progress guard tripped).
	Done bool `json:"done"`
}

// DraftState tracks the Writer agent's iterative progress on a leaf.
type DraftState struct {
	// Text is the current (or final, once Done) prose for this leaf.
	Text string `json:"text"`

	// Attempts is the number of draft/evaluate rounds run.
	Attempts int `json:"attempts"`

	// Scores is the per-attempt quality score history.
	Scores []float64 `json:"scores"`

	// Done indicates writing stopped (quality threshold met or attempt
	// budget exhausted).
	Done bool `json:"done"`
}

// Walk visits every leaf in the plan in stored (document) order.
func (p *Plan) Walk(visit func(part *Part, leaf *Leaf)) {
	for _, part := range p.Parts {
		for _, leaf := range part.Leaves {
			visit(part, leaf)
		}
	}
}

// Leaves returns every leaf in the plan in stored order.
func (p *Plan) Leaves() []*Leaf {
	var out []*Leaf
	p.Walk(func(_ *Part, leaf *Leaf) {
		out = append(out, leaf)
	})
	return out
}
