package writer

import "strings"

// minDraftLength and maxDraftLength bound the cleaned draft length the fast
// rule check accepts without spending a model evaluation call.
const (
	minDraftLength = 200
	maxDraftLength = 2000
)

// fastCheckResult is the outcome of the deterministic pre-evaluation check:
// ok reports whether the draft may proceed to model evaluation, score and
// feedback are what gets recorded when it may not.
type fastCheckResult struct {
	ok       bool
	score    float64
	feedback string
}

// fastCheck runs cheap, deterministic checks before an expensive model
// evaluation call. An error-enveloped draft (wrapped in `[...]`) is checked
// first since it is the most specific signal and would otherwise be
// misclassified by the length checks.
func fastCheck(draft string) fastCheckResult {
	if isErrorEnvelope(draft) {
		return fastCheckResult{ok: false, score: 0.0, feedback: "regeneration needed"}
	}
	if len(draft) < minDraftLength {
		return fastCheckResult{ok: false, score: 0.1, feedback: "too short"}
	}
	if len(draft) > maxDraftLength {
		return fastCheckResult{ok: false, score: 0.4, feedback: "too long, tighten"}
	}
	return fastCheckResult{ok: true}
}

// isErrorEnvelope reports whether draft looks like a bracketed error payload
// rather than prose.
func isErrorEnvelope(draft string) bool {
	trimmed := strings.TrimSpace(draft)
	return strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")
}
