// Package retriever implements the per-leaf reason/act/observe/reflect
// retrieval loop: a closed set of query strategies, a bounded iteration
// budget, and quality-driven early exit.
package retriever

import "fmt"

// Strategy is one of a closed set of query-construction approaches. This is
// a tagged variant plus a small lookup table, not a plug-in registry: the
// set of strategies is fixed and known at compile time.
type Strategy string

const (
	// StrategyDirect queries using the leaf heading verbatim.
	StrategyDirect Strategy = "direct"

	// StrategyContextual includes the document goal alongside the heading.
	StrategyContextual Strategy = "contextual"

	// StrategySemantic broadens the query toward related concepts.
	StrategySemantic Strategy = "semantic"

	// StrategySpecific narrows the query toward concrete details and examples.
	StrategySpecific Strategy = "specific"

	// StrategyAlternative tries differently-phrased keywords entirely, used
	// when prior strategies have not made progress.
	StrategyAlternative Strategy = "alternative"
)

// IsValid reports whether s is one of the recognized strategies.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyDirect, StrategyContextual, StrategySemantic, StrategySpecific, StrategyAlternative:
		return true
	}
	return false
}

// cycle is the fixed order strategies are tried in as iterations advance.
var cycle = []Strategy{StrategyDirect, StrategyContextual, StrategySemantic, StrategySpecific, StrategyAlternative}

// strategyForIteration returns the strategy for a given 0-based iteration
// index, cycling through the closed set.
func strategyForIteration(iteration int) Strategy {
	return cycle[iteration%len(cycle)]
}

// nextUnusedStrategy returns the first strategy in cycle order that does not
// appear in attempted. If every strategy has been tried, it falls back to
// cycling past the full set deterministically rather than repeating the
// first strategy forever.
func nextUnusedStrategy(attempted []Strategy) Strategy {
	used := make(map[Strategy]struct{}, len(attempted))
	for _, s := range attempted {
		used[s] = struct{}{}
	}
	for _, s := range cycle {
		if _, ok := used[s]; !ok {
			return s
		}
	}
	return cycle[len(attempted)%len(cycle)]
}

// buildQuery constructs the keyword query string for a strategy.
func buildQuery(strategy Strategy, goal, heading string) string {
	switch strategy {
	case StrategyDirect:
		return heading
	case StrategyContextual:
		return fmt.Sprintf("%s %s", goal, heading)
	case StrategySemantic:
		return fmt.Sprintf("%s overview concepts background", heading)
	case StrategySpecific:
		return fmt.Sprintf("%s details examples specifics", heading)
	case StrategyAlternative:
		return fmt.Sprintf("%s explained another way", heading)
	default:
		return heading
	}
}
