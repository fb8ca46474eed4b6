package retriever

import "fmt"

// reasonActPrompt asks the model to reason about what has been tried so far
// for a leaf and act by picking one retrieval strategy and a set of
// keywords, returning a single JSON object.
func reasonActPrompt(goal, heading, howToWrite string, attemptedQueries []string, qualityHistory []float64) string {
	attempted := "none yet"
	if len(attemptedQueries) > 0 {
		attempted = ""
		for i, q := range attemptedQueries {
			attempted += fmt.Sprintf("\n%d. %q (quality %.2f)", i+1, q, qualityHistory[i])
		}
	}

	return fmt.Sprintf(
		"Document goal: %s\nSection: %s\nWriting instruction: %s\n\n"+
			"Queries already tried, with the quality score they achieved:%s\n\n"+
			"Choose exactly one retrieval strategy from this closed set:\n"+
			"- direct: query using the section heading verbatim\n"+
			"- contextual: include the document goal alongside the heading\n"+
			"- semantic: broaden toward related concepts\n"+
			"- specific: narrow toward concrete details and examples\n"+
			"- alternative: try differently-phrased keywords entirely\n\n"+
			"Then produce 3 to 5 comma-separated keywords for a search query using that "+
			"strategy, informed by what prior queries have and have not covered.\n\n"+
			"Respond with a single JSON object of this exact shape:\n"+
			"{\"analysis\": \"string\", \"strategy\": \"direct|contextual|semantic|specific|alternative\", \"keywords\": \"string\"}",
		goal, heading, howToWrite, attempted)
}

// evaluatePrompt asks the model to score how well a single iteration's
// search results cover a leaf's heading, returning a single JSON object.
func evaluatePrompt(goal, heading, howToWrite, query string, snippetBodies []string) string {
	joined := ""
	for i, s := range snippetBodies {
		joined += fmt.Sprintf("\n--- snippet %d ---\n%s\n", i+1, s)
	}

	return fmt.Sprintf(
		"Document goal: %s\nSection: %s\nWriting instruction: %s\nQuery used: %s\n\n"+
			"Search results:%s\n\n"+
			"Rate how well these results cover the section on a 0-100 scale. "+
			"Respond with a single JSON object: {\"score\": <0-100>}.",
		goal, heading, howToWrite, query, joined)
}
