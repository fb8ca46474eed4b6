package planner

import (
	"fmt"
	"strings"
)

// structurePrompt builds the single user message for the structure phase:
// one call that proposes the document's parts and leaf headings as JSON.
func structurePrompt(request string) string {
	var sb strings.Builder
	sb.WriteString("You are planning the structure of a document.\n\n")
	sb.WriteString("Request:\n")
	sb.WriteString(request)
	sb.WriteString("\n\n")
	sb.WriteString("Respond with a single JSON object of this exact shape:\n")
	sb.WriteString("```json\n")
	sb.WriteString(`{
  "title": "string",
  "goal": "string",
  "parts": [
    {
      "heading": "string",
      "leaves": [
        {"heading": "string"}
      ]
    }
  ]
}`)
	sb.WriteString("\n```\n")
	sb.WriteString("Use 3 to 6 parts, each with 2 to 5 leaves. Do not include any text outside the JSON object.")
	return sb.String()
}

// guidancePrompt builds the prompt asking for a per-leaf writing instruction
// for every subsection of a single part, given the overall document goal.
func guidancePrompt(goal, partHeading string, leafHeadings []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Document goal: %s\n\n", goal))
	sb.WriteString(fmt.Sprintf("Section: %s\n\nSubsections:\n", partHeading))
	for _, h := range leafHeadings {
		sb.WriteString(fmt.Sprintf("- %s\n", h))
	}
	sb.WriteString("\nFor each subsection listed above, write a single instruction of 100 to " +
		"200 characters telling a writer what that subsection should cover and how it " +
		"should be organized. Respond with a single JSON object of this exact shape:\n")
	sb.WriteString("```json\n")
	sb.WriteString(`{
  "guides": [
    {"subtitle": "string", "how_to_write": "string"}
  ]
}`)
	sb.WriteString("\n```\n")
	sb.WriteString("Include one guide per subsection, with \"subtitle\" matching the subsection " +
		"heading exactly. Do not include any text outside the JSON object.")
	return sb.String()
}
