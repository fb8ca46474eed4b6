// Package assembler walks a finished Plan in stored order and renders it as
// a plain structured text document.
package assembler

import (
	"strings"

	"github.com/c360studio/docuplan/plan"
)

// Assemble renders the plan's parts and leaves, in stored order, as a
// single text document: a title, then one heading per part, one
// sub-heading per leaf, and that leaf's finished prose.
func Assemble(p *plan.Plan) string {
	var sb strings.Builder

	if p.Title != "" {
		sb.WriteString("# ")
		sb.WriteString(p.Title)
		sb.WriteString("\n\n")
	}

	for _, part := range p.Parts {
		sb.WriteString("## ")
		sb.WriteString(part.Heading)
		sb.WriteString("\n\n")

		for _, leaf := range part.Leaves {
			sb.WriteString("### ")
			sb.WriteString(leaf.Heading)
			sb.WriteString("\n\n")

			sb.WriteString(leaf.Draft.Text)
			sb.WriteString("\n\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}
