package writer

import (
	"regexp"
	"strings"
)

var (
	excessiveBlankLines = regexp.MustCompile(`\n{3,}`)
	headingHashes       = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	emphasisMarkers     = regexp.MustCompile(`\*{1,3}|_{1,3}`)
)

// clean normalizes model-generated prose for a leaf: strips a leading
// occurrence of the leaf's own subtitle, removes Markdown emphasis markers
// and heading hashes, trims trailing whitespace per line, collapses
// excessive blank lines, and trims the overall result. Idempotent — calling
// it again on its own output is a no-op.
func clean(text, subtitle string) string {
	text = headingHashes.ReplaceAllString(text, "")
	text = stripLeadingSubtitle(text, subtitle)
	text = emphasisMarkers.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")

	text = excessiveBlankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// stripLeadingSubtitle removes a leading occurrence of subtitle from text,
// along with any immediately surrounding whitespace, if text begins with it
// (ignoring leading whitespace).
func stripLeadingSubtitle(text, subtitle string) string {
	if subtitle == "" {
		return text
	}
	trimmed := strings.TrimLeft(text, " \t\n")
	if !strings.HasPrefix(trimmed, subtitle) {
		return text
	}
	return trimmed[len(subtitle):]
}
