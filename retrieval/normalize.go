package retrieval

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
	looksLikeHTMLRe  = regexp.MustCompile(`(?is)<\s*[a-z][a-z0-9]*[^>]*>`)
)

var converter = func() *md.Converter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return c
}()

// Normalize converts a retrieval-service snippet body into clean text. If
// the body looks like an HTML fragment (the common case for web-search
// backed retrieval backends) it strips navigation/script/style noise and
// renders the remainder to Markdown; plain-text bodies are only whitespace
// cleaned.
func Normalize(content string) string {
	if content == "" {
		return ""
	}

	if !looksLikeHTMLRe.MatchString(content) {
		return cleanText(content)
	}

	cleaned := stripNoiseElements([]byte(content))
	markdown, err := converter.ConvertString(cleaned)
	if err != nil {
		return cleanText(basicHTMLCleanup(content))
	}
	return cleanText(markdown)
}

// stripNoiseElements parses the fragment and removes elements that never
// carry retrieval-relevant content.
func stripNoiseElements(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return basicHTMLCleanup(string(content))
	}

	removeElements(doc, []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "object", "embed", "form", "input", "button",
	})
	removeByClass(doc, []string{
		"nav", "navbar", "navigation", "sidebar", "menu", "toc",
		"table-of-contents", "footer", "header", "ad", "advertisement",
		"social", "share", "comments", "related", "breadcrumb",
	})

	var sb strings.Builder
	html.Render(&sb, doc)
	return sb.String()
}

func removeElements(n *html.Node, tags []string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tagSet[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func removeByClass(n *html.Node, classes []string) {
	classSet := make(map[string]bool, len(classes))
	for _, c := range classes {
		classSet[strings.ToLower(c)] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode {
			for _, a := range node.Attr {
				if a.Key != "class" {
					continue
				}
				for _, cls := range strings.Fields(strings.ToLower(a.Val)) {
					if classSet[cls] {
						toRemove = append(toRemove, node)
						return
					}
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func basicHTMLCleanup(content string) string {
	content = scriptRe.ReplaceAllString(content, "")
	content = styleRe.ReplaceAllString(content, "")
	return content
}

// cleanText trims per-line whitespace, collapses excessive blank lines, and
// trims overall whitespace. Idempotent: running it twice produces the same
// result.
func cleanText(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")

	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	return strings.TrimSpace(content)
}
