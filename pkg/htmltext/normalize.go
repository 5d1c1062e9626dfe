// Package htmltext flattens HTML mail bodies into line-oriented plain text
// suitable for prompting the extraction model.
package htmltext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	repeatedNewline = regexp.MustCompile(`\n{2,}`)
)

// skipped elements contribute nothing, including their children
var skipped = map[string]bool{
	"style":    true,
	"script":   true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// breakBefore elements start on a fresh line
var breakBefore = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "tr": true,
	"section": true, "article": true, "header": true, "footer": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// breakAfter elements also end their line
var breakAfter = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "section": true, "article": true,
}

// ToText converts an HTML document into trimmed, non-empty lines joined by "\n".
// Input that fails to parse is treated as plain text.
func ToText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return Clean(markup)
	}

	var b strings.Builder
	walk(doc, &b)
	return Clean(b.String())
}

func walk(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		name := strings.ToLower(n.Data)
		if skipped[name] {
			return
		}
		if breakBefore[name] {
			newline(b)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, b)
		}
		if breakAfter[name] {
			newline(b)
		}
		return
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, b)
		}
	}
}

func newline(b *strings.Builder) {
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
}

// Clean applies the whitespace rules of ToText to text that is already plain.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\u200b", "")
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = repeatedNewline.ReplaceAllString(s, "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
