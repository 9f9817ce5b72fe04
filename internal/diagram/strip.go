package diagram

import (
	"regexp"
	"strings"
)

var (
	mermaidBlockRe = regexp.MustCompile("(?s)```mermaid\\s*.*?\\s*```")
	anyBlockRe     = regexp.MustCompile("(?s)```\\s*.*?\\s*```")
)

// StripBlocks removes mermaid and other fenced code blocks from a reply,
// leaving the prose shown next to the rendered diagrams.
func StripBlocks(text string) string {
	cleaned := mermaidBlockRe.ReplaceAllString(text, "")
	cleaned = anyBlockRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
