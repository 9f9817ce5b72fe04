package diagram

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidDiagram is returned by Sanitize when a candidate has no content.
var ErrInvalidDiagram = errors.New("invalid diagram: empty candidate")

// DefaultHeader is prepended to diagrams that carry no recognizable type line.
const DefaultHeader = "flowchart TD"

// DefaultClassDefs are injected when nodes apply a class (":::name") that the
// diagram never defines. Colors follow the phase palette in the system prompt.
var DefaultClassDefs = []string{
	"classDef foundation fill:#b3d9ff,color:#000,stroke:#333,stroke-width:2px",
	"classDef core fill:#c2f0c2,color:#000,stroke:#333,stroke-width:2px",
	"classDef practice fill:#fff2b3,color:#000,stroke:#333,stroke-width:2px",
	"classDef project fill:#e0ccff,color:#000,stroke:#333,stroke-width:2px",
	"classDef review fill:#f8b4b4,color:#000,stroke:#333,stroke-width:2px",
}

var (
	fenceMarkerRe = regexp.MustCompile("^```\\w*|```$")
	flowchartRe   = regexp.MustCompile(`(?i)flowchart`)
	graphRe       = regexp.MustCompile(`(?i)graph`)

	diagramTypes = []string{"flowchart", "graph", "sequence", "gantt"}

	typography = strings.NewReplacer(
		"\u201c", `"`,
		"\u201d", `"`,
		"\u2018", "'",
		"\u2019", "'",
		"\u00a0", " ",
	)
)

// Sanitize turns an extracted candidate into canonical diagram text that
// starts with a diagram type keyword. It is idempotent on its own output.
func Sanitize(candidate string) (string, error) {
	if strings.TrimSpace(candidate) == "" {
		return "", ErrInvalidDiagram
	}

	cleaned := strings.TrimSpace(fenceMarkerRe.ReplaceAllString(strings.TrimSpace(candidate), ""))
	cleaned = typography.Replace(cleaned)
	cleaned = cleanLines(cleaned)
	if cleaned == "" {
		return "", ErrInvalidDiagram
	}

	cleaned = ensureHeader(cleaned)

	low := strings.ToLower(cleaned)
	if strings.Contains(cleaned, ":::") && !strings.Contains(low, "classdef") {
		cleaned = injectClassDefs(cleaned)
	}
	return cleaned, nil
}

// cleanLines strips blockquote markers and stray "%% mermaid" comments and
// drops blank lines.
func cleanLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		ln = strings.TrimRight(strings.TrimLeft(ln, "> "), " \t\r")
		if ln == "" || strings.HasPrefix(ln, "%% mermaid") {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func ensureHeader(s string) string {
	low := strings.ToLower(s)
	for _, kind := range diagramTypes {
		if strings.HasPrefix(low, kind) {
			return s
		}
	}
	if loc := flowchartRe.FindStringIndex(s); loc != nil {
		return s[loc[0]:]
	}
	if loc := graphRe.FindStringIndex(s); loc != nil {
		return s[loc[0]:]
	}
	return DefaultHeader + "\n" + s
}

func injectClassDefs(s string) string {
	header, rest, found := strings.Cut(s, "\n")
	parts := []string{header}
	parts = append(parts, DefaultClassDefs...)
	if found {
		parts = append(parts, rest)
	}
	return strings.Join(parts, "\n")
}
