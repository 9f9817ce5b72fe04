package diagram

import (
	"regexp"
	"strings"
)

// Strategy finds candidate diagram blocks in free text.
type Strategy func(text string) []string

var (
	fencedMermaidRe  = regexp.MustCompile("(?is)```\\s*mermaid\\s*(.*?)\\s*```")
	fencedBacktickRe = regexp.MustCompile("(?s)```(?:\\w+)?\\s*(.*?)\\s*```")
	fencedTildeRe    = regexp.MustCompile("(?s)~~~\\s*(.*?)\\s*~~~")
	unfencedStartRe  = regexp.MustCompile(`(?i)(?:^|\n)(?:flowchart|graph)`)
)

// cascade is ordered from the most to the least structurally confident signal.
// Later strategies are more permissive and would over-match text an earlier
// one already resolved, so Extract stops at the first non-empty result.
var cascade = []Strategy{
	FencedMermaid,
	FencedGeneric,
	Unfenced,
}

// Extract returns the candidate diagram blocks found in text, in document
// order. The result is empty when nothing diagram-like is present.
func Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, strategy := range cascade {
		if found := strategy(text); len(found) > 0 {
			return found
		}
	}
	return nil
}

// FencedMermaid matches fences tagged "mermaid", tolerating whitespace between
// the fence and the tag and any tag casing.
func FencedMermaid(text string) []string {
	var out []string
	for _, m := range fencedMermaidRe.FindAllStringSubmatch(text, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			out = append(out, body)
		}
	}
	return out
}

// FencedGeneric matches ``` and ~~~ fences whose content looks like a diagram.
func FencedGeneric(text string) []string {
	var blocks []string
	for _, m := range fencedBacktickRe.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, m[1])
	}
	for _, m := range fencedTildeRe.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, m[1])
	}

	var out []string
	for _, b := range blocks {
		body := strings.TrimSpace(b)
		if body == "" {
			continue
		}
		if looksLikeDiagram(body) {
			out = append(out, body)
		}
	}
	return out
}

// Unfenced matches a block starting at a line beginning with "flowchart" or
// "graph" and running to the next blank line or the end of the text.
func Unfenced(text string) []string {
	var out []string
	pos := 0
	for pos < len(text) {
		loc := unfencedStartRe.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		end := len(text)
		if i := strings.Index(text[start+1:], "\n\n"); i >= 0 {
			end = start + 1 + i
		}
		if block := strings.TrimSpace(text[start:end]); block != "" {
			out = append(out, block)
		}
		if end <= start {
			break
		}
		pos = end
	}
	return out
}

func looksLikeDiagram(body string) bool {
	low := strings.ToLower(body)
	switch {
	case strings.Contains(low, "flowchart"),
		strings.Contains(low, "graph"),
		strings.Contains(low, "classdef"),
		strings.Contains(body, "-->"):
		return true
	}
	return strings.Contains(body, "[") && strings.Contains(body, "]")
}
