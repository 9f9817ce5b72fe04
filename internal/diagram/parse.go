package diagram

import (
	"regexp"
	"strings"
)

// Node is a diagram node declaration turned into a roadmap checklist entry.
type Node struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// nodeDeclRe matches an identifier starting with an uppercase letter followed
// directly by a square-bracketed label, e.g. A1[Learn Basics].
var nodeDeclRe = regexp.MustCompile(`([A-Z]\w*)\[([^\]]+)\]`)

// ParseItems scans canonical diagram text for node declarations and returns
// one Node per match in order of appearance. Repeated identifiers yield
// repeated nodes; edges, styles and class assignments are ignored.
func ParseItems(canonical string) []Node {
	matches := nodeDeclRe.FindAllStringSubmatch(canonical, -1)
	nodes := make([]Node, 0, len(matches))
	for _, m := range matches {
		title := strings.TrimSpace(m[2])
		nodes = append(nodes, Node{
			ID:          m[1],
			Title:       title,
			Description: "Complete: " + title,
		})
	}
	return nodes
}
