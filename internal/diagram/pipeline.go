package diagram

// Result is what the extraction pipeline found in one assistant reply.
type Result struct {
	Diagrams []string
	Nodes    []Node
}

// Primary returns the first sanitized diagram, or "" when none was found.
func (r Result) Primary() string {
	if len(r.Diagrams) == 0 {
		return ""
	}
	return r.Diagrams[0]
}

// FromReply extracts, sanitizes and parses every diagram in an assistant
// reply. Candidates that fail sanitation are skipped. Nodes are parsed from
// the first valid diagram only, since that is the one persisted.
func FromReply(reply string) Result {
	var r Result
	for _, candidate := range Extract(reply) {
		canonical, err := Sanitize(candidate)
		if err != nil {
			continue
		}
		r.Diagrams = append(r.Diagrams, canonical)
	}
	if len(r.Diagrams) > 0 {
		r.Nodes = ParseItems(r.Diagrams[0])
	}
	return r
}
