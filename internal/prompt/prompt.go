package prompt

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/studyplan/internal/search"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

// Label names a section of a prompt.
type Label string

const (
	LabelSystem   Label = "system"
	LabelSettings Label = "settings"
	LabelMessage  Label = "message"
	LabelSearch   Label = "search"
	LabelHistory  Label = "history"
)

const (
	citationInstruction = "Please provide a helpful response based on these search results, citing sources with [1], [2], etc."
	noResultsNote       = "(Note: Web search did not return results. Please respond based on your knowledge.)"
)

var searchPrefixes = []string{"search:", "/search"}

// Section is one labeled piece of a prompt. Text is rendered verbatim.
type Section struct {
	Label Label
	Text  string
}

// Prompt is an ordered list of sections, rendered only at the generation
// boundary.
type Prompt []Section

func (p Prompt) String() string {
	var sb strings.Builder
	for _, s := range p {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Find returns the sections with the given label in order.
func (p Prompt) Find(label Label) []Section {
	var out []Section
	for _, s := range p {
		if s.Label == label {
			out = append(out, s)
		}
	}
	return out
}

// Settings are the learner's optional study preferences.
type Settings struct {
	Duration     string `json:"duration" yaml:"duration"`
	CurrentLevel string `json:"current_level" yaml:"current_level"`
	StudyField   string `json:"study_field" yaml:"study_field"`
}

func (s Settings) Empty() bool {
	return s.Duration == "" && s.CurrentLevel == "" && s.StudyField == ""
}

// Block renders the settings prefix, or "" when no setting is set.
func (s Settings) Block() string {
	var lines []string
	if s.Duration != "" {
		lines = append(lines, "Study Duration: "+s.Duration)
	}
	if s.CurrentLevel != "" {
		lines = append(lines, "Current Level: "+s.CurrentLevel)
	}
	if s.StudyField != "" {
		lines = append(lines, "Study Field: "+s.StudyField)
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n\nUser Settings:\n" + strings.Join(lines, "\n") + "\n"
}

// SearchDirective reports whether message asks for a web search and returns
// the query. Prefixes match case-insensitively; an empty query is no directive.
func SearchDirective(message string) (string, bool) {
	trimmed := strings.TrimSpace(message)
	for _, prefix := range searchPrefixes {
		if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
			query := strings.TrimSpace(trimmed[len(prefix):])
			return query, query != ""
		}
	}
	return "", false
}

// SearchBlock renders search results as a numbered list followed by a
// citation instruction. No results render an explicit note instead.
func SearchBlock(results []search.Result) string {
	if len(results) == 0 {
		return "\n\n" + noResultsNote
	}

	var sb strings.Builder
	sb.WriteString("\n\n\n\n--- Web Search Results ---\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, r.Title)
		fmt.Fprintf(&sb, "URL: %s\n", r.Href)
		fmt.Fprintf(&sb, "Summary: %s\n", r.Body)
	}
	sb.WriteString("\n\n" + citationInstruction)
	return sb.String()
}

// UserTurn assembles the enhanced user message: settings block, the raw
// message, then search results when a search ran. searched is false when
// the message carried no search directive.
func UserTurn(message string, settings Settings, results []search.Result, searched bool) Prompt {
	var p Prompt
	if block := settings.Block(); block != "" {
		p = append(p, Section{Label: LabelSettings, Text: block})
	}
	p = append(p, Section{Label: LabelMessage, Text: message})
	if searched {
		p = append(p, Section{Label: LabelSearch, Text: SearchBlock(results)})
	}
	return p
}

// Transcript renders the system prompt and history as the generation input,
// ending with an open assistant turn.
func Transcript(system string, history []store.Message) Prompt {
	p := Prompt{{Label: LabelSystem, Text: system + "\n\n"}}
	for _, m := range history {
		speaker := "Assistant"
		if m.Role == store.RoleUser {
			speaker = "User"
		}
		p = append(p, Section{Label: LabelHistory, Text: speaker + ": " + m.Content + "\n\n"})
	}
	return append(p, Section{Label: LabelHistory, Text: "Assistant:"})
}
