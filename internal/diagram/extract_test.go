package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_FencedMermaid(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain tag",
			text: "Here is your plan:\n```mermaid\nflowchart TD\nA[x]-->B[y]\n```\nGood luck!",
			want: []string{"flowchart TD\nA[x]-->B[y]"},
		},
		{
			name: "uppercase tag with spacing",
			text: "``` MERMAID \n graph TD\n A-->B\n```",
			want: []string{"graph TD\n A-->B"},
		},
		{
			name: "multiple blocks in document order",
			text: "```mermaid\ngraph TD\nA-->B\n```\ntext\n```Mermaid\ngraph LR\nC-->D\n```",
			want: []string{"graph TD\nA-->B", "graph LR\nC-->D"},
		},
		{
			name: "empty mermaid block skipped",
			text: "```mermaid\n   \n```",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtract_StopsAtFirstStrategy(t *testing.T) {
	text := "```mermaid\nflowchart TD\nA-->B\n```\n\n```\nX --> Y\n```\n\ngraph LR\nQ-->R"

	got := Extract(text)

	assert.Equal(t, []string{"flowchart TD\nA-->B"}, got)
}

func TestExtract_GenericFences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "untagged backtick fence with flowchart",
			text: "```\nflowchart LR\nX-->Y\n```",
			want: []string{"flowchart LR\nX-->Y"},
		},
		{
			name: "language tagged fence with edge token",
			text: "```text\nStart --> Finish\n```",
			want: []string{"Start --> Finish"},
		},
		{
			name: "tilde fence",
			text: "~~~\ngraph TD\nA-->B\n~~~",
			want: []string{"graph TD\nA-->B"},
		},
		{
			name: "bracket pair counts as a diagram",
			text: "```\nA[Topic]\n```",
			want: []string{"A[Topic]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtract_Unfenced(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "block ends at blank line",
			text: "Plan below\nflowchart TD\nA[One] --> B[Two]\n\nMore text",
			want: []string{"flowchart TD\nA[One] --> B[Two]"},
		},
		{
			name: "block at start runs to end of text",
			text: "graph LR\nA-->B",
			want: []string{"graph LR\nA-->B"},
		},
		{
			name: "two blocks",
			text: "graph TD\nA-->B\n\ngraph LR\nC-->D",
			want: []string{"graph TD\nA-->B", "graph LR\nC-->D"},
		},
		{
			name: "keyword case ignored",
			text: "intro\nFLOWCHART TD\nA-->B",
			want: []string{"FLOWCHART TD\nA-->B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtract_NoDiagram(t *testing.T) {
	for _, text := range []string{
		"",
		"   \n  ",
		"Study graph theory every morning.",
		"```python\nprint('hi')\n```",
	} {
		assert.Empty(t, Extract(text), "text %q", text)
	}
}

func TestStrategiesAreIndependent(t *testing.T) {
	text := "```mermaid\ngraph TD\nA-->B\n```"

	assert.Len(t, FencedMermaid(text), 1)
	// The generic strategy treats the tag as a language name.
	assert.Equal(t, []string{"graph TD\nA-->B"}, FencedGeneric(text))
	assert.Empty(t, Unfenced("no diagrams here"))
}

func TestStripBlocks(t *testing.T) {
	text := "Intro\n```mermaid\ngraph TD\nA-->B\n```\nOutro\n```go\nfmt.Println()\n```"

	assert.Equal(t, "Intro\n\nOutro", StripBlocks(text))
}
