package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/studyplan/internal/processor"
	"github.com/MikeSquared-Agency/studyplan/internal/search"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

type cannedGenerator struct{}

func (cannedGenerator) Generate(context.Context, string) (string, error) {
	return "Try this:\n```mermaid\ngraph TD\n  A[Scales] --> B[Chords]\n```", nil
}

type noSearch struct{}

func (noSearch) Search(context.Context, string, int) []search.Result { return nil }

func newTestLoop(out io.Writer) *chatLoop {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	proc := processor.New(store.NewMemory(), cannedGenerator{}, noSearch{}, nil, nil, logger)
	return &chatLoop{
		proc:   proc,
		sess:   processor.NewSession("cli"),
		render: func(s string) (string, error) { return s + "\n", nil },
		out:    out,
	}
}

func TestChatLoop_RoadmapAndToggle(t *testing.T) {
	var out bytes.Buffer
	c := newTestLoop(&out)

	input := "teach me piano\n/done A\n/roadmaps\n/quit\nnever reached\n"
	if err := c.run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	for _, want := range []string{"Saved roadmap", "with 2 items", "Marked A complete.", "Roadmap: teach me piano"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if len(c.sess.History) != 2 {
		t.Errorf("expected one exchange, got %d messages", len(c.sess.History))
	}
}

func TestChatLoop_ProgressShowsChecklist(t *testing.T) {
	var out bytes.Buffer
	c := newTestLoop(&out)
	ctx := context.Background()

	c.handle(ctx, "plan please")
	rms, err := c.proc.Roadmaps(ctx, c.sess)
	if err != nil || len(rms) != 1 {
		t.Fatalf("expected a roadmap, got %v %v", rms, err)
	}

	c.handle(ctx, "/done B")
	out.Reset()
	c.handle(ctx, "/progress "+rms[0].ID)

	got := out.String()
	if !strings.Contains(got, "1/2 complete (50%)** 1 to go.") {
		t.Errorf("unexpected progress output:\n%s", got)
	}
	if !strings.Contains(got, "- [x] `B` Chords") || !strings.Contains(got, "- [ ] `A` Scales") {
		t.Errorf("checklist not rendered:\n%s", got)
	}
}

func TestChatLoop_ResetAndUsage(t *testing.T) {
	var out bytes.Buffer
	c := newTestLoop(&out)
	ctx := context.Background()

	c.handle(ctx, "hello")
	c.handle(ctx, "/reset")
	if len(c.sess.History) != 0 {
		t.Error("history should be cleared")
	}
	c.handle(ctx, "/progress")
	c.handle(ctx, "/done")

	got := out.String()
	if !strings.Contains(got, "Conversation cleared.") {
		t.Error("missing reset confirmation")
	}
	if !strings.Contains(got, "usage: /progress") || !strings.Contains(got, "usage: /done") {
		t.Errorf("missing usage hints:\n%s", got)
	}
}

func TestChatLoop_ProgressFinished(t *testing.T) {
	var out bytes.Buffer
	c := newTestLoop(&out)
	ctx := context.Background()

	c.handle(ctx, "plan please")
	rms, _ := c.proc.Roadmaps(ctx, c.sess)
	c.handle(ctx, "/done A")
	c.handle(ctx, "/done B")
	out.Reset()
	c.handle(ctx, "/progress "+rms[0].ID)

	if !strings.Contains(out.String(), "2/2 complete (100%)** Roadmap finished!") {
		t.Errorf("unexpected progress output:\n%s", out.String())
	}
}
