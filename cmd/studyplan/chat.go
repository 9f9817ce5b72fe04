package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/studyplan/internal/processor"
	"github.com/MikeSquared-Agency/studyplan/internal/prompt"
)

const chatHelp = `Commands:
  /reset            start a fresh conversation
  /roadmaps         list saved roadmaps
  /progress <id>    show a roadmap's checklist
  /done <item>      mark an item complete
  /undo <item>      mark an item incomplete
  /quit             exit
Prefix a message with "search:" to include web results.`

func newChatCmd() *cobra.Command {
	var sessionID string
	var settings prompt.Settings

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the study planner in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Keep the terminal for the conversation; only warnings go to stderr.
			level := cfg.LogLevel
			if level == "info" || level == "debug" {
				level = "warn"
			}
			logger := setupLoggingTo(os.Stderr, level)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			a := newApp(ctx, cfg, logger)
			defer a.Close()

			if settings.Empty() {
				settings = cfg.Settings
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			r, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(100),
			)
			if err != nil {
				return fmt.Errorf("create renderer: %w", err)
			}

			c := &chatLoop{
				proc:     a.proc,
				sess:     processor.NewSession(sessionID),
				settings: settings,
				render:   r.Render,
				out:      cmd.OutOrStdout(),
			}
			fmt.Fprintf(c.out, "Session %s. Type /help for commands.\n", sessionID)
			return c.run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Resume a session by id")
	cmd.Flags().StringVar(&settings.Duration, "duration", "", "Study duration, e.g. \"3 months\"")
	cmd.Flags().StringVar(&settings.CurrentLevel, "level", "", "Current level, e.g. beginner")
	cmd.Flags().StringVar(&settings.StudyField, "field", "", "Field of study")
	return cmd
}

type chatLoop struct {
	proc     *processor.Processor
	sess     *processor.Session
	settings prompt.Settings
	render   func(string) (string, error)
	out      io.Writer
	// lastItems maps node ids of the most recent roadmap to item row ids.
	lastItems map[string]string
}

func (c *chatLoop) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := c.handle(ctx, line); quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle processes one input line and reports whether the loop should end.
func (c *chatLoop) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/reset":
		if err := c.proc.Reset(ctx, c.sess); err != nil {
			fmt.Fprintf(c.out, "reset failed: %v\n", err)
			return false
		}
		c.lastItems = nil
		fmt.Fprintln(c.out, "Conversation cleared.")
	case "/roadmaps":
		c.listRoadmaps(ctx)
	case "/progress":
		c.showProgress(ctx, arg)
	case "/done", "/undo":
		c.toggle(ctx, arg, cmd == "/done")
	default:
		c.send(ctx, line)
	}
	return false
}

func (c *chatLoop) send(ctx context.Context, message string) {
	turn := c.proc.HandleMessage(ctx, c.sess, message, c.settings)
	if turn.Degraded {
		fmt.Fprintln(c.out, "Note: storage is unavailable; this conversation will not be saved.")
	}

	text := turn.Reply
	if !turn.Failed {
		text = turn.CleanText
		for _, d := range turn.Diagrams {
			text += "\n\n```mermaid\n" + d + "\n```"
		}
	}
	c.print(text)

	if turn.RoadmapID != "" {
		fmt.Fprintf(c.out, "Saved roadmap %s with %d items. Use /progress %s to track it.\n",
			turn.RoadmapID, len(turn.Items), turn.RoadmapID)
		c.loadItems(ctx, turn.RoadmapID)
	}
}

func (c *chatLoop) print(markdown string) {
	rendered, err := c.render(markdown)
	if err != nil {
		rendered = markdown
	}
	fmt.Fprint(c.out, rendered)
}

func (c *chatLoop) listRoadmaps(ctx context.Context) {
	rms, err := c.proc.Roadmaps(ctx, c.sess)
	if err != nil {
		fmt.Fprintf(c.out, "list roadmaps failed: %v\n", err)
		return
	}
	if len(rms) == 0 {
		fmt.Fprintln(c.out, "No roadmaps yet.")
		return
	}
	for _, rm := range rms {
		fmt.Fprintf(c.out, "%s  %s  %s\n", rm.ID, rm.CreatedAt.Format("2006-01-02 15:04"), rm.Title)
	}
}

func (c *chatLoop) showProgress(ctx context.Context, roadmapID string) {
	if roadmapID == "" {
		fmt.Fprintln(c.out, "usage: /progress <roadmap id>")
		return
	}
	p, err := c.proc.Progress(ctx, roadmapID)
	if err != nil {
		fmt.Fprintf(c.out, "progress failed: %v\n", err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%d/%d complete (%.0f%%)**", p.CompletedItems, p.TotalItems, p.ProgressPercentage)
	switch {
	case p.Done():
		sb.WriteString(" Roadmap finished!")
	case p.TotalItems > 0:
		fmt.Fprintf(&sb, " %d to go.", p.Remaining())
	}
	sb.WriteString("\n\n")
	c.lastItems = make(map[string]string, len(p.Items))
	for _, it := range p.Items {
		mark := " "
		if it.Completed {
			mark = "x"
		}
		fmt.Fprintf(&sb, "- [%s] `%s` %s\n", mark, it.ItemID, it.Title)
		if _, seen := c.lastItems[it.ItemID]; !seen {
			c.lastItems[it.ItemID] = it.ID
		}
	}
	c.print(sb.String())
}

func (c *chatLoop) loadItems(ctx context.Context, roadmapID string) {
	p, err := c.proc.Progress(ctx, roadmapID)
	if err != nil {
		return
	}
	c.lastItems = make(map[string]string, len(p.Items))
	for _, it := range p.Items {
		if _, seen := c.lastItems[it.ItemID]; !seen {
			c.lastItems[it.ItemID] = it.ID
		}
	}
}

// toggle accepts either a node id from the last shown roadmap or an item
// row id.
func (c *chatLoop) toggle(ctx context.Context, ref string, completed bool) {
	if ref == "" {
		fmt.Fprintln(c.out, "usage: /done <item> or /undo <item>")
		return
	}
	itemID := ref
	if id, ok := c.lastItems[ref]; ok {
		itemID = id
	}
	if err := c.proc.ToggleItem(ctx, itemID, completed); err != nil {
		fmt.Fprintf(c.out, "update failed: %v\n", err)
		return
	}
	state := "incomplete"
	if completed {
		state = "complete"
	}
	fmt.Fprintf(c.out, "Marked %s %s.\n", ref, state)
}
