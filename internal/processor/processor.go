package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/studyplan/internal/diagram"
	"github.com/MikeSquared-Agency/studyplan/internal/hermes"
	"github.com/MikeSquared-Agency/studyplan/internal/metrics"
	"github.com/MikeSquared-Agency/studyplan/internal/prompt"
	"github.com/MikeSquared-Agency/studyplan/internal/search"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

// ErrPersistenceDisabled is returned by operations that need a store when
// the processor runs without one.
var ErrPersistenceDisabled = errors.New("persistence disabled")

const titleLimit = 50

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, max int) []search.Result
}

// Publisher emits roadmap events. hermes.Emitter and hermes.Nop implement it.
type Publisher interface {
	PublishRoadmapSaved(hermes.RoadmapSaved) error
	PublishItemUpdated(hermes.ItemUpdated) error
}

// degradable is implemented by stores that can fall back to memory.
type degradable interface {
	Degraded() bool
	TakeAdvisory() bool
}

// Turn is the outcome of one chat message.
type Turn struct {
	Reply     string         `json:"response"`
	CleanText string         `json:"clean_text"`
	Diagrams  []string       `json:"diagrams"`
	RoadmapID string         `json:"roadmap_id,omitempty"`
	Items     []diagram.Node `json:"items,omitempty"`
	Degraded  bool           `json:"degraded,omitempty"`
	Failed    bool           `json:"failed,omitempty"`
}

// Processor runs chat turns: search augmentation, generation, persistence
// and roadmap extraction. A nil store disables persistence.
type Processor struct {
	store    store.Store
	gen      Generator
	searcher Searcher
	events   Publisher
	metrics  *metrics.Collector
	logger   *slog.Logger
	system   string
	now      func() time.Time
}

func New(s store.Store, gen Generator, searcher Searcher, events Publisher, m *metrics.Collector, logger *slog.Logger) *Processor {
	if events == nil {
		events = hermes.Nop{}
	}
	return &Processor{
		store:    s,
		gen:      gen,
		searcher: searcher,
		events:   events,
		metrics:  m,
		logger:   logger,
		system:   prompt.SystemPrompt,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PersistenceEnabled reports whether a store is configured.
func (p *Processor) PersistenceEnabled() bool { return p.store != nil }

// Degraded reports whether the store has fallen back to memory.
func (p *Processor) Degraded() bool {
	if d, ok := p.store.(degradable); ok {
		return d.Degraded()
	}
	return false
}

// Ping checks the store, if any.
func (p *Processor) Ping(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	return p.store.Ping(ctx)
}

// HandleMessage runs one turn. Generation failures do not return an error:
// the reply carries the failure text and the turn is marked Failed.
func (p *Processor) HandleMessage(ctx context.Context, sess *Session, message string, settings prompt.Settings) Turn {
	sess.Settings = settings
	p.resolveConversation(ctx, sess)

	query, searched := prompt.SearchDirective(message)
	var results []search.Result
	if searched {
		results = p.searcher.Search(ctx, query, search.DefaultMaxResults)
		p.metrics.SearchRan(len(results))
		p.logger.Info("search directive", "session_id", sess.ID, "query", query, "results", len(results))
	}

	userText := prompt.UserTurn(message, settings, results, searched).String()
	sess.History = append(sess.History, store.Message{Role: store.RoleUser, Content: userText, CreatedAt: p.now()})
	p.saveMessage(ctx, sess, store.RoleUser, userText)

	transcript := prompt.Transcript(p.system, sess.History).String()
	start := time.Now()
	out, err := p.gen.Generate(ctx, transcript)
	elapsed := time.Since(start)
	if err != nil {
		p.logger.Error("generation failed", "session_id", sess.ID, "error", err)
		p.metrics.TurnHandled("generation_error", elapsed)
		reply := "Error generating response: " + err.Error()
		return Turn{Reply: reply, CleanText: reply, Failed: true, Degraded: p.takeAdvisory()}
	}
	p.metrics.TurnHandled("ok", elapsed)

	reply := strings.TrimSpace(out)
	sess.History = append(sess.History, store.Message{Role: store.RoleAssistant, Content: reply, CreatedAt: p.now()})
	p.saveMessage(ctx, sess, store.RoleAssistant, reply)

	found := diagram.FromReply(reply)
	turn := Turn{
		Reply:     reply,
		CleanText: diagram.StripBlocks(reply),
		Diagrams:  found.Diagrams,
		Items:     found.Nodes,
	}
	if len(found.Diagrams) > 0 {
		turn.RoadmapID = p.saveRoadmap(ctx, sess, message, found)
	}
	turn.Degraded = p.takeAdvisory()
	return turn
}

// resolveConversation attaches a conversation to the session, loading its
// stored history when the in-memory history is empty.
func (p *Processor) resolveConversation(ctx context.Context, sess *Session) {
	if p.store == nil || sess.ID == "" {
		return
	}

	if sess.ConversationID == "" {
		id, err := p.store.GetOrCreateConversation(ctx, sess.ID)
		if err != nil {
			p.logger.Warn("resolve conversation failed, continuing without persistence this turn",
				"session_id", sess.ID, "error", err)
			return
		}
		sess.ConversationID = id
	} else if len(sess.History) > 0 {
		return
	}

	history, err := p.store.GetConversationHistory(ctx, sess.ConversationID)
	if err != nil {
		p.logger.Warn("load history failed", "conversation_id", sess.ConversationID, "error", err)
		return
	}
	if len(history) > 0 || len(sess.History) == 0 {
		sess.History = history
	}
}

func (p *Processor) saveMessage(ctx context.Context, sess *Session, role store.Role, content string) {
	if p.store == nil || sess.ConversationID == "" {
		return
	}
	if err := p.store.SaveMessage(ctx, sess.ConversationID, role, content); err != nil {
		p.logger.Warn("save message failed", "conversation_id", sess.ConversationID, "role", role, "error", err)
	}
}

func (p *Processor) saveRoadmap(ctx context.Context, sess *Session, message string, found diagram.Result) string {
	if p.store == nil || sess.ConversationID == "" {
		return ""
	}

	title := RoadmapTitle(message)
	id, err := p.store.SaveRoadmap(ctx, sess.ConversationID, title, found.Primary(), found.Nodes)

	var partial *store.PartialSaveError
	switch {
	case err == nil:
		p.metrics.RoadmapSaved("ok", len(found.Nodes))
	case errors.As(err, &partial):
		p.logger.Warn("roadmap saved without items", "roadmap_id", partial.RoadmapID, "error", partial.Err)
		p.metrics.RoadmapSaved("partial", len(found.Nodes))
		id = partial.RoadmapID
	default:
		p.logger.Error("save roadmap failed", "conversation_id", sess.ConversationID, "error", err)
		p.metrics.RoadmapSaved("failed", len(found.Nodes))
		return ""
	}

	p.logger.Info("roadmap saved", "roadmap_id", id, "items", len(found.Nodes), "partial", partial != nil)
	p.published(hermes.SubjectRoadmapSaved, p.events.PublishRoadmapSaved(hermes.RoadmapSaved{
		RoadmapID:      id,
		ConversationID: sess.ConversationID,
		SessionID:      sess.ID,
		Title:          title,
		ItemCount:      len(found.Nodes),
		Partial:        partial != nil,
		SavedAt:        p.now(),
	}))
	return id
}

// RoadmapTitle derives a roadmap title from the raw user message.
func RoadmapTitle(message string) string {
	runes := []rune(message)
	if len(runes) > titleLimit {
		return "Roadmap: " + string(runes[:titleLimit]) + "..."
	}
	return "Roadmap: " + message
}

// Reset clears the session's history and stored messages and detaches the
// conversation so the next message starts a new one.
func (p *Processor) Reset(ctx context.Context, sess *Session) error {
	var err error
	if p.store != nil && sess.ConversationID != "" {
		if err = p.store.ClearConversation(ctx, sess.ConversationID); err != nil {
			err = fmt.Errorf("clear conversation: %w", err)
		}
	}
	sess.History = nil
	sess.ConversationID = ""
	return err
}

// Roadmaps lists the roadmaps of the session's conversation, newest first.
func (p *Processor) Roadmaps(ctx context.Context, sess *Session) ([]store.Roadmap, error) {
	if p.store == nil || sess.ConversationID == "" {
		return []store.Roadmap{}, nil
	}
	rms, err := p.store.GetRoadmaps(ctx, sess.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get roadmaps: %w", err)
	}
	if rms == nil {
		rms = []store.Roadmap{}
	}
	return rms, nil
}

// Progress recomputes a roadmap's completion from its current items.
func (p *Processor) Progress(ctx context.Context, roadmapID string) (store.Progress, error) {
	if p.store == nil {
		return store.Progress{Items: []store.Item{}}, nil
	}
	return store.RoadmapProgress(ctx, p.store, roadmapID)
}

// ToggleItem sets one item's completion and publishes the change.
func (p *Processor) ToggleItem(ctx context.Context, itemID string, completed bool) error {
	if p.store == nil {
		return ErrPersistenceDisabled
	}
	if err := p.store.UpdateItemProgress(ctx, itemID, completed); err != nil {
		return fmt.Errorf("update item progress: %w", err)
	}
	p.metrics.ItemToggled(completed)
	p.published(hermes.SubjectItemUpdated, p.events.PublishItemUpdated(hermes.ItemUpdated{
		ItemID:    itemID,
		Completed: completed,
		UpdatedAt: p.now(),
	}))
	return nil
}

// published logs a failed event publish; events never fail a turn.
func (p *Processor) published(subject string, err error) {
	if err != nil {
		p.logger.Warn("publish event failed", "subject", subject, "error", err)
	}
}

func (p *Processor) takeAdvisory() bool {
	d, ok := p.store.(degradable)
	if !ok {
		return false
	}
	p.metrics.SetDegraded(d.Degraded())
	return d.TakeAdvisory()
}
