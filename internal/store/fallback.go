package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MikeSquared-Agency/studyplan/internal/diagram"
)

// Fallback routes calls to a primary backend until it reports ErrUnavailable,
// then serves everything from an in-memory store for the rest of the process.
// Degradation is one-way and logged once.
type Fallback struct {
	primary Store
	memory  *Memory
	logger  *slog.Logger

	degraded atomic.Bool
	advisory atomic.Bool
	once     sync.Once
}

func NewFallback(primary Store, logger *slog.Logger) *Fallback {
	return &Fallback{
		primary: primary,
		memory:  NewMemory(),
		logger:  logger,
	}
}

// NewDegraded returns a Fallback that is already serving from memory, for
// when no primary backend could be opened at all. The reason is logged once
// and the advisory is pending for the first turn.
func NewDegraded(logger *slog.Logger, reason error) *Fallback {
	f := NewFallback(nil, logger)
	f.primary = f.memory
	f.degrade(fmt.Errorf("%w: %w", ErrUnavailable, reason))
	return f
}

// Degraded reports whether the primary backend has been abandoned.
func (f *Fallback) Degraded() bool { return f.degraded.Load() }

// TakeAdvisory returns true exactly once after degradation so a caller can
// surface a single notice to the user.
func (f *Fallback) TakeAdvisory() bool {
	return f.advisory.CompareAndSwap(true, false)
}

func (f *Fallback) active() Store {
	if f.degraded.Load() {
		return f.memory
	}
	return f.primary
}

// degrade switches to memory when err signals an unavailable backend.
func (f *Fallback) degrade(err error) bool {
	if !errors.Is(err, ErrUnavailable) {
		return false
	}
	f.once.Do(func() {
		f.logger.Warn("persistence unavailable, continuing with in-memory storage; data will not survive a restart",
			"error", err,
		)
		f.degraded.Store(true)
		f.advisory.Store(true)
	})
	return true
}

func (f *Fallback) CreateConversation(ctx context.Context, sessionID string) (string, error) {
	s := f.active()
	id, err := s.CreateConversation(ctx, sessionID)
	if err != nil && s != Store(f.memory) && f.degrade(err) {
		return f.memory.CreateConversation(ctx, sessionID)
	}
	return id, err
}

func (f *Fallback) GetOrCreateConversation(ctx context.Context, sessionID string) (string, error) {
	s := f.active()
	id, err := s.GetOrCreateConversation(ctx, sessionID)
	if err != nil && s != Store(f.memory) && f.degrade(err) {
		return f.memory.GetOrCreateConversation(ctx, sessionID)
	}
	return id, err
}

func (f *Fallback) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	s := f.active()
	c, err := s.GetConversation(ctx, conversationID)
	if err != nil && s != Store(f.memory) && f.degrade(err) {
		return f.memory.GetConversation(ctx, conversationID)
	}
	return c, err
}

func (f *Fallback) SaveMessage(ctx context.Context, conversationID string, role Role, content string) error {
	s := f.active()
	err := s.SaveMessage(ctx, conversationID, role, content)
	if err != nil && s != Store(f.memory) && f.degrade(err) {
		return f.memory.SaveMessage(ctx, conversationID, role, content)
	}
	return err
}

func (f *Fallback) GetConversationHistory(ctx context.Context, conversationID string) ([]Message, error) {
	s := f.active()
	msgs, err := s.GetConversationHistory(ctx, conversationID)
	if err != nil && s != Store(f.memory) && f.degrade(err) {
		return f.memory.GetConversationHistory(ctx, conversationID)
	}
	return msgs, err
}

func (f *Fallback) ClearConversation(ctx context.Context, conversationID string) error {
	s := f.active()
	err := s.ClearConversation(ctx, conversationID)
	if err != nil && s != Store(f.memory) && f.degrade(err) {
		return f.memory.ClearConversation(ctx, conversationID)
	}
	return err
}

// SaveRoadmap does not replay a partial save: the roadmap row already exists
// on the primary and its id is returned unchanged.
func (f *Fallback) SaveRoadmap(ctx context.Context, conversationID, title, diagramText string, nodes []diagram.Node) (string, error) {
	s := f.active()
	id, err := s.SaveRoadmap(ctx, conversationID, title, diagramText, nodes)
	if err == nil || s == Store(f.memory) {
		return id, err
	}
	var partial *PartialSaveError
	if errors.As(err, &partial) {
		f.degrade(err)
		return id, err
	}
	if f.degrade(err) {
		return f.memory.SaveRoadmap(ctx, conversationID, title, diagramText, nodes)
	}
	return id, err
}

func (f *Fallback) GetRoadmaps(ctx context.Context, conversationID string) ([]Roadmap, error) {
	s := f.active()
	rms, err := s.GetRoadmaps(ctx, conversationID)
	if err != nil && s != Store(f.memory) && f.degrade(err) {
		return f.memory.GetRoadmaps(ctx, conversationID)
	}
	return rms, err
}

func (f *Fallback) GetRoadmapItems(ctx context.Context, roadmapID string) ([]Item, error) {
	s := f.active()
	items, err := s.GetRoadmapItems(ctx, roadmapID)
	if err != nil && s != Store(f.memory) && f.degrade(err) {
		return f.memory.GetRoadmapItems(ctx, roadmapID)
	}
	return items, err
}

func (f *Fallback) UpdateItemProgress(ctx context.Context, itemID string, completed bool) error {
	s := f.active()
	err := s.UpdateItemProgress(ctx, itemID, completed)
	if err != nil && s != Store(f.memory) && f.degrade(err) {
		return f.memory.UpdateItemProgress(ctx, itemID, completed)
	}
	return err
}

// Ping reports the primary's health without triggering degradation.
func (f *Fallback) Ping(ctx context.Context) error {
	if f.degraded.Load() {
		return f.memory.Ping(ctx)
	}
	return f.primary.Ping(ctx)
}
