package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/studyplan/internal/diagram"
)

// Memory is a volatile Store. It backs degraded mode and tests; its contents
// live only as long as the process.
type Memory struct {
	mu  sync.Mutex
	now func() time.Time
	seq int

	conversations map[string]*memConversation
	messages      map[string][]Message
	roadmaps      map[string]*memRoadmap
	items         map[string]*memItem
}

type memConversation struct {
	Conversation
	seq int
}

type memRoadmap struct {
	Roadmap
	seq int
}

type memItem struct {
	Item
	seq int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:           func() time.Time { return time.Now().UTC() },
		conversations: make(map[string]*memConversation),
		messages:      make(map[string][]Message),
		roadmaps:      make(map[string]*memRoadmap),
		items:         make(map[string]*memItem),
	}
}

// SetClock replaces the time source. Used by tests that need fixed timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) next() int {
	m.seq++
	return m.seq
}

func (m *Memory) CreateConversation(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createConversationLocked(sessionID), nil
}

func (m *Memory) createConversationLocked(sessionID string) string {
	now := m.now()
	c := &memConversation{
		Conversation: Conversation{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		seq: m.next(),
	}
	m.conversations[c.ID] = c
	return c.ID
}

func (m *Memory) GetOrCreateConversation(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *memConversation
	for _, c := range m.conversations {
		if c.SessionID != sessionID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) ||
			(c.CreatedAt.Equal(latest.CreatedAt) && c.seq > latest.seq) {
			latest = c
		}
	}
	if latest != nil {
		return latest.ID, nil
	}
	return m.createConversationLocked(sessionID), nil
}

func (m *Memory) GetConversation(_ context.Context, conversationID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	out := c.Conversation
	return &out, nil
}

// SaveMessage accepts conversation ids the store has not seen. After a
// fallback from another backend the ids in use were issued elsewhere.
func (m *Memory) SaveMessage(_ context.Context, conversationID string, role Role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.messages[conversationID] = append(m.messages[conversationID], Message{
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})
	if c, ok := m.conversations[conversationID]; ok {
		c.UpdatedAt = now
	}
	return nil
}

func (m *Memory) GetConversationHistory(_ context.Context, conversationID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Memory) ClearConversation(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.messages, conversationID)
	return nil
}

func (m *Memory) SaveRoadmap(_ context.Context, conversationID, title, diagramText string, nodes []diagram.Node) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm := &memRoadmap{
		Roadmap: Roadmap{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Title:          title,
			Diagram:        diagramText,
			CreatedAt:      m.now(),
		},
		seq: m.next(),
	}
	m.roadmaps[rm.ID] = rm

	for _, n := range nodes {
		it := &memItem{
			Item: Item{
				ID:          uuid.NewString(),
				RoadmapID:   rm.ID,
				ItemID:      n.ID,
				Title:       n.Title,
				Description: n.Description,
			},
			seq: m.next(),
		}
		m.items[it.ID] = it
	}
	return rm.ID, nil
}

func (m *Memory) GetRoadmaps(_ context.Context, conversationID string) ([]Roadmap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []*memRoadmap
	for _, rm := range m.roadmaps {
		if rm.ConversationID == conversationID {
			found = append(found, rm)
		}
	}
	slices.SortFunc(found, func(a, b *memRoadmap) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})

	out := make([]Roadmap, 0, len(found))
	for _, rm := range found {
		out = append(out, rm.Roadmap)
	}
	return out, nil
}

func (m *Memory) GetRoadmapItems(_ context.Context, roadmapID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []*memItem
	for _, it := range m.items {
		if it.RoadmapID == roadmapID {
			found = append(found, it)
		}
	}
	slices.SortFunc(found, func(a, b *memItem) int {
		if c := cmp.Compare(a.ItemID, b.ItemID); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Item, 0, len(found))
	for _, it := range found {
		cp := it.Item
		if it.CompletedAt != nil {
			ts := *it.CompletedAt
			cp.CompletedAt = &ts
		}
		out = append(out, cp)
	}
	return out, nil
}

func (m *Memory) UpdateItemProgress(_ context.Context, itemID string, completed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	it.Completed = completed
	if completed {
		ts := m.now()
		it.CompletedAt = &ts
	} else {
		it.CompletedAt = nil
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
