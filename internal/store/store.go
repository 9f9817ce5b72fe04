package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/studyplan/internal/diagram"
	"github.com/MikeSquared-Agency/studyplan/internal/progress"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	// ErrNotFound is returned when a conversation, roadmap or item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the backend cannot serve requests at all, e.g. the
	// schema has not been created or the database is unreachable.
	ErrUnavailable = errors.New("persistence unavailable")
)

// PartialSaveError is returned by SaveRoadmap when the roadmap row was written
// but its items were not. The roadmap exists with zero items.
type PartialSaveError struct {
	RoadmapID string
	Err       error
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("roadmap %s saved without items: %v", e.RoadmapID, e.Err)
}

func (e *PartialSaveError) Unwrap() error { return e.Err }

type Conversation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Roadmap struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	Diagram        string    `json:"mermaid_diagram"`
	CreatedAt      time.Time `json:"created_at"`
}

// Item is one persisted checklist entry. ID is the store-assigned row id and
// is what completion toggles target; ItemID is the diagram node identifier
// and may repeat within a roadmap.
type Item struct {
	ID          string     `json:"id"`
	RoadmapID   string     `json:"roadmap_id"`
	ItemID      string     `json:"item_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Progress is a fresh snapshot of a roadmap together with the items it was
// computed from.
type Progress struct {
	progress.Snapshot
	Items []Item `json:"items"`
}

// Store is the persistence contract the conversation pipeline depends on.
type Store interface {
	CreateConversation(ctx context.Context, sessionID string) (string, error)
	// GetOrCreateConversation returns the most recently created conversation
	// for the session, creating one when none exists.
	GetOrCreateConversation(ctx context.Context, sessionID string) (string, error)
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	SaveMessage(ctx context.Context, conversationID string, role Role, content string) error
	// GetConversationHistory returns messages in chronological order.
	GetConversationHistory(ctx context.Context, conversationID string) ([]Message, error)
	// ClearConversation deletes every message but keeps the conversation.
	ClearConversation(ctx context.Context, conversationID string) error

	// SaveRoadmap writes the roadmap and one incomplete item per node.
	SaveRoadmap(ctx context.Context, conversationID, title, diagramText string, nodes []diagram.Node) (string, error)
	// GetRoadmaps lists a conversation's roadmaps newest first.
	GetRoadmaps(ctx context.Context, conversationID string) ([]Roadmap, error)
	// GetRoadmapItems lists items ordered by their node identifier.
	GetRoadmapItems(ctx context.Context, roadmapID string) ([]Item, error)
	// UpdateItemProgress sets completion on one item row, stamping
	// completed_at when completed and clearing it otherwise.
	UpdateItemProgress(ctx context.Context, itemID string, completed bool) error

	Ping(ctx context.Context) error
}

// RoadmapProgress fetches a roadmap's items and aggregates them. Nothing is
// cached, so a toggle is visible on the next call.
func RoadmapProgress(ctx context.Context, s Store, roadmapID string) (Progress, error) {
	items, err := s.GetRoadmapItems(ctx, roadmapID)
	if err != nil {
		return Progress{Items: []Item{}}, fmt.Errorf("get roadmap items: %w", err)
	}
	if items == nil {
		items = []Item{}
	}
	return Progress{
		Snapshot: progress.Aggregate(items, func(it Item) bool { return it.Completed }),
		Items:    items,
	}, nil
}
