package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	postgrest "github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"github.com/MikeSquared-Agency/studyplan/internal/diagram"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

const (
	conversationsTable = "conversations"
	messagesTable      = "messages"
	roadmapsTable      = "roadmaps"
	roadmapItemsTable  = "roadmap_items"

	codeMissingTable = "PGRST205"
	codeInvalidText  = "22P02"
	codeForeignKey   = "23503"
	missingTableMsg  = "Could not find the table"
)

var errorCodeRe = regexp.MustCompile(`^\(([A-Z0-9]+)\)`)

// RestClient is the part of the Supabase client the store uses.
type RestClient interface {
	From(table string) *postgrest.QueryBuilder
}

// Store persists conversations and roadmaps through the Supabase REST API.
// PostgREST cannot span two requests in one transaction, so SaveRoadmap may
// leave a roadmap without items and reports that as *store.PartialSaveError.
// Requests do not honour ctx cancellation; the REST client takes no context.
type Store struct {
	client RestClient
	logger *slog.Logger
	now    func() time.Time

	setupNotice sync.Once
}

var _ store.Store = (*Store)(nil)

// New connects to the project at url with the given API key.
func New(url, key string, logger *slog.Logger) (*Store, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return NewWithClient(client, logger), nil
}

func NewWithClient(client RestClient, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type conversationRow struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageRow struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type roadmapRow struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Title          string    `json:"title"`
	Diagram        string    `json:"mermaid_diagram"`
	CreatedAt      time.Time `json:"created_at"`
}

type itemRow struct {
	ID          string     `json:"id,omitempty"`
	RoadmapID   string     `json:"roadmap_id,omitempty"`
	ItemID      string     `json:"item_id"`
	Position    int        `json:"position"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// mapError classifies PostgREST errors, which arrive as "(CODE) message".
func (s *Store) mapError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	var code string
	if m := errorCodeRe.FindStringSubmatch(msg); m != nil {
		code = m[1]
	}

	switch {
	case code == codeMissingTable || strings.Contains(msg, missingTableMsg):
		s.setupNotice.Do(func() {
			s.logger.Error("database setup required: the Supabase tables have not been created; "+
				"run internal/store/postgres/schema.sql in the Supabase SQL editor",
				"error", msg,
			)
		})
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	case code == codeInvalidText || code == codeForeignKey:
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

func (s *Store) Ping(context.Context) error {
	var rows []conversationRow
	_, err := s.client.From(conversationsTable).Select("id", "", false).Limit(1, "").ExecuteTo(&rows)
	return s.mapError(err)
}

func (s *Store) CreateConversation(_ context.Context, sessionID string) (string, error) {
	now := s.now()
	var rows []conversationRow
	_, err := s.client.From(conversationsTable).
		Insert(conversationRow{SessionID: sessionID, CreatedAt: now, UpdatedAt: now}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", s.mapError(err))
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return "", errors.New("insert conversation: no row returned")
	}
	return rows[0].ID, nil
}

func (s *Store) GetOrCreateConversation(ctx context.Context, sessionID string) (string, error) {
	var rows []conversationRow
	_, err := s.client.From(conversationsTable).
		Select("id", "", false).
		Eq("session_id", sessionID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("find conversation: %w", s.mapError(err))
	}
	if len(rows) > 0 {
		return rows[0].ID, nil
	}
	return s.CreateConversation(ctx, sessionID)
}

func (s *Store) GetConversation(_ context.Context, conversationID string) (*store.Conversation, error) {
	var rows []conversationRow
	_, err := s.client.From(conversationsTable).
		Select("id, session_id, created_at, updated_at", "", false).
		Eq("id", conversationID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", s.mapError(err))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, store.ErrNotFound)
	}
	r := rows[0]
	return &store.Conversation{ID: r.ID, SessionID: r.SessionID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}, nil
}

func (s *Store) SaveMessage(_ context.Context, conversationID string, role store.Role, content string) error {
	row := messageRow{ConversationID: conversationID, Role: string(role), Content: content, CreatedAt: s.now()}
	if _, _, err := s.client.From(messagesTable).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert message: %w", s.mapError(err))
	}
	return nil
}

func (s *Store) GetConversationHistory(_ context.Context, conversationID string) ([]store.Message, error) {
	var rows []messageRow
	_, err := s.client.From(messagesTable).
		Select("role, content, created_at", "", false).
		Eq("conversation_id", conversationID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", s.mapError(err))
	}

	msgs := make([]store.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, store.Message{Role: store.Role(r.Role), Content: r.Content, CreatedAt: r.CreatedAt})
	}
	return msgs, nil
}

func (s *Store) ClearConversation(_ context.Context, conversationID string) error {
	if _, _, err := s.client.From(messagesTable).Delete("minimal", "").Eq("conversation_id", conversationID).Execute(); err != nil {
		return fmt.Errorf("delete messages: %w", s.mapError(err))
	}
	return nil
}

func (s *Store) SaveRoadmap(_ context.Context, conversationID, title, diagramText string, nodes []diagram.Node) (string, error) {
	var rows []roadmapRow
	_, err := s.client.From(roadmapsTable).
		Insert(roadmapRow{ConversationID: conversationID, Title: title, Diagram: diagramText, CreatedAt: s.now()}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("insert roadmap: %w", s.mapError(err))
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return "", errors.New("insert roadmap: no row returned")
	}
	roadmapID := rows[0].ID

	if len(nodes) == 0 {
		return roadmapID, nil
	}

	items := make([]itemRow, 0, len(nodes))
	for i, n := range nodes {
		items = append(items, itemRow{
			RoadmapID:   roadmapID,
			ItemID:      n.ID,
			Position:    i,
			Title:       n.Title,
			Description: n.Description,
		})
	}
	if _, _, err := s.client.From(roadmapItemsTable).Insert(items, false, "", "minimal", "").Execute(); err != nil {
		return roadmapID, &store.PartialSaveError{RoadmapID: roadmapID, Err: s.mapError(err)}
	}
	return roadmapID, nil
}

func (s *Store) GetRoadmaps(_ context.Context, conversationID string) ([]store.Roadmap, error) {
	var rows []roadmapRow
	_, err := s.client.From(roadmapsTable).
		Select("id, title, mermaid_diagram, created_at", "", false).
		Eq("conversation_id", conversationID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("query roadmaps: %w", s.mapError(err))
	}

	out := make([]store.Roadmap, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Roadmap{
			ID:             r.ID,
			ConversationID: conversationID,
			Title:          r.Title,
			Diagram:        r.Diagram,
			CreatedAt:      r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) GetRoadmapItems(_ context.Context, roadmapID string) ([]store.Item, error) {
	var rows []itemRow
	_, err := s.client.From(roadmapItemsTable).
		Select("id, item_id, title, description, completed, completed_at", "", false).
		Eq("roadmap_id", roadmapID).
		Order("item_id", &postgrest.OrderOpts{Ascending: true}).
		Order("position", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("query roadmap items: %w", s.mapError(err))
	}

	out := make([]store.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Item{
			ID:          r.ID,
			RoadmapID:   roadmapID,
			ItemID:      r.ItemID,
			Title:       r.Title,
			Description: r.Description,
			Completed:   r.Completed,
			CompletedAt: r.CompletedAt,
		})
	}
	return out, nil
}

func (s *Store) UpdateItemProgress(_ context.Context, itemID string, completed bool) error {
	var completedAt any
	if completed {
		completedAt = s.now()
	}

	var rows []itemRow
	_, err := s.client.From(roadmapItemsTable).
		Update(map[string]any{"completed": completed, "completed_at": completedAt}, "representation", "").
		Eq("id", itemID).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("update item progress: %w", s.mapError(err))
	}
	if len(rows) == 0 {
		return fmt.Errorf("item %s: %w", itemID, store.ErrNotFound)
	}
	return nil
}
