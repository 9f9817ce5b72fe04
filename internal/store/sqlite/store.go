package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/studyplan/internal/diagram"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a local single-file backend built on modernc.org/sqlite.
type Store struct {
	db  *sql.DB
	uow *UnitOfWork
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the database at path.
func New(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sql.DB) *Store {
	return &Store{
		db:  db,
		uow: NewUnitOfWork(db),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.db.PingContext(ctx))
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mapError translates sqlite errors into the store's sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table"):
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return err
}

func (s *Store) CreateConversation(ctx context.Context, sessionID string) (string, error) {
	return createConversation(ctx, s.db, sessionID, s.stamp())
}

func createConversation(ctx context.Context, db DBTX, sessionID, now string) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO conversations (id, session_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, sessionID, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", mapError(err))
	}
	return id, nil
}

func (s *Store) GetOrCreateConversation(ctx context.Context, sessionID string) (string, error) {
	var id string
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx DBTX) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM conversations WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
			sessionID,
		).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("find conversation: %w", mapError(err))
		}
		id, err = createConversation(ctx, tx, sessionID, s.stamp())
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (*store.Conversation, error) {
	var c store.Conversation
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, created_at, updated_at FROM conversations WHERE id = ?`,
		conversationID,
	).Scan(&c.ID, &c.SessionID, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", mapError(err))
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

func (s *Store) SaveMessage(ctx context.Context, conversationID string, role store.Role, content string) error {
	now := s.stamp()
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), conversationID, string(role), content, now,
		); err != nil {
			return fmt.Errorf("insert message: %w", mapError(err))
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID,
		); err != nil {
			return fmt.Errorf("touch conversation: %w", mapError(err))
		}
		return nil
	})
}

func (s *Store) GetConversationHistory(ctx context.Context, conversationID string) ([]store.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", mapError(err))
	}
	defer rows.Close()

	var msgs []store.Message
	for rows.Next() {
		var m store.Message
		var role, created string
		if err := rows.Scan(&role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = store.Role(role)
		m.CreatedAt = parseTime(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) ClearConversation(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", mapError(err))
	}
	return nil
}

func (s *Store) SaveRoadmap(ctx context.Context, conversationID, title, diagramText string, nodes []diagram.Node) (string, error) {
	roadmapID := uuid.NewString()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roadmaps (id, conversation_id, title, mermaid_diagram, created_at) VALUES (?, ?, ?, ?, ?)`,
			roadmapID, conversationID, title, diagramText, s.stamp(),
		); err != nil {
			return fmt.Errorf("insert roadmap: %w", mapError(err))
		}
		for i, n := range nodes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO roadmap_items (id, roadmap_id, item_id, position, title, description, completed) VALUES (?, ?, ?, ?, ?, ?, 0)`,
				uuid.NewString(), roadmapID, n.ID, i, n.Title, n.Description,
			); err != nil {
				return fmt.Errorf("insert roadmap item %s: %w", n.ID, mapError(err))
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return roadmapID, nil
}

func (s *Store) GetRoadmaps(ctx context.Context, conversationID string) ([]store.Roadmap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, mermaid_diagram, created_at FROM roadmaps WHERE conversation_id = ? ORDER BY created_at DESC, rowid DESC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query roadmaps: %w", mapError(err))
	}
	defer rows.Close()

	var out []store.Roadmap
	for rows.Next() {
		var rm store.Roadmap
		var created string
		if err := rows.Scan(&rm.ID, &rm.Title, &rm.Diagram, &created); err != nil {
			return nil, fmt.Errorf("scan roadmap: %w", err)
		}
		rm.ConversationID = conversationID
		rm.CreatedAt = parseTime(created)
		out = append(out, rm)
	}
	return out, rows.Err()
}

func (s *Store) GetRoadmapItems(ctx context.Context, roadmapID string) ([]store.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, title, description, completed, completed_at FROM roadmap_items WHERE roadmap_id = ? ORDER BY item_id, position`,
		roadmapID,
	)
	if err != nil {
		return nil, fmt.Errorf("query roadmap items: %w", mapError(err))
	}
	defer rows.Close()

	var out []store.Item
	for rows.Next() {
		var it store.Item
		var completedAt sql.NullString
		if err := rows.Scan(&it.ID, &it.ItemID, &it.Title, &it.Description, &it.Completed, &completedAt); err != nil {
			return nil, fmt.Errorf("scan roadmap item: %w", err)
		}
		it.RoadmapID = roadmapID
		if completedAt.Valid {
			ts := parseTime(completedAt.String)
			it.CompletedAt = &ts
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) UpdateItemProgress(ctx context.Context, itemID string, completed bool) error {
	var completedAt any
	if completed {
		completedAt = s.stamp()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE roadmap_items SET completed = ?, completed_at = ? WHERE id = ?`,
		completed, completedAt, itemID,
	)
	if err != nil {
		return fmt.Errorf("update item progress: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item progress: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", itemID, store.ErrNotFound)
	}
	return nil
}
