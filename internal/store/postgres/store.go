package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/studyplan/internal/diagram"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

// Store is the PostgreSQL backend. Roadmaps and their items are written in a
// single transaction.
type Store struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := CreateConnectionPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, tx: NewTxManager(pool, logger)}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.pool.Ping(ctx))
}

func parseID(kind, id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q: %w", kind, id, store.ErrNotFound)
	}
	return u, nil
}

func (s *Store) CreateConversation(ctx context.Context, sessionID string) (string, error) {
	id := uuid.New()
	_, err := executor(ctx, s.pool).Exec(ctx, `
		INSERT INTO conversations (id, session_id, created_at, updated_at)
		VALUES ($1, $2, now(), now())`,
		id, sessionID,
	)
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", mapError(err))
	}
	return id.String(), nil
}

func (s *Store) GetOrCreateConversation(ctx context.Context, sessionID string) (string, error) {
	var id uuid.UUID
	err := executor(ctx, s.pool).QueryRow(ctx, `
		SELECT id FROM conversations
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		sessionID,
	).Scan(&id)
	if err == nil {
		return id.String(), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("find conversation: %w", mapError(err))
	}
	return s.CreateConversation(ctx, sessionID)
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (*store.Conversation, error) {
	id, err := parseID("conversation", conversationID)
	if err != nil {
		return nil, err
	}

	var c store.Conversation
	var rowID uuid.UUID
	err = executor(ctx, s.pool).QueryRow(ctx, `
		SELECT id, session_id, created_at, updated_at
		FROM conversations WHERE id = $1`,
		id,
	).Scan(&rowID, &c.SessionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", mapError(err))
	}
	c.ID = rowID.String()
	return &c, nil
}

func (s *Store) SaveMessage(ctx context.Context, conversationID string, role store.Role, content string) error {
	convID, err := parseID("conversation", conversationID)
	if err != nil {
		return err
	}

	return s.tx.ExecTx(ctx, func(ctx context.Context) error {
		db := executor(ctx, s.pool)
		if _, err := db.Exec(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, clock_timestamp())`,
			uuid.New(), convID, string(role), content,
		); err != nil {
			return fmt.Errorf("insert message: %w", mapError(err))
		}
		if _, err := db.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, convID); err != nil {
			return fmt.Errorf("touch conversation: %w", mapError(err))
		}
		return nil
	})
}

func (s *Store) GetConversationHistory(ctx context.Context, conversationID string) ([]store.Message, error) {
	convID, err := parseID("conversation", conversationID)
	if err != nil {
		return nil, err
	}

	rows, err := executor(ctx, s.pool).Query(ctx, `
		SELECT role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`,
		convID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", mapError(err))
	}
	defer rows.Close()

	var msgs []store.Message
	for rows.Next() {
		var m store.Message
		var role string
		if err := rows.Scan(&role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = store.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) ClearConversation(ctx context.Context, conversationID string) error {
	convID, err := parseID("conversation", conversationID)
	if err != nil {
		return err
	}
	if _, err := executor(ctx, s.pool).Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, convID); err != nil {
		return fmt.Errorf("delete messages: %w", mapError(err))
	}
	return nil
}

func (s *Store) SaveRoadmap(ctx context.Context, conversationID, title, diagramText string, nodes []diagram.Node) (string, error) {
	convID, err := parseID("conversation", conversationID)
	if err != nil {
		return "", err
	}

	roadmapID := uuid.New()
	err = s.tx.ExecTx(ctx, func(ctx context.Context) error {
		db := executor(ctx, s.pool)
		if _, err := db.Exec(ctx, `
			INSERT INTO roadmaps (id, conversation_id, title, mermaid_diagram, created_at)
			VALUES ($1, $2, $3, $4, clock_timestamp())`,
			roadmapID, convID, title, diagramText,
		); err != nil {
			return fmt.Errorf("insert roadmap: %w", mapError(err))
		}

		for i, n := range nodes {
			if _, err := db.Exec(ctx, `
				INSERT INTO roadmap_items (id, roadmap_id, item_id, position, title, description, completed)
				VALUES ($1, $2, $3, $4, $5, $6, false)`,
				uuid.New(), roadmapID, n.ID, i, n.Title, n.Description,
			); err != nil {
				return fmt.Errorf("insert roadmap item %s: %w", n.ID, mapError(err))
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return roadmapID.String(), nil
}

func (s *Store) GetRoadmaps(ctx context.Context, conversationID string) ([]store.Roadmap, error) {
	convID, err := parseID("conversation", conversationID)
	if err != nil {
		return nil, err
	}

	rows, err := executor(ctx, s.pool).Query(ctx, `
		SELECT id, title, mermaid_diagram, created_at
		FROM roadmaps
		WHERE conversation_id = $1
		ORDER BY created_at DESC`,
		convID,
	)
	if err != nil {
		return nil, fmt.Errorf("query roadmaps: %w", mapError(err))
	}
	defer rows.Close()

	var out []store.Roadmap
	for rows.Next() {
		var rm store.Roadmap
		var id uuid.UUID
		if err := rows.Scan(&id, &rm.Title, &rm.Diagram, &rm.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan roadmap: %w", err)
		}
		rm.ID = id.String()
		rm.ConversationID = conversationID
		out = append(out, rm)
	}
	return out, rows.Err()
}

func (s *Store) GetRoadmapItems(ctx context.Context, roadmapID string) ([]store.Item, error) {
	rmID, err := parseID("roadmap", roadmapID)
	if err != nil {
		return nil, err
	}

	rows, err := executor(ctx, s.pool).Query(ctx, `
		SELECT id, item_id, title, description, completed, completed_at
		FROM roadmap_items
		WHERE roadmap_id = $1
		ORDER BY item_id, position`,
		rmID,
	)
	if err != nil {
		return nil, fmt.Errorf("query roadmap items: %w", mapError(err))
	}
	defer rows.Close()

	var out []store.Item
	for rows.Next() {
		var it store.Item
		var id uuid.UUID
		var completedAt *time.Time
		if err := rows.Scan(&id, &it.ItemID, &it.Title, &it.Description, &it.Completed, &completedAt); err != nil {
			return nil, fmt.Errorf("scan roadmap item: %w", err)
		}
		it.ID = id.String()
		it.RoadmapID = roadmapID
		it.CompletedAt = completedAt
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) UpdateItemProgress(ctx context.Context, itemID string, completed bool) error {
	id, err := parseID("item", itemID)
	if err != nil {
		return err
	}

	tag, err := executor(ctx, s.pool).Exec(ctx, `
		UPDATE roadmap_items
		SET completed = $2,
			completed_at = CASE WHEN $2 THEN now() ELSE NULL END
		WHERE id = $1`,
		id, completed,
	)
	if err != nil {
		return fmt.Errorf("update item progress: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", itemID, store.ErrNotFound)
	}
	return nil
}
