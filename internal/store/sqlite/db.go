package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id               TEXT PRIMARY KEY,
		conversation_id  TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role             TEXT NOT NULL CHECK(role IN ('user','assistant')),
		content          TEXT NOT NULL,
		created_at       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS roadmaps (
		id               TEXT PRIMARY KEY,
		conversation_id  TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		title            TEXT NOT NULL,
		mermaid_diagram  TEXT NOT NULL,
		created_at       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_roadmaps_conversation ON roadmaps(conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS roadmap_items (
		id            TEXT PRIMARY KEY,
		roadmap_id    TEXT NOT NULL REFERENCES roadmaps(id) ON DELETE CASCADE,
		item_id       TEXT NOT NULL,
		position      INTEGER NOT NULL DEFAULT 0,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		completed     INTEGER NOT NULL DEFAULT 0,
		completed_at  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_roadmap_items_roadmap ON roadmap_items(roadmap_id, item_id)`,
}

// OpenDB opens a SQLite database at path, or an in-memory one for ":memory:".
// WAL mode and foreign keys are enabled and migrations applied.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// Migrate runs all schema migrations. Every statement is idempotent.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
