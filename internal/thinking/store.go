// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package thinking

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrStoreClosed = errors.New("think-span store is closed")
)

// =============================================================================
// SCHEMA
// =============================================================================

// SchemaVersion tracks the database schema version for migrations.
const SchemaVersion = 1

// Schema for persisted thinking spans, keyed by conversation and message
// content fingerprint.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS think_spans (
    conversation_id TEXT NOT NULL,
    fingerprint     TEXT NOT NULL,
    idx             INTEGER NOT NULL,  -- span position within the message
    start_ms        INTEGER NOT NULL,
    end_ms          INTEGER NOT NULL DEFAULT 0,
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (conversation_id, fingerprint, idx)
);

CREATE INDEX IF NOT EXISTS idx_think_spans_conv ON think_spans(conversation_id);
`

// =============================================================================
// SPAN STORE
// =============================================================================

// Store persists thinking spans in a local SQLite database. It is safe for
// concurrent use.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// OpenStore opens (creating if needed) the span database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create span store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open span store: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize span store schema: %w", err)
	}

	if _, err := db.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprint(SchemaVersion),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("record schema version: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Save persists a message's spans using read-merge-write: if the stored
// history already records more spans than the incoming set, the store keeps
// it. This mirrors the monotonic reload rule and protects concurrently
// recorded history.
func (s *Store) Save(conversationID, fingerprint string, spans []model.ThinkSpan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	stored, err := s.loadLocked(conversationID, fingerprint)
	if err != nil {
		return err
	}
	if len(stored) > len(spans) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin span save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM think_spans WHERE conversation_id = ? AND fingerprint = ?`,
		conversationID, fingerprint,
	); err != nil {
		return fmt.Errorf("clear stored spans: %w", err)
	}

	for i, span := range spans {
		if _, err := tx.Exec(
			`INSERT INTO think_spans (conversation_id, fingerprint, idx, start_ms, end_ms, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			conversationID, fingerprint, i, span.StartMs, span.EndMs, span.DurationMs,
		); err != nil {
			return fmt.Errorf("insert span %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load returns the persisted spans for a message, ordered by position.
// A message with no stored history yields an empty slice, not an error.
func (s *Store) Load(conversationID, fingerprint string) ([]model.ThinkSpan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.loadLocked(conversationID, fingerprint)
}

func (s *Store) loadLocked(conversationID, fingerprint string) ([]model.ThinkSpan, error) {
	rows, err := s.db.Query(
		`SELECT start_ms, end_ms, duration_ms FROM think_spans
		 WHERE conversation_id = ? AND fingerprint = ? ORDER BY idx`,
		conversationID, fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("load spans: %w", err)
	}
	defer rows.Close()

	var spans []model.ThinkSpan
	for rows.Next() {
		var span model.ThinkSpan
		if err := rows.Scan(&span.StartMs, &span.EndMs, &span.DurationMs); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		spans = append(spans, span)
	}
	return spans, rows.Err()
}

// MergeInto loads the persisted history for msg and applies the monotonic
// merge rule. Returns true if the message gained spans.
func (s *Store) MergeInto(conversationID string, msg *model.Message) (bool, error) {
	stored, err := s.Load(conversationID, Fingerprint(msg.Content))
	if err != nil {
		return false, err
	}
	return Merge(msg, stored), nil
}

// DeleteConversation removes all stored spans for a conversation.
func (s *Store) DeleteConversation(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`DELETE FROM think_spans WHERE conversation_id = ?`, conversationID)
	return err
}
