// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var ErrConversationNotFound = errors.New("conversation not found")

// =============================================================================
// TYPES
// =============================================================================

// Conversation is a stored chat transcript.
type Conversation struct {
	ID        string
	Title     string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

// Message is one stored chat turn.
type Message struct {
	ID        int64
	Role      string // "system", "user", "assistant"
	Content   string
	CreatedAt time.Time

	// Generation statistics, assistant messages only.
	TokenCount int
	DurationMs int64
}

// ConversationMeta is the listing view of a conversation.
type ConversationMeta struct {
	ID           string
	Title        string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// =============================================================================
// STORE
// =============================================================================

// timeFormat is fixed-width so string comparison in ORDER BY matches
// chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	model      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	token_count     INTEGER NOT NULL DEFAULT 0,
	duration_ms     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id);
`

// Store persists conversations in a SQLite database.
type Store struct {
	db *sql.DB

	// MaxConversations prunes the oldest conversations past this
	// count. Zero disables pruning.
	MaxConversations int
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, MaxConversations: 100}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Create starts a new conversation and returns its ID.
func (s *Store) Create(title, model string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC().Format(timeFormat)

	_, err := s.db.Exec(
		`INSERT INTO conversations (id, title, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, title, model, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	if s.MaxConversations > 0 {
		s.prune()
	}
	return id, nil
}

// Append adds a message to an existing conversation. The conversation
// title defaults to the first user message when still empty.
func (s *Store) Append(conversationID string, msg Message) error {
	now := time.Now().UTC()
	created := msg.CreatedAt
	if created.IsZero() {
		created = now
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		now.Format(timeFormat), conversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}

	_, err = tx.Exec(
		`INSERT INTO messages (conversation_id, role, content, created_at, token_count, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conversationID, msg.Role, msg.Content,
		created.UTC().Format(timeFormat), msg.TokenCount, msg.DurationMs)
	if err != nil {
		return err
	}

	if msg.Role == "user" {
		_, err = tx.Exec(
			`UPDATE conversations SET title = ? WHERE id = ? AND title = ''`,
			deriveTitle(msg.Content), conversationID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a conversation and its messages.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Clear removes every conversation.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM conversations`)
	return err
}

// prune removes the oldest conversations past MaxConversations.
func (s *Store) prune() {
	s.db.Exec(`
		DELETE FROM conversations WHERE id IN (
			SELECT id FROM conversations
			ORDER BY updated_at DESC
			LIMIT -1 OFFSET ?
		)`, s.MaxConversations)
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Load retrieves a conversation with all its messages.
func (s *Store) Load(id string) (*Conversation, error) {
	var conv Conversation
	var created, updated string

	err := s.db.QueryRow(
		`SELECT id, title, model, created_at, updated_at
		 FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Title, &conv.Model, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.CreatedAt = parseTime(created)
	conv.UpdatedAt = parseTime(updated)

	rows, err := s.db.Query(
		`SELECT id, role, content, created_at, token_count, duration_ms
		 FROM messages WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var msg Message
		var msgCreated string
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content,
			&msgCreated, &msg.TokenCount, &msg.DurationMs); err != nil {
			return nil, err
		}
		msg.CreatedAt = parseTime(msgCreated)
		conv.Messages = append(conv.Messages, msg)
	}
	return &conv, rows.Err()
}

// List returns conversation metadata, most recently updated first.
func (s *Store) List() ([]ConversationMeta, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.title, c.model, c.created_at, c.updated_at,
		       COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []ConversationMeta
	for rows.Next() {
		var meta ConversationMeta
		var created, updated string
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.Model,
			&created, &updated, &meta.MessageCount); err != nil {
			return nil, err
		}
		meta.CreatedAt = parseTime(created)
		meta.UpdatedAt = parseTime(updated)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// Search returns conversations whose title or message content contains
// the query, case-insensitively.
func (s *Store) Search(query string) ([]ConversationMeta, error) {
	if query == "" {
		return s.List()
	}
	pattern := "%" + strings.ToLower(query) + "%"

	rows, err := s.db.Query(`
		SELECT c.id, c.title, c.model, c.created_at, c.updated_at,
		       COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.id IN (
			SELECT DISTINCT c2.id FROM conversations c2
			LEFT JOIN messages m2 ON m2.conversation_id = c2.id
			WHERE lower(c2.title) LIKE ? OR lower(m2.content) LIKE ?
		)
		GROUP BY c.id
		ORDER BY c.updated_at DESC`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []ConversationMeta
	for rows.Next() {
		var meta ConversationMeta
		var created, updated string
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.Model,
			&created, &updated, &meta.MessageCount); err != nil {
			return nil, err
		}
		meta.CreatedAt = parseTime(created)
		meta.UpdatedAt = parseTime(updated)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders a conversation as a Markdown transcript.
func (c *Conversation) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# " + displayTitle(c.Title) + "\n\n")
	sb.WriteString("Model: " + c.Model + "\n")
	sb.WriteString("Created: " + c.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range c.Messages {
		var role string
		switch msg.Role {
		case "assistant":
			role = "**Assistant**"
		case "system":
			role = "**System**"
		default:
			role = "**User**"
		}
		sb.WriteString(role + " (" + msg.CreatedAt.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// =============================================================================
// HELPERS
// =============================================================================

// deriveTitle builds a conversation title from the first user message.
func deriveTitle(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	content = strings.ReplaceAll(content, "\r", "")
	runes := []rune(strings.TrimSpace(content))
	if len(runes) > 50 {
		return string(runes[:47]) + "..."
	}
	return string(runes)
}

func displayTitle(title string) string {
	if title == "" {
		return "Conversation"
	}
	return title
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
