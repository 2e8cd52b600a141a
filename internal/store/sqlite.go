package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/palaver-ai/chat-platform/internal/content"
	"github.com/palaver-ai/chat-platform/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user
	ON conversations(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, created_at);
`

// SQLiteStore is the SQLite-backed Store implementation. Message
// content is stored in the canonical wire form (bare string for a
// single text part, JSON array otherwise) and re-expanded on read.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (and if needed bootstraps) a store at the given
// path.
func NewSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteMemory opens an in-memory store, used by tests.
func NewSQLiteMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps every statement on the same in-memory
	// database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindOwned fetches a conversation owned by the user.
func (s *SQLiteStore) FindOwned(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations WHERE id = ? AND user_id = ?`,
		conversationID, userID,
	)
	return scanConversation(row)
}

// Create inserts a new conversation.
func (s *SQLiteStore) Create(ctx context.Context, userID string, title *string) (*model.Conversation, error) {
	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// AppendMessage appends a message to the conversation log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID string, role model.Role, parts []content.Part) (*model.Message, error) {
	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           role,
		Parts:          parts,
		CreatedAt:      time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at)
		 SELECT ?, id, ?, ?, ? FROM conversations WHERE id = ?`,
		msg.ID, string(role), content.Encode(parts), msg.CreatedAt.UnixNano(), conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return msg, nil
}

// Touch bumps the conversation's last-activity time.
func (s *SQLiteStore) Touch(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().UnixNano(), conversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMessages returns a conversation's messages in append order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at, id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var role, stored string
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &stored, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = model.Role(role)
		msg.Parts = content.Decode(stored)
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListConversations returns the user's conversations, most recently
// active first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations WHERE user_id = ?
		 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// Delete removes a conversation; messages cascade.
func (s *SQLiteStore) Delete(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ?`, conversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*model.Conversation, error) {
	var conv model.Conversation
	var createdAt, updatedAt int64
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	conv.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &conv, nil
}
