// Package persistence stores conversation history in SQLite. A chat row is
// a snapshot: the full message list is rewritten whenever the conversation
// grows, mirroring how the client hands over its state wholesale.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"chatforge/internal/models"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found in chat")
)

// Chat is one persisted conversation.
type Chat struct {
	ID          string           `json:"id"`
	URLID       string           `json:"urlId"`
	Description string           `json:"description"`
	Messages    []models.Message `json:"messages,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the chat database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "chats.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		url_id TEXT NOT NULL UNIQUE,
		description TEXT,
		messages TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_url_id ON chats(url_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// SetMessages upserts the full message snapshot for a chat, creating the
// row on first write.
func (s *Store) SetMessages(ctx context.Context, chatID string, messages []models.Message, description string) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	urlID, err := s.nextURLID(ctx, chatID)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chats (id, url_id, description, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			messages = excluded.messages,
			updated_at = excluded.updated_at`,
		chatID, urlID, description, string(data), now, now)
	return err
}

// GetChat looks a chat up by id or url id.
func (s *Store) GetChat(ctx context.Context, id string) (*Chat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url_id, description, messages, created_at, updated_at
		FROM chats WHERE id = ? OR url_id = ?`, id, id)
	return scanChat(row)
}

// List returns all chats, most recently updated first, without message
// bodies.
func (s *Store) List(ctx context.Context) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url_id, description, created_at, updated_at
		FROM chats ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		var desc sql.NullString
		if err := rows.Scan(&c.ID, &c.URLID, &desc, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Description = desc.String
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// Delete removes a chat by id or url id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ? OR url_id = ?`, id, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Fork materializes a new chat containing the prefix of the source chat up
// to and including messageID, and returns the new chat's url id.
func (s *Store) Fork(ctx context.Context, chatID, messageID string) (string, error) {
	src, err := s.GetChat(ctx, chatID)
	if err != nil {
		return "", err
	}

	cut := -1
	for i, m := range src.Messages {
		if m.ID == messageID {
			cut = i
			break
		}
	}
	if cut < 0 {
		return "", ErrMessageNotFound
	}

	return s.create(ctx, src.Description+" (fork)", src.Messages[:cut+1])
}

// Duplicate copies a whole chat, returning the new url id.
func (s *Store) Duplicate(ctx context.Context, chatID string) (string, error) {
	src, err := s.GetChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	return s.create(ctx, src.Description+" (copy)", src.Messages)
}

// CreateFromMessages imports a message list as a new chat, returning the
// new url id.
func (s *Store) CreateFromMessages(ctx context.Context, description string, messages []models.Message) (string, error) {
	return s.create(ctx, description, messages)
}

func (s *Store) create(ctx context.Context, description string, messages []models.Message) (string, error) {
	id := uuid.NewString()
	urlID, err := s.nextURLID(ctx, id)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chats (id, url_id, description, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, urlID, description, string(data), now, now)
	if err != nil {
		return "", err
	}
	return urlID, nil
}

// nextURLID returns the existing url id for a chat, or derives a fresh
// unique short id.
func (s *Store) nextURLID(ctx context.Context, chatID string) (string, error) {
	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT url_id FROM chats WHERE id = ?`, chatID).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	for {
		candidate := uuid.NewString()[:8]
		var count int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chats WHERE url_id = ?`, candidate).Scan(&count); err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
}

func scanChat(row *sql.Row) (*Chat, error) {
	var c Chat
	var desc sql.NullString
	var raw string
	err := row.Scan(&c.ID, &c.URLID, &desc, &raw, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Description = desc.String
	if err := json.Unmarshal([]byte(raw), &c.Messages); err != nil {
		return nil, fmt.Errorf("corrupt message payload for chat %s: %w", c.ID, err)
	}
	return &c, nil
}
