package chat

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SessionStore persists per-session conversation history. The sqlite file is
// guarded with a file lock so a serve process and CLI invocations can share
// it.
type SessionStore struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenSessionStore(path, lockPath string) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, "create session store directory", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, "create session lock directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, "open session sqlite", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, apperr.Wrap(apperr.CodeConfig, "init session schema", err)
		}
	}
	return &SessionStore{db: db, lock: flock.New(lockPath)}, nil
}

func (s *SessionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SessionStore) withLock(fn func() error) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "lock session store", err)
	}
	if !locked {
		return apperr.New(apperr.CodeInternal, "lock session store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// Append adds one message to the session's history.
func (s *SessionStore) Append(sessionID string, msg Message) error {
	if sessionID == "" {
		return apperr.New(apperr.CodeValidation, "append message: missing session id")
	}
	return s.withLock(func() error {
		_, err := s.db.Exec(
			"INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)",
			sessionID, msg.Role, msg.Content, time.Now().UTC().Unix(),
		)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "append message", err)
		}
		return nil
	})
}

// History returns the session's messages in arrival order. An unknown
// session yields an empty history, not an error.
func (s *SessionStore) History(sessionID string) ([]Message, error) {
	rows, err := s.db.Query(
		"SELECT role, content FROM messages WHERE session_id = ? ORDER BY id ASC",
		sessionID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "read session history", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "scan session message", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "read session history", err)
	}
	return out, nil
}

// Clear drops every message of one session.
func (s *SessionStore) Clear(sessionID string) error {
	return s.withLock(func() error {
		if _, err := s.db.Exec("DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
			return apperr.Wrap(apperr.CodeInternal, fmt.Sprintf("clear session %s", sessionID), err)
		}
		return nil
	})
}
