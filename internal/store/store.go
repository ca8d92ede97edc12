package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrThreadNotFound = errors.New("thread not found")

// Store is the SQLite-backed persistence layer for chat threads and
// their ordered message history.
//
// Messages are append-only and ordered by their autoincrement seq id
// within a thread. WAL is enabled so the UI can read while a turn is
// being written.
type Store struct {
	db *sql.DB
}

type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	Seq       int64     `json:"seq"`
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const schema = `
CREATE TABLE IF NOT EXISTS threads (
  thread_id          TEXT PRIMARY KEY,
  title              TEXT NOT NULL DEFAULT '',
  created_at_unix_ms INTEGER NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
  id                 INTEGER PRIMARY KEY AUTOINCREMENT,
  thread_id          TEXT NOT NULL REFERENCES threads(thread_id),
  role               TEXT NOT NULL,
  content            TEXT NOT NULL,
  created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, id);
CREATE INDEX IF NOT EXISTS idx_threads_updated ON threads(updated_at_unix_ms);
`

func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	// Single writer; the driver serializes access through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateThread inserts a new thread with a fresh UUID identifier.
func (s *Store) CreateThread(ctx context.Context, title string) (Thread, error) {
	if s == nil || s.db == nil {
		return Thread{}, errors.New("store not initialized")
	}
	now := time.Now().UTC()
	t := Thread{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO threads(thread_id, title, created_at_unix_ms, updated_at_unix_ms)
VALUES(?, ?, ?, ?)
`, t.ID, t.Title, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Thread{}, fmt.Errorf("failed to create thread: %w", err)
	}
	return t, nil
}

// EnsureThread returns the thread with the given identifier, creating it
// when absent. Used by surfaces with deterministic thread ids, like the
// Telegram gateway.
func (s *Store) EnsureThread(ctx context.Context, threadID, title string) (Thread, error) {
	if s == nil || s.db == nil {
		return Thread{}, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return Thread{}, errors.New("missing thread id")
	}
	if t, err := s.GetThread(ctx, threadID); err == nil {
		return t, nil
	} else if !errors.Is(err, ErrThreadNotFound) {
		return Thread{}, err
	}

	now := time.Now().UTC()
	t := Thread{ID: threadID, Title: strings.TrimSpace(title), CreatedAt: now, UpdatedAt: now}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO threads(thread_id, title, created_at_unix_ms, updated_at_unix_ms)
VALUES(?, ?, ?, ?)
`, t.ID, t.Title, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Thread{}, fmt.Errorf("failed to ensure thread: %w", err)
	}
	return t, nil
}

func (s *Store) GetThread(ctx context.Context, threadID string) (Thread, error) {
	if s == nil || s.db == nil {
		return Thread{}, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return Thread{}, ErrThreadNotFound
	}
	var (
		t                  Thread
		createdMs, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT thread_id, title, created_at_unix_ms, updated_at_unix_ms
FROM threads
WHERE thread_id = ?
`, threadID).Scan(&t.ID, &t.Title, &createdMs, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Thread{}, ErrThreadNotFound
	}
	if err != nil {
		return Thread{}, fmt.Errorf("failed to get thread: %w", err)
	}
	t.CreatedAt = time.UnixMilli(createdMs).UTC()
	t.UpdatedAt = time.UnixMilli(updated).UTC()
	return t, nil
}

// ListThreads returns all threads, most recently active first.
func (s *Store) ListThreads(ctx context.Context) ([]Thread, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT thread_id, title, created_at_unix_ms, updated_at_unix_ms
FROM threads
ORDER BY updated_at_unix_ms DESC, thread_id DESC
`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var out []Thread
	for rows.Next() {
		var (
			t                  Thread
			createdMs, updated int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &createdMs, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdMs).UTC()
		t.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return out, nil
}

// AppendMessage appends one message to a thread and bumps the thread's
// activity timestamp in the same transaction. A first user message also
// becomes the thread title if none was set.
func (s *Store) AppendMessage(ctx context.Context, threadID, role, content string) (Message, error) {
	if s == nil || s.db == nil {
		return Message{}, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	role = strings.TrimSpace(role)
	if threadID == "" {
		return Message{}, ErrThreadNotFound
	}
	if role != RoleUser && role != RoleAssistant {
		return Message{}, fmt.Errorf("invalid role: %q", role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := appendInTx(ctx, tx, threadID, role, content)
	if err != nil {
		return Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("failed to commit: %w", err)
	}
	return m, nil
}

// AppendExchange persists a user message and the assistant reply as one
// transaction, so a round trip is either fully recorded or not at all.
func (s *Store) AppendExchange(ctx context.Context, threadID, userContent, assistantContent string) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrThreadNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	userMsg, err := appendInTx(ctx, tx, threadID, RoleUser, userContent)
	if err != nil {
		return nil, err
	}
	assistantMsg, err := appendInTx(ctx, tx, threadID, RoleAssistant, assistantContent)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return []Message{userMsg, assistantMsg}, nil
}

func appendInTx(ctx context.Context, tx *sql.Tx, threadID, role, content string) (Message, error) {
	var title string
	err := tx.QueryRowContext(ctx, `
SELECT title FROM threads WHERE thread_id = ?
`, threadID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrThreadNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("failed to check thread: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
INSERT INTO messages(thread_id, role, content, created_at_unix_ms)
VALUES(?, ?, ?, ?)
`, threadID, role, content, now.UnixMilli())
	if err != nil {
		return Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	seq, _ := res.LastInsertId()

	nextTitle := title
	if nextTitle == "" && role == RoleUser {
		nextTitle = titleCandidate(content)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE threads
SET title = ?, updated_at_unix_ms = ?
WHERE thread_id = ?
`, nextTitle, now.UnixMilli(), threadID); err != nil {
		return Message{}, fmt.Errorf("failed to update thread: %w", err)
	}

	return Message{
		Seq:       seq,
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}, nil
}

// ListMessages returns the thread's messages in append order. A known
// thread with no messages yields an empty slice.
func (s *Store) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrThreadNotFound
	}
	if _, err := s.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, thread_id, role, content, created_at_unix_ms
FROM messages
WHERE thread_id = ?
ORDER BY id ASC
`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var (
			m         Message
			createdMs int64
		)
		if err := rows.Scan(&m.Seq, &m.ThreadID, &m.Role, &m.Content, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}

// DeleteThread removes a thread and its messages in one transaction.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return ErrThreadNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrThreadNotFound
	}
	return tx.Commit()
}

// PruneThreadsIdleSince deletes threads whose last activity is older than
// cutoff, with their messages. Returns the number of threads removed.
func (s *Store) PruneThreadsIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialized")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ms := cutoff.UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
DELETE FROM messages
WHERE thread_id IN (SELECT thread_id FROM threads WHERE updated_at_unix_ms < ?)
`, ms); err != nil {
		return 0, fmt.Errorf("failed to prune messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE updated_at_unix_ms < ?`, ms)
	if err != nil {
		return 0, fmt.Errorf("failed to prune threads: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return n, nil
}

func titleCandidate(content string) string {
	t := strings.Join(strings.Fields(content), " ")
	const max = 64
	r := []rune(t)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return t
}
