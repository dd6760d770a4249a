package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		sessionId TEXT NOT NULL,
		audioPath TEXT NOT NULL,
		startSec REAL NOT NULL,
		endSec REAL NOT NULL,
		modelId TEXT NOT NULL,
		temperature REAL NOT NULL,
		thinkingBudget INTEGER NOT NULL DEFAULT 0,
		prompt TEXT NOT NULL,
		createdAt REAL NOT NULL,
		updatedAt REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		conversationId TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		createdAt REAL NOT NULL,
		UNIQUE(conversationId, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(createdAt);
`

// Store is the conversation archive.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive at path for writing. The special path
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps an in-memory database alive and serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing archive in read-only mode with WAL.
func OpenReadOnly(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveConversation inserts c, or refreshes its updatedAt if it exists.
func (s *Store) SaveConversation(c Conversation) error {
	if c.ID == "" {
		return errors.New("save conversation: empty id")
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations
			(id, sessionId, audioPath, startSec, endSec, modelId, temperature,
			 thinkingBudget, prompt, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updatedAt = excluded.updatedAt
	`, c.ID, c.SessionID, c.AudioPath, c.StartSec, c.EndSec, c.ModelID, c.Temperature,
		c.ThinkingBudget, c.Prompt, unixFromTime(created), unixFromTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// SaveTurns stores turns of a conversation. Turns already stored (same id)
// are left untouched, so the whole transcript can be saved repeatedly.
func (s *Store) SaveTurns(conversationID string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO turns (id, conversationId, seq, role, text, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare turn insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, t := range turns {
		created := t.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.Exec(t.ID, conversationID, t.Seq, t.Role, t.Text, unixFromTime(created)); err != nil {
			return fmt.Errorf("insert turn %d: %w", t.Seq, err)
		}
	}
	if _, err := tx.Exec(`UPDATE conversations SET updatedAt = ? WHERE id = ?`,
		unixFromTime(now), conversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return tx.Commit()
}

// ListConversations returns the most recent conversations, newest first.
func (s *Store) ListConversations(limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT c.id, c.sessionId, c.audioPath, c.startSec, c.endSec, c.modelId,
		       c.temperature, c.thinkingBudget, c.prompt, c.createdAt, c.updatedAt,
		       (SELECT COUNT(*) FROM turns t WHERE t.conversationId = c.id)
		FROM conversations c
		ORDER BY c.createdAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Conversation returns the conversation with id, or nil if none exists.
func (s *Store) Conversation(id string) (*Conversation, error) {
	row := s.db.QueryRow(`
		SELECT id, sessionId, audioPath, startSec, endSec, modelId,
		       temperature, thinkingBudget, prompt, createdAt, updatedAt
		FROM conversations
		WHERE id = ?
	`, id)
	c, err := scanConversation(row, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// TurnsForConversation returns the turns of a conversation in order.
func (s *Store) TurnsForConversation(conversationID string) ([]Turn, error) {
	rows, err := s.db.Query(`
		SELECT id, conversationId, seq, role, text, createdAt
		FROM turns
		WHERE conversationId = ?
		ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var createdAt float64
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Seq, &t.Role, &t.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = timeFromUnix(createdAt)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(r scanner, withCount bool) (Conversation, error) {
	var c Conversation
	var createdAt, updatedAt float64
	dest := []any{&c.ID, &c.SessionID, &c.AudioPath, &c.StartSec, &c.EndSec, &c.ModelID,
		&c.Temperature, &c.ThinkingBudget, &c.Prompt, &createdAt, &updatedAt}
	if withCount {
		dest = append(dest, &c.TurnCount)
	}
	if err := r.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scan conversation: %w", err)
	}
	c.CreatedAt = timeFromUnix(createdAt)
	c.UpdatedAt = timeFromUnix(updatedAt)
	return c, nil
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
