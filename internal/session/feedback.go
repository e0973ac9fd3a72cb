package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// FeedbackEntry records one flagged diagnosis for later review.
type FeedbackEntry struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// FeedbackStore appends flag feedback either to a local JSONL file or to
// Postgres when a DSN is configured.
type FeedbackStore struct {
	path string
	db   *sql.DB

	mu         sync.Mutex
	schemaOnce sync.Once
	schemaErr  error
}

func NewFeedbackStore(path string) *FeedbackStore {
	return &FeedbackStore{path: path}
}

func NewPostgresFeedbackStore(dsn string) (*FeedbackStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &FeedbackStore{db: db}, nil
}

// NewFeedbackStoreFromEnv prefers Postgres via FEEDBACK_PG_DSN and falls
// back to the JSONL file.
func NewFeedbackStoreFromEnv(path string) *FeedbackStore {
	dsn := strings.TrimSpace(os.Getenv("FEEDBACK_PG_DSN"))
	if dsn == "" {
		return NewFeedbackStore(path)
	}
	s, err := NewPostgresFeedbackStore(dsn)
	if err != nil {
		return NewFeedbackStore(path)
	}
	return s
}

// Append records one entry. The timestamp is filled in when absent.
func (s *FeedbackStore) Append(entry FeedbackEntry) error {
	if s == nil {
		return nil
	}
	if strings.TrimSpace(entry.Timestamp) == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if s.db != nil {
		return s.appendDB(entry)
	}
	return s.appendFile(entry)
}

func (s *FeedbackStore) appendFile(entry FeedbackEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open %s: %w", s.path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("feedback: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FeedbackStore) appendDB(entry FeedbackEntry) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO flagged_feedback (created_at, session_id, reason) VALUES ($1, $2, $3)`,
		entry.Timestamp, entry.SessionID, entry.Reason,
	)
	return err
}

func (s *FeedbackStore) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`CREATE TABLE IF NOT EXISTS flagged_feedback (
			id BIGSERIAL PRIMARY KEY,
			created_at TEXT NOT NULL,
			session_id TEXT NOT NULL,
			reason TEXT NOT NULL
		)`)
	})
	return s.schemaErr
}
