// Package store indexes processed conversations in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"conversation-analytics-service/internal/models"
)

// ErrNotFound is returned when no conversation is indexed for a job.
var ErrNotFound = errors.New("store: conversation not found")

const memory = ":memory:"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		job_name      TEXT PRIMARY KEY,
		run_id        TEXT NOT NULL,
		language_code TEXT NOT NULL DEFAULT '',
		turns         INTEGER NOT NULL,
		duration      REAL NOT NULL,
		result_uri    TEXT NOT NULL DEFAULT '',
		processed_at  INTEGER NOT NULL,
		record        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS conversations_processed_at ON conversations(processed_at)`,
}

// Summary is the index row of one conversation.
type Summary struct {
	JobName      string    `json:"jobName" yaml:"jobName"`
	RunID        string    `json:"runId" yaml:"runId"`
	LanguageCode string    `json:"languageCode" yaml:"languageCode"`
	Turns        int       `json:"turns" yaml:"turns"`
	Duration     float64   `json:"duration" yaml:"duration"`
	ResultURI    string    `json:"resultUri" yaml:"resultUri"`
	ProcessedAt  time.Time `json:"processedAt" yaml:"processedAt"`
}

// Store is a SQLite-backed conversation index.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := memory
	if path != memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// every connection to :memory: is its own database
	if path == memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save indexes a processed conversation, replacing any earlier run of the
// same job.
func (s *Store) Save(ctx context.Context, sum Summary, record *models.Conversation) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (job_name, run_id, language_code, turns, duration, result_uri, processed_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_name) DO UPDATE SET
			run_id = excluded.run_id,
			language_code = excluded.language_code,
			turns = excluded.turns,
			duration = excluded.duration,
			result_uri = excluded.result_uri,
			processed_at = excluded.processed_at,
			record = excluded.record
	`, sum.JobName, sum.RunID, sum.LanguageCode, sum.Turns, sum.Duration, sum.ResultURI,
		sum.ProcessedAt.UnixMilli(), string(data))
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", sum.JobName, err)
	}
	return nil
}

// Get returns the index row and record of a job.
func (s *Store) Get(ctx context.Context, jobName string) (*Summary, *models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_name, run_id, language_code, turns, duration, result_uri, processed_at, record
		FROM conversations
		WHERE job_name = ?
	`, jobName)

	var sum Summary
	var processedAt int64
	var data string
	if err := row.Scan(&sum.JobName, &sum.RunID, &sum.LanguageCode, &sum.Turns,
		&sum.Duration, &sum.ResultURI, &processedAt, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, jobName)
		}
		return nil, nil, fmt.Errorf("scan conversation: %w", err)
	}
	sum.ProcessedAt = time.UnixMilli(processedAt).UTC()

	var record models.Conversation
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, nil, fmt.Errorf("decode record of %s: %w", jobName, err)
	}
	return &sum, &record, nil
}

// List returns index rows, most recently processed first. A non-positive
// limit returns every row.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_name, run_id, language_code, turns, duration, result_uri, processed_at
		FROM conversations
		ORDER BY processed_at DESC, job_name ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var processedAt int64
		if err := rows.Scan(&sum.JobName, &sum.RunID, &sum.LanguageCode, &sum.Turns,
			&sum.Duration, &sum.ResultURI, &processedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		sum.ProcessedAt = time.UnixMilli(processedAt).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}
