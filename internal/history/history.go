// Package history records completed invocations in a local sqlite database.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	task         TEXT NOT NULL,
	model        TEXT NOT NULL DEFAULT '',
	sandbox      TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL,
	exit_code    INTEGER NOT NULL DEFAULT 0,
	last_message TEXT NOT NULL DEFAULT '',
	event_count  INTEGER NOT NULL DEFAULT 0
);
`

// Entry is one recorded invocation.
type Entry struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	Task        string
	Model       string
	Sandbox     string
	Outcome     string
	ExitCode    int
	LastMessage string
	EventCount  int
}

// Store is an invocation history backed by sqlite.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default history database path.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codexbridge", "history.db"), nil
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts one entry and returns its row id.
func (s *Store) Record(e Entry) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO invocations
			(started_at, finished_at, task, model, sandbox, outcome, exit_code, last_message, event_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.StartedAt.UTC().Format(time.RFC3339),
		e.FinishedAt.UTC().Format(time.RFC3339),
		e.Task, e.Model, e.Sandbox, e.Outcome, e.ExitCode, e.LastMessage, e.EventCount,
	)
	if err != nil {
		return 0, fmt.Errorf("record invocation: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, task, model, sandbox, outcome, exit_code, last_message, event_count
		FROM invocations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished string
		if err := rows.Scan(&e.ID, &started, &finished, &e.Task, &e.Model, &e.Sandbox,
			&e.Outcome, &e.ExitCode, &e.LastMessage, &e.EventCount); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.StartedAt, _ = time.Parse(time.RFC3339, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
