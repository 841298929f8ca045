package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/warden-sh/warden/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// Path is a filesystem path to the database file. Use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_event(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			pid INTEGER NOT NULL,
			detail TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_event_name ON lifecycle_event(name, occurred_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) RecordEvent(ctx context.Context, ev store.Event) error {
	when := ev.OccurredAt
	if when.IsZero() {
		when = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_event(name, type, pid, detail, occurred_at)
		VALUES(?, ?, ?, ?, ?);`,
		ev.Name, ev.Type, ev.PID, ev.Detail, when.UTC())
	return err
}

func (s *DB) Recent(ctx context.Context, name string, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, pid, detail, occurred_at
		FROM lifecycle_event
		WHERE name=?
		ORDER BY id DESC
		LIMIT ?;`, name, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]store.Event, 0)
	for rows.Next() {
		var ev store.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Type, &ev.PID, &ev.Detail, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes events recorded before the cutoff and returns
// how many were removed.
func (s *DB) PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lifecycle_event WHERE occurred_at < ?;`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
