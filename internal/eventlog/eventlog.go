// Package eventlog persists a small rolling log of processing events for
// debugging. Writes are best-effort: a failed append never blocks the
// pipeline.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// maxEntries bounds the log; the oldest entries are evicted on append.
const maxEntries = 100

// Entry is one logged event.
type Entry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Log is a capped event log backed by SQLite.
type Log struct {
	db *sql.DB
}

// New creates the event_log table if needed and returns a Log.
func New(db *sql.DB) (*Log, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS event_log (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			event TEXT NOT NULL,
			data TEXT
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("migrate event_log: %w", err)
	}
	return &Log{db: db}, nil
}

// Append records an event. data is marshalled to JSON; pass nil for events
// without a payload. Errors are logged and swallowed.
func (l *Log) Append(ctx context.Context, event string, data any) {
	var payload []byte
	if data != nil {
		var err error
		payload, err = json.Marshal(data)
		if err != nil {
			slog.Warn("event log marshal failed", "event", event, "error", err)
			payload = nil
		}
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO event_log (id, timestamp, event, data) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UTC(), event, nullable(payload))
	if err != nil {
		slog.Warn("event log append failed", "event", event, "error", err)
		return
	}

	_, err = l.db.ExecContext(ctx, `
		DELETE FROM event_log WHERE rowid NOT IN (
			SELECT rowid FROM event_log ORDER BY rowid DESC LIMIT ?
		)`, maxEntries)
	if err != nil {
		slog.Warn("event log trim failed", "error", err)
	}
}

// All returns every entry, newest first.
func (l *Log) All(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, timestamp, event, data FROM event_log ORDER BY rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query event_log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var data sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Event, &data); err != nil {
			return nil, fmt.Errorf("scan event_log: %w", err)
		}
		if data.Valid {
			e.Data = json.RawMessage(data.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes all entries.
func (l *Log) Clear(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM event_log`); err != nil {
		return fmt.Errorf("clear event_log: %w", err)
	}
	return nil
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
