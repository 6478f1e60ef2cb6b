// Package settings persists user-adjustable runtime settings. They override
// the environment configuration and survive restarts.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Settings are the knobs adjustable at runtime without a restart.
type Settings struct {
	MurfAPIKey    string `json:"murf_api_key,omitempty"`
	VoiceID       string `json:"voice_id,omitempty"`
	VoiceStyle    string `json:"voice_style,omitempty"`
	ChunkSize     int    `json:"chunk_size,omitempty"`
	UseRewrite    *bool  `json:"use_rewrite,omitempty"`
	RewriteAPIKey string `json:"rewrite_api_key,omitempty"`
	RewriteStyle  string `json:"rewrite_style,omitempty"`
}

// Store persists a single Settings row in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates the settings table if needed.
func NewStore(db *sql.DB) (*Store, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("migrate settings: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the saved settings, or nil if none were ever saved.
func (s *Store) Load(ctx context.Context) (*Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var out Settings
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &out, nil
}

// Save replaces the stored settings.
func (s *Store) Save(ctx context.Context, in Settings) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (id, data, updated_at) VALUES (1, ?, ?)`,
		string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
