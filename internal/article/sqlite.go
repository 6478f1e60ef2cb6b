package article

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteStore is a SQLite-backed implementation of Store. Chunks and audio
// URLs are stored as JSON arrays; the slot arrays always have equal length.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore runs migrations on db and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate articles: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS articles (
			url          TEXT PRIMARY KEY,
			title        TEXT NOT NULL DEFAULT '',
			chunks       TEXT NOT NULL,
			audio_urls   TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'processing',
			error        TEXT NOT NULL DEFAULT '',
			used_rewrite INTEGER NOT NULL DEFAULT 0,
			style_tag    TEXT NOT NULL DEFAULT '',
			generation   INTEGER NOT NULL DEFAULT 1,
			callback_url TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_articles_status     ON articles(status);
		CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);
	`)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	chunks, err := json.Marshal(rec.Chunks)
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}
	audio, err := json.Marshal(rec.AudioURLs)
	if err != nil {
		return fmt.Errorf("marshal audio urls: %w", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO articles
			(url, title, chunks, audio_urls, status, error, used_rewrite,
			 style_tag, generation, callback_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.URL, rec.Title, string(chunks), string(audio), rec.Status,
		rec.Error, rec.UsedRewrite, rec.StyleTag, rec.Generation,
		rec.CallbackURL, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put article %s: %w", rec.URL, err)
	}
	return nil
}

const recordColumns = `url, title, chunks, audio_urls, status, error,
	used_rewrite, style_tag, generation, callback_url, created_at, updated_at`

func (s *SQLiteStore) Get(ctx context.Context, url string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM articles WHERE url = ?`, url)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", url, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("delete article %s: %w", url, err)
	}
	return nil
}

// SetChunkAudio performs the fetch-modify-persist for one slot inside a
// transaction so concurrent jobs for different slots of the same article
// cannot lose updates.
func (s *SQLiteStore) SetChunkAudio(ctx context.Context, url string, generation int64, index int, audioURL string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM articles WHERE url = ?`, url)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return false, ErrStaleGeneration
	}
	if err != nil {
		return false, fmt.Errorf("load article %s: %w", url, err)
	}
	if rec.Generation != generation {
		return false, ErrStaleGeneration
	}
	if index < 0 || index >= len(rec.AudioURLs) {
		return false, fmt.Errorf("chunk index %d out of range for %s (%d chunks)", index, url, len(rec.AudioURLs))
	}

	rec.AudioURLs[index] = audioURL
	complete := rec.Complete()
	status := rec.Status
	if complete {
		status = StatusComplete
	}

	audio, err := json.Marshal(rec.AudioURLs)
	if err != nil {
		return false, fmt.Errorf("marshal audio urls: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE articles SET audio_urls = ?, status = ?, updated_at = ?
		WHERE url = ? AND generation = ?
	`, string(audio), status, time.Now().UTC(), url, generation)
	if err != nil {
		return false, fmt.Errorf("update article %s: %w", url, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return complete, nil
}

func (s *SQLiteStore) MarkError(ctx context.Context, url string, generation int64, msg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET status = ?, error = ?, updated_at = ?
		WHERE url = ? AND generation = ?
	`, StatusError, msg, time.Now().UTC(), url, generation)
	if err != nil {
		return fmt.Errorf("mark error for %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark error for %s: %w", url, err)
	}
	if n == 0 {
		return ErrStaleGeneration
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Record, error) {
	return s.list(ctx, `SELECT `+recordColumns+` FROM articles ORDER BY created_at DESC`)
}

func (s *SQLiteStore) ListProcessing(ctx context.Context) ([]*Record, error) {
	return s.list(ctx,
		`SELECT `+recordColumns+` FROM articles WHERE status = ? ORDER BY created_at`,
		StatusProcessing)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM articles
		WHERE status IN (?, ?) AND created_at < ?
	`, StatusComplete, StatusError, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old articles: %w", err)
	}
	return res.RowsAffected()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	rec := &Record{}
	var chunks, audio string
	err := row.Scan(
		&rec.URL, &rec.Title, &chunks, &audio, &rec.Status, &rec.Error,
		&rec.UsedRewrite, &rec.StyleTag, &rec.Generation, &rec.CallbackURL,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(chunks), &rec.Chunks); err != nil {
		return nil, fmt.Errorf("unmarshal chunks: %w", err)
	}
	if err := json.Unmarshal([]byte(audio), &rec.AudioURLs); err != nil {
		return nil, fmt.Errorf("unmarshal audio urls: %w", err)
	}
	return rec, nil
}
