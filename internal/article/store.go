package article

import (
	"context"
	"errors"
	"time"
)

// ErrStaleGeneration is returned by generation-guarded writes when the record
// is gone or belongs to a newer processing run. Callers discard the result.
var ErrStaleGeneration = errors.New("article record superseded")

// Store persists and retrieves article records.
type Store interface {
	// Put inserts or replaces the record for its URL.
	Put(ctx context.Context, rec *Record) error
	// Get returns the record for url, or (nil, nil) when none exists.
	Get(ctx context.Context, url string) (*Record, error)
	Delete(ctx context.Context, url string) error
	// SetChunkAudio fills one audio slot as a single read-modify-write.
	// When the last slot fills, the status flips to complete in the same
	// transaction and complete is true. Returns ErrStaleGeneration when the
	// record is missing or generation no longer matches.
	SetChunkAudio(ctx context.Context, url string, generation int64, index int, audioURL string) (complete bool, err error)
	// MarkError sets status error with a message, guarded by generation.
	MarkError(ctx context.Context, url string, generation int64, msg string) error
	// List returns all records, newest first.
	List(ctx context.Context) ([]*Record, error)
	// ListProcessing returns records left in a non-terminal state, for the
	// startup resume policy.
	ListProcessing(ctx context.Context) ([]*Record, error)
	// DeleteCompletedBefore evicts terminal records created before cutoff
	// and returns how many were removed.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
