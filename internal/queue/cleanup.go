package queue

import (
	"context"
	"log/slog"
	"time"
)

// StartCleanup periodically evicts completed articles older than the
// configured TTL. A zero TTL disables cleanup. Articles still processing are
// never evicted.
func (q *Queue) StartCleanup(ctx context.Context) {
	if q.cfg.ArticleTTL <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(q.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-q.cfg.ArticleTTL)
				n, err := q.store.DeleteCompletedBefore(ctx, cutoff)
				if err != nil {
					slog.Error("cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("cleaned up old articles", "deleted", n)
				}
			}
		}
	}()
}
