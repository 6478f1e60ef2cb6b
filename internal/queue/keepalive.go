package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/chaharnishant11/blog-to-podcast/internal/notify"
)

// startKeepAlive launches the liveness ticker if it is not already running.
// The ticker broadcasts worker status so stream subscribers see the service
// is alive between chunk events, and shuts itself down once the queue has
// been idle long enough.
func (q *Queue) startKeepAlive() {
	q.kaMu.Lock()
	defer q.kaMu.Unlock()
	if q.kaRunning {
		return
	}
	q.kaRunning = true
	ctx := q.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go q.keepAliveLoop(ctx)
}

func (q *Queue) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.stopKeepAlive()
			return
		case <-ticker.C:
		}

		st := q.Status()

		data, err := json.Marshal(st)
		if err == nil {
			q.broker.Publish(notify.Event{Kind: notify.KindWorkerStatus, Data: string(data)})
		}

		idle := st.ActiveJobs == 0 && st.QueueLength == 0 &&
			time.Since(st.LastActive) >= q.cfg.IdleShutdown
		if idle {
			q.stopKeepAlive()
			slog.Info("keepalive stopped after idle period", "idle", q.cfg.IdleShutdown)
			return
		}
	}
}

func (q *Queue) stopKeepAlive() {
	q.kaMu.Lock()
	q.kaRunning = false
	q.kaMu.Unlock()
}
