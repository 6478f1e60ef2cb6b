// Package queue schedules chunk synthesis jobs across a bounded pool of
// workers and owns the per-article run bookkeeping: generation tracking,
// retries, terminal status decisions and progress notifications.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaharnishant11/blog-to-podcast/internal/article"
	"github.com/chaharnishant11/blog-to-podcast/internal/chunker"
	"github.com/chaharnishant11/blog-to-podcast/internal/config"
	"github.com/chaharnishant11/blog-to-podcast/internal/eventlog"
	"github.com/chaharnishant11/blog-to-podcast/internal/murf"
	"github.com/chaharnishant11/blog-to-podcast/internal/notify"
	"github.com/chaharnishant11/blog-to-podcast/internal/rewrite"
	"github.com/chaharnishant11/blog-to-podcast/internal/settings"
	"github.com/chaharnishant11/blog-to-podcast/internal/webhook"
)

// Submission failures that are decided before any job is queued.
var (
	ErrQueueFull = errors.New("queue full")
	ErrNoVoice   = errors.New("no voice configured")
	ErrNoContent = errors.New("no chunkable text")
)

// sendWebhook is a variable so tests can capture callback deliveries.
var sendWebhook = webhook.Send

// Synthesizer produces audio for one chunk of text.
type Synthesizer interface {
	Generate(ctx context.Context, req murf.SpeechRequest) (string, error)
}

// Rewriter converts article text into a narrated script.
type Rewriter interface {
	Rewrite(ctx context.Context, req rewrite.Request) (string, error)
}

// Job is one chunk synthesis unit of work.
type Job struct {
	ArticleURL string
	ChunkIndex int
	Text       string
	Generation int64
	RetryCount int
}

// run tracks the outstanding jobs of one article generation.
type run struct {
	generation int64
	total      int
	remaining  int
	failed     int
}

// Queue dispatches chunk jobs to workers and reconciles article state.
type Queue struct {
	cfg    *config.Config
	store  article.Store
	events *eventlog.Log
	broker *notify.Broker

	jobs chan Job

	// mu guards the hot-swappable clients and effective settings.
	mu           sync.RWMutex
	synth        Synthesizer
	rewriter     Rewriter
	voiceID      string
	voiceStyle   string
	chunkSize    int
	useRewrite   bool
	rewriteStyle string

	runMu sync.Mutex
	runs  map[string]*run

	active     atomic.Int64
	lastActive atomic.Int64

	kaMu      sync.Mutex
	kaRunning bool

	// baseCtx, set by Start, bounds the lifetime of background loops.
	baseCtx context.Context
}

// New creates a Queue. synth and rw may be nil when the corresponding API
// keys are not configured; rw nil simply disables the rewrite step, synth
// nil fails submissions.
func New(cfg *config.Config, store article.Store, events *eventlog.Log, broker *notify.Broker, synth Synthesizer, rw Rewriter) *Queue {
	q := &Queue{
		cfg:          cfg,
		store:        store,
		events:       events,
		broker:       broker,
		jobs:         make(chan Job, cfg.QueueSize),
		synth:        synth,
		rewriter:     rw,
		voiceID:      cfg.VoiceID,
		voiceStyle:   cfg.VoiceStyle,
		chunkSize:    cfg.ChunkSize,
		useRewrite:   cfg.UseRewrite,
		rewriteStyle: cfg.RewriteStyle,
		runs:         make(map[string]*run),
	}
	q.touch()
	return q
}

// Start launches the worker pool. The pool size bounds in-flight synthesis
// calls; queued jobs wait in the channel.
func (q *Queue) Start(ctx context.Context) {
	q.baseCtx = ctx
	for range q.cfg.Concurrency {
		go q.runWorker(ctx)
	}
}

// SubmitArticle chunks a submission and queues one synthesis job per chunk.
// Submitting a URL already mid-processing is a no-op unless Retry is set;
// Retry starts a fresh generation, which invalidates any queued or in-flight
// work from the previous one.
func (q *Queue) SubmitArticle(ctx context.Context, sub article.Submission) (*article.Record, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	existing, err := q.store.Get(ctx, sub.URL)
	if err != nil {
		return nil, fmt.Errorf("load article: %w", err)
	}
	if existing != nil && existing.Status == article.StatusProcessing && !sub.Retry {
		// Re-submission while a run is in flight never restarts work.
		// Terminal records are reprocessed as a fresh generation.
		return existing, nil
	}

	generation := int64(1)
	if existing != nil {
		generation = existing.Generation + 1
	}

	q.mu.RLock()
	synth := q.synth
	rw := q.rewriter
	voiceID := q.voiceID
	chunkSize := q.chunkSize
	useRewrite := q.useRewrite
	rewriteStyle := q.rewriteStyle
	q.mu.RUnlock()

	if synth == nil || voiceID == "" {
		rec := q.failSubmission(ctx, sub, generation, "no voice configured")
		return rec, ErrNoVoice
	}

	text := sub.Text
	usedRewrite := false
	styleTag := ""
	if useRewrite && rw != nil {
		script, err := rw.Rewrite(ctx, rewrite.Request{Text: sub.Text, Title: sub.Title, Style: rewriteStyle})
		if err != nil {
			// Rewrite is an enhancement; the raw text still works.
			slog.Warn("rewrite failed, using original text", "url", sub.URL, "error", err)
			q.logEvent(ctx, "rewrite_failed", map[string]string{"url": sub.URL, "error": err.Error()})
		} else {
			text = script
			usedRewrite = true
			styleTag = rewriteStyle
		}
	}

	chunks := chunker.Split(text, chunkSize)
	if len(chunks) == 0 {
		rec := q.failSubmission(ctx, sub, generation, "no chunkable text")
		return rec, ErrNoContent
	}
	if cap(q.jobs)-len(q.jobs) < len(chunks) {
		return nil, ErrQueueFull
	}

	rec := &article.Record{
		URL:         sub.URL,
		Title:       sub.Title,
		Chunks:      chunks,
		AudioURLs:   make([]string, len(chunks)),
		Status:      article.StatusProcessing,
		UsedRewrite: usedRewrite,
		StyleTag:    styleTag,
		Generation:  generation,
		CallbackURL: sub.CallbackURL,
	}
	if err := q.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist article: %w", err)
	}

	q.runMu.Lock()
	q.runs[sub.URL] = &run{generation: generation, total: len(chunks), remaining: len(chunks)}
	q.runMu.Unlock()

	for i, chunk := range chunks {
		q.jobs <- Job{ArticleURL: sub.URL, ChunkIndex: i, Text: chunk, Generation: generation}
	}

	q.touch()
	q.publish(notify.KindProcessingStarted, sub.URL, map[string]any{
		"url":          sub.URL,
		"title":        sub.Title,
		"total_chunks": len(chunks),
		"used_rewrite": usedRewrite,
	})
	q.logEvent(ctx, "processing_started", map[string]any{
		"url": sub.URL, "chunks": len(chunks), "generation": generation, "retry": sub.Retry,
	})
	q.startKeepAlive()

	return rec, nil
}

// failSubmission persists a terminal error record for a submission that can
// never produce jobs.
func (q *Queue) failSubmission(ctx context.Context, sub article.Submission, generation int64, msg string) *article.Record {
	rec := &article.Record{
		URL:         sub.URL,
		Title:       sub.Title,
		Status:      article.StatusError,
		Error:       msg,
		Generation:  generation,
		CallbackURL: sub.CallbackURL,
	}
	if err := q.store.Put(ctx, rec); err != nil {
		slog.Error("persist failed submission", "url", sub.URL, "error", err)
	}
	q.publish(notify.KindArticleFailed, sub.URL, map[string]string{"url": sub.URL, "error": msg})
	q.logEvent(ctx, "article_failed", map[string]string{"url": sub.URL, "error": msg})
	if sub.CallbackURL != "" {
		sendWebhook(context.WithoutCancel(ctx), sub.CallbackURL, webhook.Payload{
			URL:    sub.URL,
			Title:  sub.Title,
			Status: string(article.StatusError),
			Error:  msg,
		})
	}
	return rec
}

// Resume re-queues the missing chunks of articles left mid-processing by a
// previous run.
func (q *Queue) Resume(ctx context.Context) error {
	records, err := q.store.ListProcessing(ctx)
	if err != nil {
		return fmt.Errorf("list processing: %w", err)
	}

	q.mu.RLock()
	synth := q.synth
	voiceID := q.voiceID
	q.mu.RUnlock()

	resumed := 0
	for _, rec := range records {
		missing := rec.MissingChunks()
		if len(missing) == 0 {
			continue
		}
		if synth == nil || voiceID == "" {
			// Queuing these jobs would only fail; surface the problem now.
			msg := "no voice configured"
			if err := q.store.MarkError(ctx, rec.URL, rec.Generation, msg); err != nil {
				slog.Error("resume: mark article error", "url", rec.URL, "error", err)
				continue
			}
			q.publish(notify.KindArticleFailed, rec.URL, map[string]string{"url": rec.URL, "error": msg})
			q.logEvent(ctx, "article_failed", map[string]string{"url": rec.URL, "error": msg})
			if rec.CallbackURL != "" {
				sendWebhook(context.WithoutCancel(ctx), rec.CallbackURL, webhook.Payload{
					URL:    rec.URL,
					Title:  rec.Title,
					Status: string(article.StatusError),
					Error:  msg,
				})
			}
			continue
		}
		if cap(q.jobs)-len(q.jobs) < len(missing) {
			slog.Warn("resume: queue full, skipping article", "url", rec.URL)
			continue
		}

		q.runMu.Lock()
		q.runs[rec.URL] = &run{generation: rec.Generation, total: len(rec.Chunks), remaining: len(missing)}
		q.runMu.Unlock()

		for _, i := range missing {
			q.jobs <- Job{ArticleURL: rec.URL, ChunkIndex: i, Text: rec.Chunks[i], Generation: rec.Generation}
		}
		resumed++
		q.logEvent(ctx, "processing_resumed", map[string]any{"url": rec.URL, "missing": len(missing)})
	}

	if resumed > 0 {
		q.touch()
		q.startKeepAlive()
	}
	slog.Info("resume complete", "articles", resumed)
	return nil
}

func (q *Queue) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	q.active.Add(1)
	q.touch()
	defer func() {
		q.active.Add(-1)
		q.touch()
	}()

	rec, err := q.store.Get(ctx, job.ArticleURL)
	if err != nil {
		q.handleSynthesisFailure(ctx, job, fmt.Errorf("load article: %w", err))
		return
	}
	// A retry or delete since dispatch makes this job stale; drop it.
	if rec == nil || rec.Generation != job.Generation {
		return
	}

	q.mu.RLock()
	synth := q.synth
	voiceID := q.voiceID
	voiceStyle := q.voiceStyle
	q.mu.RUnlock()

	audioURL, err := synth.Generate(ctx, murf.SpeechRequest{
		Text:    job.Text,
		VoiceID: voiceID,
		Style:   voiceStyle,
		Format:  "MP3",
	})
	if err != nil {
		q.handleSynthesisFailure(ctx, job, err)
		return
	}

	allReady, err := q.store.SetChunkAudio(ctx, job.ArticleURL, job.Generation, job.ChunkIndex, audioURL)
	if errors.Is(err, article.ErrStaleGeneration) {
		return
	}
	if err != nil {
		// The audio exists but we could not record it; for the pipeline
		// that is a failed attempt.
		q.handleSynthesisFailure(ctx, job, fmt.Errorf("persist chunk audio: %w", err))
		return
	}

	q.publish(notify.KindChunkReady, job.ArticleURL, map[string]any{
		"url":       job.ArticleURL,
		"index":     job.ChunkIndex,
		"audio_url": audioURL,
		"all_ready": allReady,
	})
	q.logEvent(ctx, "chunk_ready", map[string]any{
		"url": job.ArticleURL, "index": job.ChunkIndex, "attempts": job.RetryCount + 1,
	})
	q.settle(ctx, job, false)
}

// handleSynthesisFailure either requeues the job or records a terminal
// chunk failure.
func (q *Queue) handleSynthesisFailure(ctx context.Context, job Job, err error) {
	if murf.Retryable(err) && job.RetryCount < q.cfg.MaxRetries {
		slog.Warn("chunk synthesis failed, retrying",
			"url", job.ArticleURL, "index", job.ChunkIndex,
			"attempt", job.RetryCount+1, "error", err)
		job.RetryCount++
		select {
		case q.jobs <- job:
			return
		default:
			// Queue full; fall through to terminal failure.
			err = fmt.Errorf("requeue: %w", ErrQueueFull)
		}
	}

	slog.Error("chunk synthesis failed permanently",
		"url", job.ArticleURL, "index", job.ChunkIndex,
		"attempts", job.RetryCount+1, "error", err)
	q.publish(notify.KindChunkFailed, job.ArticleURL, map[string]any{
		"url":      job.ArticleURL,
		"index":    job.ChunkIndex,
		"error":    err.Error(),
		"attempts": job.RetryCount + 1,
	})
	q.logEvent(ctx, "chunk_failed", map[string]any{
		"url": job.ArticleURL, "index": job.ChunkIndex, "error": err.Error(),
	})
	q.settle(ctx, job, true)
}

// settle records one finished job for the article's run; when the last job
// of the run settles it decides the article's terminal status.
func (q *Queue) settle(ctx context.Context, job Job, failed bool) {
	q.runMu.Lock()
	r := q.runs[job.ArticleURL]
	if r == nil || r.generation != job.Generation {
		q.runMu.Unlock()
		return
	}
	if failed {
		r.failed++
	}
	r.remaining--
	if r.remaining > 0 {
		q.runMu.Unlock()
		return
	}
	delete(q.runs, job.ArticleURL)
	q.runMu.Unlock()

	q.finalize(ctx, job.ArticleURL, job.Generation, r)
}

// finalize runs once per generation, after its last job settles.
func (q *Queue) finalize(ctx context.Context, url string, generation int64, r *run) {
	if r.failed > 0 {
		msg := fmt.Sprintf("%d of %d segments failed", r.failed, r.total)
		err := q.store.MarkError(ctx, url, generation, msg)
		if err != nil && !errors.Is(err, article.ErrStaleGeneration) {
			slog.Error("mark article error", "url", url, "error", err)
		}
		q.publish(notify.KindArticleFailed, url, map[string]string{"url": url, "error": msg})
		q.logEvent(ctx, "article_failed", map[string]string{"url": url, "error": msg})
	}

	rec, err := q.store.Get(ctx, url)
	if err != nil || rec == nil || rec.Generation != generation {
		return
	}

	if r.failed == 0 && rec.Status == article.StatusComplete {
		q.publish(notify.KindArticleComplete, url, map[string]any{
			"url":        url,
			"audio_urls": rec.AudioURLs,
		})
		q.logEvent(ctx, "article_complete", map[string]any{"url": url, "chunks": len(rec.Chunks)})
	}

	if rec.CallbackURL != "" {
		sendWebhook(context.WithoutCancel(ctx), rec.CallbackURL, webhook.Payload{
			URL:       rec.URL,
			Title:     rec.Title,
			Status:    string(rec.Status),
			AudioURLs: rec.AudioURLs,
			Error:     rec.Error,
		})
	}
}

// ApplySettings hot-swaps clients and effective settings without a restart.
// Zero-valued fields leave the current value in place.
func (q *Queue) ApplySettings(s settings.Settings) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if s.MurfAPIKey != "" {
		q.synth = murf.NewClient(s.MurfAPIKey, q.cfg.MurfBaseURL, q.cfg.SynthesisTimeout)
	}
	if s.VoiceID != "" {
		q.voiceID = s.VoiceID
	}
	if s.VoiceStyle != "" {
		q.voiceStyle = s.VoiceStyle
	}
	if s.ChunkSize > 0 {
		q.chunkSize = min(s.ChunkSize, config.MaxChunkSize)
	}
	if s.UseRewrite != nil {
		q.useRewrite = *s.UseRewrite
	}
	if s.RewriteAPIKey != "" {
		q.rewriter = rewrite.NewClient(s.RewriteAPIKey, q.cfg.RewriteBaseURL, q.cfg.RewriteModel, q.cfg.RewriteTimeout)
	}
	if s.RewriteStyle != "" {
		q.rewriteStyle = s.RewriteStyle
	}
}

// Status is a point-in-time snapshot of the queue.
type Status struct {
	ActiveJobs  int64     `json:"active_jobs"`
	QueueLength int       `json:"queue_length"`
	LastActive  time.Time `json:"last_active"`
	Concurrency int       `json:"concurrency"`
	MaxRetries  int       `json:"max_retries"`
	ChunkSize   int       `json:"chunk_size"`
	VoiceID     string    `json:"voice_id"`
	UseRewrite  bool      `json:"use_rewrite"`
}

// Status reports current queue activity and the effective settings.
func (q *Queue) Status() Status {
	q.mu.RLock()
	voiceID := q.voiceID
	chunkSize := q.chunkSize
	useRewrite := q.useRewrite
	q.mu.RUnlock()

	return Status{
		ActiveJobs:  q.active.Load(),
		QueueLength: len(q.jobs),
		LastActive:  time.Unix(0, q.lastActive.Load()).UTC(),
		Concurrency: q.cfg.Concurrency,
		MaxRetries:  q.cfg.MaxRetries,
		ChunkSize:   chunkSize,
		VoiceID:     voiceID,
		UseRewrite:  useRewrite,
	}
}

func (q *Queue) touch() {
	q.lastActive.Store(time.Now().UnixNano())
}

func (q *Queue) publish(kind, url string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	q.broker.Publish(notify.Event{Kind: kind, ArticleURL: url, Data: string(data)})
}

func (q *Queue) logEvent(ctx context.Context, event string, data any) {
	if q.events == nil {
		return
	}
	q.events.Append(ctx, event, data)
}
