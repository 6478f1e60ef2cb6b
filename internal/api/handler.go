// Package api is the HTTP surface: article submission and retrieval, the
// SSE event stream, runtime settings, the voice catalog and the debug log.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chaharnishant11/blog-to-podcast/internal/article"
	"github.com/chaharnishant11/blog-to-podcast/internal/config"
	"github.com/chaharnishant11/blog-to-podcast/internal/eventlog"
	"github.com/chaharnishant11/blog-to-podcast/internal/extract"
	"github.com/chaharnishant11/blog-to-podcast/internal/murf"
	"github.com/chaharnishant11/blog-to-podcast/internal/notify"
	"github.com/chaharnishant11/blog-to-podcast/internal/queue"
	"github.com/chaharnishant11/blog-to-podcast/internal/settings"
)

// VoiceLister provides the synthesis provider's voice catalog.
type VoiceLister interface {
	Voices(ctx context.Context) ([]murf.Voice, error)
}

// Extractor pulls article text from a URL.
type Extractor interface {
	FromURL(ctx context.Context, pageURL string) (extract.Result, error)
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	store     article.Store
	queue     *queue.Queue
	broker    *notify.Broker
	events    *eventlog.Log
	settings  *settings.Store
	extractor Extractor
	voices    VoiceLister
	cfg       *config.Config
}

// NewHandler constructs a Handler with the given dependencies. voices may be
// nil when no synthesis key is configured.
func NewHandler(store article.Store, q *queue.Queue, broker *notify.Broker, events *eventlog.Log, st *settings.Store, ex Extractor, voices VoiceLister, cfg *config.Config) *Handler {
	return &Handler{
		store:     store,
		queue:     q,
		broker:    broker,
		events:    events,
		settings:  st,
		extractor: ex,
		voices:    voices,
		cfg:       cfg,
	}
}

// RegisterRoutes registers all API routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/articles", h.SubmitArticle)
	mux.HandleFunc("POST /api/v1/articles/extract", h.ExtractAndSubmit)
	mux.HandleFunc("POST /api/v1/articles/retry", h.RetryArticle)
	mux.HandleFunc("GET /api/v1/articles", h.ListArticles)
	mux.HandleFunc("GET /api/v1/articles/get", h.GetArticle)
	mux.HandleFunc("DELETE /api/v1/articles", h.DeleteArticle)
	mux.HandleFunc("GET /api/v1/events", h.StreamEvents)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("PUT /api/v1/settings", h.UpdateSettings)
	mux.HandleFunc("GET /api/v1/voices", h.ListVoices)
	mux.HandleFunc("GET /api/v1/logs", h.GetLogs)
	mux.HandleFunc("DELETE /api/v1/logs", h.ClearLogs)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// SubmitArticle handles POST /api/v1/articles: pre-extracted text in, 202
// with the processing record out.
func (h *Handler) SubmitArticle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var sub article.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.submit(w, r, sub)
}

// ExtractAndSubmit handles POST /api/v1/articles/extract: the server fetches
// and extracts the page itself, then follows the normal submission path.
func (h *Handler) ExtractAndSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL         string `json:"url"`
		Retry       bool   `json:"retry,omitempty"`
		CallbackURL string `json:"callback_url,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	res, err := h.extractor.FromURL(r.Context(), req.URL)
	if errors.Is(err, extract.ErrNoArticle) {
		writeError(w, http.StatusUnprocessableEntity, "no article content found at url")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "extraction failed: "+err.Error())
		return
	}

	h.submit(w, r, article.Submission{
		Text:             res.Text,
		Title:            res.Title,
		URL:              req.URL,
		ExtractionMethod: res.Method,
		Retry:            req.Retry,
		CallbackURL:      req.CallbackURL,
	})
}

// RetryArticle handles POST /api/v1/articles/retry: a whole-article retry
// built from the stored chunks, no re-extraction.
func (h *Handler) RetryArticle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.store.Get(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get article")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	if len(rec.Chunks) == 0 {
		writeError(w, http.StatusConflict, "article has no stored text to retry")
		return
	}

	h.submit(w, r, article.Submission{
		Text:        strings.Join(rec.Chunks, "\n\n"),
		Title:       rec.Title,
		URL:         rec.URL,
		Retry:       true,
		CallbackURL: rec.CallbackURL,
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, sub article.Submission) {
	rec, err := h.queue.SubmitArticle(r.Context(), sub)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, rec)
	case errors.Is(err, queue.ErrNoVoice), errors.Is(err, queue.ErrNoContent):
		writeJSON(w, http.StatusUnprocessableEntity, rec)
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "queue full, try again later")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// ListArticles handles GET /api/v1/articles, newest first.
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	if records == nil {
		records = []*article.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": records,
		"total":    len(records),
	})
}

// GetArticle handles GET /api/v1/articles/get?url=.
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	rec, err := h.store.Get(r.Context(), url)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get article")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteArticle handles DELETE /api/v1/articles?url=...
func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	rec, err := h.store.Get(r.Context(), url)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get article")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	if err := h.store.Delete(r.Context(), url); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete article")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Status())
}

// UpdateSettings handles PUT /api/v1/settings: persists the new settings and
// hot-swaps them into the running queue.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.settings.Save(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	h.queue.ApplySettings(s)

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ListVoices handles GET /api/v1/voices, proxying the provider's catalog.
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	if h.voices == nil {
		writeError(w, http.StatusServiceUnavailable, "synthesis provider not configured")
		return
	}
	voices, err := h.voices.Voices(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to list voices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

// GetLogs handles GET /api/v1/logs.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.events.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read logs")
		return
	}
	if entries == nil {
		entries = []eventlog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// ClearLogs handles DELETE /api/v1/logs.
func (h *Handler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear logs")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":          "ok",
		"murf_configured": h.voices != nil,
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
