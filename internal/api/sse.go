package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chaharnishant11/blog-to-podcast/internal/notify"
)

// StreamEvents handles GET /api/v1/events. With ?url= the stream is limited
// to one article and closes after its terminal event; without it the stream
// carries every event until the client disconnects.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter := r.URL.Query().Get("url")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if filter != "" {
		rec, err := h.store.Get(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get article")
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		// Terminal articles get their final state and the stream closes.
		if rec.Status.IsTerminal() {
			writeSSEEvent(w, flusher, "result", rec)
			return
		}
		// Initial state so the client does not render from nothing.
		writeSSEEvent(w, flusher, "status", rec)
	}

	ch := h.broker.Subscribe(filter)
	defer h.broker.Unsubscribe(filter, ch)

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, ev.Data)
			flusher.Flush()
			if filter != "" && terminalKind(ev.Kind) {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func terminalKind(kind string) bool {
	return kind == notify.KindArticleComplete || kind == notify.KindArticleFailed
}

// writeSSEEvent serialises data as JSON and writes a single SSE event frame.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
