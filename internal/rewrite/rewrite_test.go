package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionServer(t *testing.T, content string, check func(chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(req)
		}
		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: content}})
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestRewriteEmptyText(t *testing.T) {
	t.Parallel()
	c := NewClient("key", "http://unused", "gpt-4", time.Second)
	_, err := c.Rewrite(context.Background(), Request{Text: "  "})
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("got %v, want ErrEmptyText", err)
	}
}

func TestRewriteSuccess(t *testing.T) {
	t.Parallel()
	srv := completionServer(t, "Welcome to the show. [pause-short] Today we talk about Go.", func(req chatRequest) {
		if req.Model != "gpt-4" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Temperature != 0.5 || req.MaxTokens != 2000 {
			t.Errorf("sampling params = %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		if !strings.Contains(req.Messages[1].Content, `"My Post"`) {
			t.Errorf("user prompt missing title: %q", req.Messages[1].Content)
		}
	})
	defer srv.Close()

	c := NewClient("key", srv.URL, "gpt-4", time.Second)
	script, err := c.Rewrite(context.Background(), Request{Text: "blог text", Title: "My Post"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if !strings.Contains(script, "[pause-short]") {
		t.Errorf("script = %q", script)
	}
}

func TestRewriteStylePrompts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		style string
		want  string
	}{
		{"professional", "authoritative tone"},
		{"casual", "occasional humor"},
		{"storytelling", "compelling story"},
		{"conversational", "talking to a friend"},
		{"", "talking to a friend"},
		{"unknown", "talking to a friend"},
	}
	for _, tt := range tests {
		t.Run("style_"+tt.style, func(t *testing.T) {
			t.Parallel()
			got := systemPrompt(tt.style)
			if !strings.Contains(got, tt.want) {
				t.Errorf("systemPrompt(%q) missing %q", tt.style, tt.want)
			}
			if !strings.Contains(got, "[pause-short]") {
				t.Error("system prompt missing pause notation")
			}
		})
	}
}

func TestRewriteAPIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, "gpt-4", time.Second)
	_, err := c.Rewrite(context.Background(), Request{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("got %v, want status 429 error", err)
	}
}

func TestRewriteNoChoices(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, "gpt-4", time.Second)
	_, err := c.Rewrite(context.Background(), Request{Text: "x"})
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("got %v, want ErrNoChoices", err)
	}
}

func TestEnforceLimit(t *testing.T) {
	t.Parallel()

	t.Run("short script untouched", func(t *testing.T) {
		t.Parallel()
		if got := enforceLimit("short"); got != "short" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("paragraph break preferred", func(t *testing.T) {
		t.Parallel()
		script := strings.Repeat("a", 2700) + "\n\n" + strings.Repeat("b", 1000)
		got := enforceLimit(script)
		if !strings.HasSuffix(got, truncationNote) {
			t.Fatalf("missing truncation note: %q", got[len(got)-80:])
		}
		body := strings.TrimSuffix(got, truncationNote)
		if len(body) != 2700 {
			t.Errorf("body length = %d, want 2700", len(body))
		}
	})

	t.Run("sentence break fallback", func(t *testing.T) {
		t.Parallel()
		script := strings.Repeat("a", 2699) + ". " + strings.Repeat("b", 1000)
		got := enforceLimit(script)
		body := strings.TrimSuffix(got, truncationNote)
		if !strings.HasSuffix(body, ".") {
			t.Errorf("body should end at the period, got suffix %q", body[len(body)-5:])
		}
	})

	t.Run("hard cut when no break points", func(t *testing.T) {
		t.Parallel()
		script := strings.Repeat("a", 4000)
		got := enforceLimit(script)
		body := strings.TrimSuffix(got, truncationNote)
		if len(body) != 2900 {
			t.Errorf("body length = %d, want 2900", len(body))
		}
	})

	t.Run("early break point rejected", func(t *testing.T) {
		t.Parallel()
		// The only paragraph break is before the 2500 char floor, so the
		// hard cut applies.
		script := strings.Repeat("a", 100) + "\n\n" + strings.Repeat("b", 4000)
		got := enforceLimit(script)
		body := strings.TrimSuffix(got, truncationNote)
		if len(body) != 2900 {
			t.Errorf("body length = %d, want 2900", len(body))
		}
	})

	t.Run("result always within limit plus note", func(t *testing.T) {
		t.Parallel()
		script := strings.Repeat("word. ", 2000)
		got := enforceLimit(script)
		if len([]rune(got)) > scriptLimit {
			t.Errorf("result length = %d, exceeds %d", len([]rune(got)), scriptLimit)
		}
	})
}
