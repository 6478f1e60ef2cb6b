package murf

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateValidation(t *testing.T) {
	t.Parallel()
	c := NewClient("key", "http://unused", time.Second)

	_, err := c.Generate(context.Background(), SpeechRequest{VoiceID: "en-US-natalie"})
	if !errors.Is(err, ErrMissingText) {
		t.Fatalf("empty text: got %v, want ErrMissingText", err)
	}

	_, err = c.Generate(context.Background(), SpeechRequest{Text: "hello"})
	if !errors.Is(err, ErrMissingVoice) {
		t.Fatalf("empty voice: got %v, want ErrMissingVoice", err)
	}
}

func TestGenerateSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/speech/generate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("api-key"); got != "secret" {
			t.Errorf("api-key header = %q", got)
		}
		var req SpeechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "hello world" || req.VoiceID != "en-US-natalie" {
			t.Errorf("unexpected payload: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"audioUrl": "https://cdn.example.com/a.mp3"})
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, time.Second)
	url, err := c.Generate(context.Background(), SpeechRequest{Text: "hello world", VoiceID: "en-US-natalie"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if url != "https://cdn.example.com/a.mp3" {
		t.Errorf("url = %q", url)
	}
}

func TestGenerateAudioFileFallback(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"audioFile": "https://cdn.example.com/b.mp3"})
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, time.Second)
	url, err := c.Generate(context.Background(), SpeechRequest{Text: "x", VoiceID: "v"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if url != "https://cdn.example.com/b.mp3" {
		t.Errorf("url = %q", url)
	}
}

func TestGenerateProviderError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessage":"invalid voice"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, time.Second)
	_, err := c.Generate(context.Background(), SpeechRequest{Text: "x", VoiceID: "bad"})

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want *ProviderError", err)
	}
	if perr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", perr.StatusCode)
	}
}

func TestGenerateNoAudioURL(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, time.Second)
	_, err := c.Generate(context.Background(), SpeechRequest{Text: "x", VoiceID: "v"})
	if !errors.Is(err, ErrNoAudioURL) {
		t.Fatalf("got %v, want ErrNoAudioURL", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, 20*time.Millisecond)
	_, err := c.Generate(context.Background(), SpeechRequest{Text: "x", VoiceID: "v"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !Retryable(err) {
		t.Error("timeout should be retryable")
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing text", ErrMissingText, false},
		{"missing voice", ErrMissingVoice, false},
		{"wrapped missing text", errors.Join(errors.New("ctx"), ErrMissingText), false},
		{"provider error", &ProviderError{StatusCode: 500}, true},
		{"no audio url", ErrNoAudioURL, true},
		{"network error", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestVoices(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech/voices" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Voice{
			{VoiceID: "en-US-natalie", DisplayName: "Natalie", Locale: "en-US", Gender: "Female"},
			{VoiceID: "en-US-terrell", DisplayName: "Terrell", Locale: "en-US", Gender: "Male"},
		})
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, time.Second)
	voices, err := c.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 2 || voices[0].VoiceID != "en-US-natalie" {
		t.Errorf("unexpected voices: %+v", voices)
	}
}
