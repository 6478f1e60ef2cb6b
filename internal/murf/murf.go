// Package murf is a client for the Murf text-to-speech API. It exposes the
// failure taxonomy the job queue needs to pick a retry policy: validation
// errors (not retryable), timeouts, provider errors, and malformed responses
// (all retryable).
package murf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Validation failures are surfaced before any network call and are never
// retried.
var (
	ErrMissingText  = errors.New("text is required")
	ErrMissingVoice = errors.New("voice id is required")
)

// ErrNoAudioURL indicates a well-formed provider response without the
// expected audio locator field.
var ErrNoAudioURL = errors.New("no audio url in response")

// ProviderError is a non-2xx response from the Murf API.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("murf api error: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the queue should attempt the request again.
// Everything except the fail-fast validation errors is worth a retry:
// timeouts and provider errors are often transient, and malformed responses
// have been observed to clear up between attempts.
func Retryable(err error) bool {
	return !errors.Is(err, ErrMissingText) && !errors.Is(err, ErrMissingVoice)
}

// SpeechRequest describes one synthesis call.
type SpeechRequest struct {
	Text       string `json:"text"`
	VoiceID    string `json:"voiceId"`
	Style      string `json:"style,omitempty"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	ModelType  string `json:"modelType,omitempty"`
}

// Voice is one entry of the provider's voice catalog.
type Voice struct {
	VoiceID         string   `json:"voiceId"`
	DisplayName     string   `json:"displayName"`
	Locale          string   `json:"locale"`
	Gender          string   `json:"gender"`
	AvailableStyles []string `json:"availableStyles,omitempty"`
}

// Client calls the Murf API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Client. timeout bounds each request; the provider has
// no cancellation API, so the timeout is the only bound on a stuck call.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Generate synthesizes one text chunk and returns the URL of the produced
// audio resource.
func (c *Client) Generate(ctx context.Context, req SpeechRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", ErrMissingText
	}
	if strings.TrimSpace(req.VoiceID) == "" {
		return "", ErrMissingVoice
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/speech/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("speech generate: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}

	var parsed struct {
		AudioURL  string `json:"audioUrl"`
		AudioFile string `json:"audioFile"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	// audioUrl is the documented field; audioFile shows up on some plans.
	if parsed.AudioURL != "" {
		return parsed.AudioURL, nil
	}
	if parsed.AudioFile != "" {
		return parsed.AudioFile, nil
	}
	return "", ErrNoAudioURL
}

// Voices returns the provider's available voices.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/speech/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: truncate(string(body), 500)}
	}

	var voices []Voice
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("parse voices: %w", err)
	}
	return voices, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", c.apiKey)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
