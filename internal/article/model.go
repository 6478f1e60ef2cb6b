package article

import (
	"errors"
	"strings"
	"time"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// IsTerminal returns true for statuses that represent a final state.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Record is the persisted, authoritative state of one article's conversion,
// keyed by source URL. Chunks is immutable once set; AudioURLs has the same
// length and index alignment, with an empty string marking a slot whose
// synthesis has not yet succeeded.
type Record struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Chunks    []string  `json:"chunks"`
	AudioURLs []string  `json:"audio_urls"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	// UsedRewrite records whether the chunks came from a rewritten script
	// rather than the raw extracted text.
	UsedRewrite bool   `json:"used_rewrite"`
	StyleTag    string `json:"style_tag,omitempty"`
	// Generation distinguishes successive processing runs for the same URL.
	// In-flight jobs capture it at dispatch; results tagged with a stale
	// generation are discarded.
	Generation int64 `json:"generation"`
	// CallbackURL, when set, receives the final record once processing
	// reaches a terminal status.
	CallbackURL string    `json:"callback_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Complete reports whether every audio slot is filled.
func (r *Record) Complete() bool {
	if len(r.AudioURLs) != len(r.Chunks) || len(r.Chunks) == 0 {
		return false
	}
	for _, u := range r.AudioURLs {
		if u == "" {
			return false
		}
	}
	return true
}

// MissingChunks returns the indexes whose audio slot is still empty.
func (r *Record) MissingChunks() []int {
	var missing []int
	for i, u := range r.AudioURLs {
		if u == "" {
			missing = append(missing, i)
		}
	}
	return missing
}

// Submission is the payload that creates or retries an article conversion.
type Submission struct {
	Text             string `json:"text"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	ExtractionMethod string `json:"extraction_method,omitempty"`
	// Retry discards any previous record and queued work for the URL before
	// resubmitting.
	Retry bool `json:"retry,omitempty"`
	// CallbackURL, when set, receives a POST with the final record once the
	// article completes or fails.
	CallbackURL string `json:"callback_url,omitempty"`
}

// Validate checks the fields a submission cannot do without.
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.Text) == "" {
		return errors.New("text must not be empty")
	}
	if strings.TrimSpace(s.URL) == "" {
		return errors.New("url must not be empty")
	}
	return nil
}
