package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// MaxChunkSize is the hard per-request character ceiling of the Murf API.
// Configured chunk sizes are clamped to it regardless of preference.
const MaxChunkSize = 3000

// Config is the process configuration, loaded from BLOGCAST_* environment
// variables. Runtime-adjustable settings (voice, style, keys) may later be
// overridden by the persisted settings blob.
type Config struct {
	ListenAddr string `env:"BLOGCAST_LISTEN_ADDR" envDefault:":8080"`
	DBPath     string `env:"BLOGCAST_DB_PATH" envDefault:"blogcast.db"`

	// APIKeys protects the HTTP API. Empty disables authentication.
	APIKeys     []string `env:"BLOGCAST_API_KEYS" envSeparator:","`
	CORSOrigins []string `env:"BLOGCAST_CORS_ORIGINS" envSeparator:","`
	// SubmitRateLimit is requests/second per client IP on submission
	// endpoints. Zero disables rate limiting.
	SubmitRateLimit int `env:"BLOGCAST_SUBMIT_RATE_LIMIT" envDefault:"0"`

	MurfAPIKey  string `env:"BLOGCAST_MURF_API_KEY"`
	MurfBaseURL string `env:"BLOGCAST_MURF_BASE_URL" envDefault:"https://api.murf.ai/v1"`
	VoiceID     string `env:"BLOGCAST_VOICE_ID"`
	VoiceStyle  string `env:"BLOGCAST_VOICE_STYLE"`

	// ChunkSize is the preferred chunk length in characters, clamped to
	// MaxChunkSize.
	ChunkSize   int `env:"BLOGCAST_CHUNK_SIZE" envDefault:"3000"`
	Concurrency int `env:"BLOGCAST_CONCURRENCY" envDefault:"5"`
	QueueSize   int `env:"BLOGCAST_QUEUE_SIZE" envDefault:"1000"`
	MaxRetries  int `env:"BLOGCAST_MAX_RETRIES" envDefault:"3"`

	SynthesisTimeout time.Duration `env:"BLOGCAST_SYNTHESIS_TIMEOUT" envDefault:"30s"`

	UseRewrite     bool          `env:"BLOGCAST_USE_REWRITE" envDefault:"false"`
	RewriteAPIKey  string        `env:"BLOGCAST_REWRITE_API_KEY"`
	RewriteBaseURL string        `env:"BLOGCAST_REWRITE_BASE_URL" envDefault:"https://api.openai.com/v1"`
	RewriteModel   string        `env:"BLOGCAST_REWRITE_MODEL" envDefault:"gpt-4"`
	RewriteStyle   string        `env:"BLOGCAST_REWRITE_STYLE" envDefault:"conversational"`
	RewriteTimeout time.Duration `env:"BLOGCAST_REWRITE_TIMEOUT" envDefault:"60s"`

	KeepAliveInterval time.Duration `env:"BLOGCAST_KEEPALIVE_INTERVAL" envDefault:"25s"`
	IdleShutdown      time.Duration `env:"BLOGCAST_IDLE_SHUTDOWN" envDefault:"5m"`

	// ResumeOnStart re-submits articles left mid-processing by a previous
	// run. Off by default: orphaned articles wait for an explicit retry.
	ResumeOnStart bool `env:"BLOGCAST_RESUME_ON_START" envDefault:"false"`

	// ArticleTTL deletes completed articles older than this. Zero disables
	// cleanup.
	ArticleTTL      time.Duration `env:"BLOGCAST_ARTICLE_TTL" envDefault:"0"`
	CleanupInterval time.Duration `env:"BLOGCAST_CLEANUP_INTERVAL" envDefault:"1h"`
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Concurrency < 1 {
		return nil, errors.New("BLOGCAST_CONCURRENCY must be > 0")
	}
	if cfg.QueueSize < 1 {
		return nil, errors.New("BLOGCAST_QUEUE_SIZE must be > 0")
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.New("BLOGCAST_MAX_RETRIES must be >= 0")
	}
	if cfg.ChunkSize < 1 {
		return nil, errors.New("BLOGCAST_CHUNK_SIZE must be > 0")
	}
	if cfg.ChunkSize > MaxChunkSize {
		cfg.ChunkSize = MaxChunkSize
	}

	return &cfg, nil
}
