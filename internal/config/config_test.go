package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8080")
	}
	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Concurrency)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.ChunkSize != MaxChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, MaxChunkSize)
	}
	if cfg.ResumeOnStart {
		t.Error("ResumeOnStart should default to false")
	}
}

func TestLoadClampsChunkSize(t *testing.T) {
	t.Setenv("BLOGCAST_CHUNK_SIZE", "99999")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChunkSize != MaxChunkSize {
		t.Errorf("ChunkSize = %d, want clamp to %d", cfg.ChunkSize, MaxChunkSize)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero concurrency", "BLOGCAST_CONCURRENCY", "0"},
		{"negative retries", "BLOGCAST_MAX_RETRIES", "-1"},
		{"zero queue size", "BLOGCAST_QUEUE_SIZE", "0"},
		{"zero chunk size", "BLOGCAST_CHUNK_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%s: expected error, got nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoadAPIKeys(t *testing.T) {
	t.Setenv("BLOGCAST_API_KEYS", "key-a, key-b,key-c")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.APIKeys) != 3 {
		t.Fatalf("len(APIKeys) = %d, want 3", len(cfg.APIKeys))
	}
}
