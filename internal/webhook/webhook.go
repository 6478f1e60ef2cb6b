// Package webhook delivers article completion callbacks. Delivery is
// fire-and-forget from the caller's point of view: retries happen on a
// background goroutine.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	retryAttempts = 5
	retryBase     = time.Second
	retryCap      = 2 * time.Minute
)

// Payload is the callback body sent when an article reaches a terminal
// status.
type Payload struct {
	URL       string   `json:"url"`
	Title     string   `json:"title,omitempty"`
	Status    string   `json:"status"`
	AudioURLs []string `json:"audio_urls,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Send posts the payload to callbackURL asynchronously with full-jitter
// exponential backoff. Pass a context detached from the request so retries
// survive it but still stop on server shutdown.
func Send(ctx context.Context, callbackURL string, p Payload) {
	if err := ValidateURL(callbackURL); err != nil {
		slog.Warn("webhook: rejected callback url", "url", callbackURL, "error", err)
		return
	}
	body, err := json.Marshal(p)
	if err != nil {
		slog.Warn("webhook: marshal payload", "url", callbackURL, "error", err)
		return
	}
	go send(ctx, callbackURL, body)
}

// ValidateURL blocks non-HTTP schemes and hosts resolving to private or
// internal addresses, so callbacks cannot be aimed at the local network.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	ips, err := net.LookupHost(u.Hostname())
	if err != nil {
		return fmt.Errorf("dns lookup failed: %w", err)
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("private/internal IP blocked: %s", ipStr)
		}
	}
	return nil
}

func send(ctx context.Context, callbackURL string, body []byte) {
	client := &http.Client{Timeout: 30 * time.Second}

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}
		err := deliver(ctx, client, callbackURL, body)
		if err == nil {
			return
		}
		slog.Warn("webhook attempt failed", "attempt", attempt, "url", callbackURL, "error", err)
		if attempt < retryAttempts {
			time.Sleep(jitter(attempt))
		}
	}
	slog.Error("webhook: all retries exhausted", "url", callbackURL)
}

// jitter returns a random duration between 0 and min(retryCap, retryBase * 2^attempt).
func jitter(attempt int) time.Duration {
	exp := retryBase * (1 << attempt)
	if exp > retryCap {
		exp = retryCap
	}
	return time.Duration(rand.Int63n(int64(exp)))
}

func deliver(ctx context.Context, client *http.Client, callbackURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return nil
}
