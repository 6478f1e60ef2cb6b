package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaharnishant11/blog-to-podcast/internal/api"
	"github.com/chaharnishant11/blog-to-podcast/internal/article"
	"github.com/chaharnishant11/blog-to-podcast/internal/config"
	"github.com/chaharnishant11/blog-to-podcast/internal/eventlog"
	"github.com/chaharnishant11/blog-to-podcast/internal/extract"
	"github.com/chaharnishant11/blog-to-podcast/internal/murf"
	"github.com/chaharnishant11/blog-to-podcast/internal/notify"
	"github.com/chaharnishant11/blog-to-podcast/internal/queue"
	"github.com/chaharnishant11/blog-to-podcast/internal/rewrite"
	"github.com/chaharnishant11/blog-to-podcast/internal/settings"
	"github.com/chaharnishant11/blog-to-podcast/internal/storage"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("storage", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := article.NewSQLiteStore(db)
	if err != nil {
		slog.Error("article store", "error", err)
		os.Exit(1)
	}
	events, err := eventlog.New(db)
	if err != nil {
		slog.Error("event log", "error", err)
		os.Exit(1)
	}
	settingsStore, err := settings.NewStore(db)
	if err != nil {
		slog.Error("settings store", "error", err)
		os.Exit(1)
	}

	var murfClient *murf.Client
	if cfg.MurfAPIKey != "" {
		murfClient = murf.NewClient(cfg.MurfAPIKey, cfg.MurfBaseURL, cfg.SynthesisTimeout)
	}
	var rewriteClient *rewrite.Client
	if cfg.RewriteAPIKey != "" {
		rewriteClient = rewrite.NewClient(cfg.RewriteAPIKey, cfg.RewriteBaseURL, cfg.RewriteModel, cfg.RewriteTimeout)
	}

	broker := notify.NewBroker()

	var synth queue.Synthesizer
	if murfClient != nil {
		synth = murfClient
	}
	var rw queue.Rewriter
	if rewriteClient != nil {
		rw = rewriteClient
	}
	q := queue.New(cfg, store, events, broker, synth, rw)

	// Persisted settings override the environment configuration.
	if saved, err := settingsStore.Load(context.Background()); err != nil {
		slog.Error("load settings", "error", err)
	} else if saved != nil {
		q.ApplySettings(*saved)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	q.StartCleanup(ctx)

	if cfg.ResumeOnStart {
		if err := q.Resume(context.Background()); err != nil {
			slog.Error("resume", "error", err)
			os.Exit(1)
		}
	}

	extractor := extract.New(30 * time.Second)

	var voices api.VoiceLister
	if murfClient != nil {
		voices = murfClient
	}

	mux := http.NewServeMux()
	h := api.NewHandler(store, q, broker, events, settingsStore, extractor, voices, cfg)
	h.RegisterRoutes(mux)

	handler := api.Chain(mux,
		api.CORS(cfg.CORSOrigins),
		api.RequestID,
		api.Logging,
		api.RateLimit(cfg.SubmitRateLimit),
		api.Auth(cfg.APIKeys),
	)

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// No write timeout: SSE streams stay open across many chunk events.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("blogcast listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
