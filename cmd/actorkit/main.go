package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/actorkit/api"
	"github.com/use-agent/actorkit/browser"
	"github.com/use-agent/actorkit/capture"
	"github.com/use-agent/actorkit/config"
	"github.com/use-agent/actorkit/engine"
	"github.com/use-agent/actorkit/execution"
	"github.com/use-agent/actorkit/llm"
	"github.com/use-agent/actorkit/pagination"
	"github.com/use-agent/actorkit/planner"
	"github.com/use-agent/actorkit/probe"
	"github.com/use-agent/actorkit/sandbox"
	"github.com/use-agent/actorkit/store"
	"github.com/use-agent/actorkit/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("actorkit starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
		"store", cfg.Store.Path,
	)
	if cfg.Planner.APIKey == "" {
		slog.Warn("planner API key is empty; runs will fail at the planning stage")
	}

	// ── 3. Open the store ───────────────────────────────────────────
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// ── 4. Browser session (launched lazily on first run) ───────────
	session := browser.NewSession(cfg.Browser)
	defer session.ReleaseAll()

	// ── 5. Planner ──────────────────────────────────────────────────
	client := llm.NewClient(cfg.Planner.APIKey,
		llm.WithModel(cfg.Planner.Model),
		llm.WithBaseURL(cfg.Planner.BaseURL),
		llm.WithTemperature(cfg.Planner.Temperature),
	)
	pl := planner.New(client, cfg.Planner, cfg.Pagination.MaxPagesLimit)
	defer pl.Close()

	// ── 6. Execution pipeline ───────────────────────────────────────
	notifier := webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret)
	tracker := execution.NewTracker(st, notifier.ExecutionFinished)
	runner := sandbox.NewRunner(cfg.Sandbox.Timeout)

	eng := engine.New(
		tracker,
		pl,
		session,
		capture.New(cfg.Capture),
		pagination.NewController(runner, cfg.Pagination),
		probe.Prober{},
	)

	// ── 7. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(api.Deps{
		Actors:     st,
		Executions: st,
		Runner:     eng,
		Pool:       session,
		DB:         st,
	}, cfg, startTime)

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Runs hold pages for up to their timeout; give them a bounded drain.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Deferred: planner cache, browser session (kills Chrome), store.
	slog.Info("actorkit stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
