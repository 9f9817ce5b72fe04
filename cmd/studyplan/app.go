package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MikeSquared-Agency/studyplan/internal/api"
	"github.com/MikeSquared-Agency/studyplan/internal/config"
	"github.com/MikeSquared-Agency/studyplan/internal/gemini"
	"github.com/MikeSquared-Agency/studyplan/internal/hermes"
	"github.com/MikeSquared-Agency/studyplan/internal/metrics"
	"github.com/MikeSquared-Agency/studyplan/internal/processor"
	"github.com/MikeSquared-Agency/studyplan/internal/search"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
	"github.com/MikeSquared-Agency/studyplan/internal/store/postgres"
	"github.com/MikeSquared-Agency/studyplan/internal/store/sqlite"
	"github.com/MikeSquared-Agency/studyplan/internal/store/supabase"
)

// app holds the wired dependencies shared by the serve and chat commands.
type app struct {
	cfg     config.Config
	proc    *processor.Processor
	metrics *metrics.Collector
	events  *hermes.Client
	logger  *slog.Logger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// eventStatus returns the NATS client for status reporting, or nil when
// events are disabled.
func (a *app) eventStatus() api.EventStatus {
	if a.events == nil {
		return nil
	}
	return a.events
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) *app {
	a := &app{cfg: cfg, metrics: metrics.New(), logger: logger}

	gen := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout, gemini.DefaultBreakerSettings(), logger)
	logger.Info("gemini client ready", "model", gen.Model())

	searcher := search.NewClient(cfg.SearchTimeout, logger)

	var events processor.Publisher = hermes.Nop{}
	if cfg.NatsURL != "" {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Warn("NATS unavailable, events disabled", "url", cfg.NatsURL, "error", err)
		} else {
			events = hermes.NewEmitter(hc)
			a.events = hc
			a.closers = append(a.closers, hc.Close)
			logger.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	st := a.openStore(ctx)
	a.proc = processor.New(st, gen, searcher, events, a.metrics, logger)
	return a
}

// openStore returns the configured backend wrapped in a memory fallback.
// Missing credentials or a failed connection start the fallback already
// degraded, never a startup failure. Only STORE_BACKEND=memory yields a plain
// memory store.
func (a *app) openStore(ctx context.Context) store.Store {
	cfg, logger := a.cfg, a.logger

	if !cfg.HasStoreCredentials() {
		return store.NewDegraded(logger, fmt.Errorf("%s credentials missing", cfg.StoreBackend))
	}

	var primary store.Store
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Info("using in-memory storage")
		return store.NewMemory()

	case config.BackendPostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return store.NewDegraded(logger, fmt.Errorf("open postgres: %w", err))
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			logger.Warn("schema migration failed", "error", err)
		}
		primary = pg

	case config.BackendSQLite:
		sq, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return store.NewDegraded(logger, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err))
		}
		a.closers = append(a.closers, func() { _ = sq.Close() })
		primary = sq

	case config.BackendSupabase:
		sb, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey, logger)
		if err != nil {
			return store.NewDegraded(logger, fmt.Errorf("open supabase: %w", err))
		}
		primary = sb

	default:
		return store.NewDegraded(logger, fmt.Errorf("unknown store backend %q", cfg.StoreBackend))
	}

	logger.Info("persistence ready", "backend", cfg.StoreBackend)
	return store.NewFallback(primary, logger)
}

func setupLogging(level string) *slog.Logger {
	return setupLoggingTo(os.Stdout, level)
}

func setupLoggingTo(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
