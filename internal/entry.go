// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/agenda/internal/api"
	"github.com/starford/agenda/internal/apptservice"
	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/feed"
	"github.com/starford/agenda/internal/mcpserver"
	"github.com/starford/agenda/internal/reload"
	"github.com/starford/agenda/internal/sse"
	"github.com/starford/agenda/internal/storage"
	"github.com/starford/agenda/internal/store"
	pkgconfig "github.com/starford/agenda/pkg/config"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger, closeLog := newLogger(cfg.App, os.Stdout)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("export_dir", cfg.Export.Dir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.LayoutThrottle,
		sse.WithHistory(cfg.Events.History),
		sse.WithHeartbeat(cfg.Events.Heartbeat))
	defer broker.Close()

	db, svc, err := bootstrap(ctx, cfg, logger, apptservice.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		runner *feed.Runner
		feeds  api.FeedSyncer
	)
	if len(cfg.Feeds.Sources) > 0 {
		runner, err = feed.NewRunner(cfg.Feeds.Refresh, cfg.Feeds.Sources, svc,
			feed.NewFetcher(feed.BlockedAddr), logger.With(slog.String("component", "feeds")))
		if err != nil {
			return err
		}
		feeds = runner
	}

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: newRouter(cfg, svc, broker, feeds),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start config watcher.
	if app.configPath != "" {
		g.Go(func() error {
			err := reload.Watch(gCtx, app.configPath, logger, func() {
				reloadSettings(app.configPath, svc, logger)
			})
			if err != nil {
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start feed subscriptions.
	if runner != nil {
		g.Go(func() error {
			return runner.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger, closeLog := newLogger(cfg.App, os.Stderr)
	defer closeLog()
	slog.SetDefault(logger)

	db, svc, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("MCP server starting", slog.String("sqlite_path", cfg.SQLite.Path))
	return mcpserver.New(svc).ServeStdio()
}

// bootstrap opens the store and loads the appointment service.
func bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, extra ...apptservice.Option) (*store.DB, *apptservice.Service, error) {
	settings, err := settingsFrom(cfg)
	if err != nil {
		return nil, nil, err
	}

	db, err := store.Open(cfg.SQLite.Path, store.WithLocation(settings.Location))
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	opts := []apptservice.Option{
		apptservice.WithSettings(settings),
		apptservice.WithLogger(logger),
		apptservice.WithImportHorizon(cfg.Feeds.Horizon()),
	}
	if cfg.Export.Dir != "" {
		exports, err := storage.NewFS(cfg.Export.Dir)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("init export dir: %w", err)
		}
		opts = append(opts, apptservice.WithExports(exports))
	}
	opts = append(opts, extra...)

	svc := apptservice.New(db, opts...)
	if err := svc.Load(ctx, cfg.Seed.Enabled); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, svc, nil
}

// settingsFrom resolves the hot-reloadable sections of cfg.
func settingsFrom(cfg *Config) (apptservice.Settings, error) {
	loc, err := cfg.Calendar.Location()
	if err != nil {
		return apptservice.Settings{}, fmt.Errorf("calendar timezone: %w", err)
	}
	locale, err := calendar.LookupLocale(cfg.Calendar.Locale)
	if err != nil {
		return apptservice.Settings{}, err
	}
	return apptservice.Settings{
		Grid:       cfg.Calendar.Grid(),
		Grouping:   cfg.Calendar.LayoutGrouping(),
		WeekStart:  cfg.Calendar.Weekday(),
		Locale:     locale,
		Location:   loc,
		Thresholds: cfg.Drag.Thresholds(),
	}, nil
}

// reloadSettings re-reads path and applies its calendar and drag sections.
// An invalid file leaves the running settings untouched.
func reloadSettings(path string, svc *apptservice.Service, logger *slog.Logger) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		logger.Warn("config reload rejected", slog.String("error", err.Error()))
		return
	}
	settings, err := settingsFrom(cfg)
	if err != nil {
		logger.Warn("config reload rejected", slog.String("error", err.Error()))
		return
	}
	svc.Apply(settings)
}

// newRouter builds the root chi router.
// feeds, when non-nil, adds /api/feeds.
func newRouter(cfg *Config, svc *apptservice.Service, broker *sse.Broker, feeds api.FeedSyncer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := svc.Ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api; /api/events is inside the auth group.
	var events http.Handler
	if broker != nil {
		events = broker
	}
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events)
	if feeds != nil {
		api.MountFeeds(apiRouter, feeds)
	}
	r.Mount("/api", apiRouter)

	return r
}
