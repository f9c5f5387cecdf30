// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/api"
	"github.com/starford/notegraph/internal/background"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/mcpserver"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/sse"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/tagging"
	"github.com/starford/notegraph/internal/vcs"
)

var errConfigRequired = errors.New("config is required")

// NewLogger creates the structured JSON logger at the configured level.
// A nil w writes to stdout.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// App holds the opened notes directory, index and note service shared by
// every entry point.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Notes   *storage.Notes
	DB      *index.DB
	Service *noteservice.Service
	// Git is nil unless sync.auto_sync is on.
	Git *vcs.Git
}

// Open prepares the notes directory and opens the index.
func Open(cfg *Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	if err := os.MkdirAll(cfg.Notes.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}
	fsys, err := storage.NewFS(cfg.Notes.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var cipher storage.Cipher
	if cfg.GPG.Enabled() {
		cipher = storage.GPG{Binary: cfg.GPG.Binary, Key: cfg.GPG.Key}
	}
	notes := storage.NewNotes(fsys, cipher)

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path,
		index.WithLocator(notes),
		index.WithLogger(logger),
		index.WithContextRadius(cfg.Links.ContextRadius),
	)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Notes:   notes,
		DB:      db,
		Service: noteservice.NewService(notes, db, tagging.Tagger{MaxTags: cfg.Tagging.MaxTags}, cfg.Links.ContextRadius, logger),
	}
	if cfg.Sync.AutoSync {
		app.Git = &vcs.Git{
			Dir:       fsys.Root(),
			Remote:    cfg.Sync.Remote,
			UserName:  cfg.Sync.UserName,
			UserEmail: cfg.Sync.UserEmail,
			Logger:    logger,
		}
	}
	return app, nil
}

// Close closes the index.
func (a *App) Close() error {
	return a.DB.Close()
}

// Finish runs the exit work (auto-tagging, git sync) in the background and
// waits at most sync.exit_grace for it. Failures are logged, never returned.
func (a *App) Finish(ctx context.Context) {
	if !a.Config.Tagging.AutoTag && a.Git == nil {
		return
	}
	runner := background.NewRunner(context.WithoutCancel(ctx), a.Logger)
	runner.Go("exit", a.Service.ExitTask(a.Config.Tagging.AutoTag, a.Git))

	waitCtx, cancel := context.WithTimeout(context.Background(), a.Config.Sync.ExitGrace)
	defer cancel()
	runner.Wait(waitCtx)
}

// Run starts serve mode: an initial sync, the file watcher and the HTTP API,
// until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_dir", cfg.Notes.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	a, err := Open(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if stats, err := a.Service.Reindex(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync done",
			slog.Int("indexed", stats.Indexed),
			slog.Int("removed", stats.Removed),
			slog.Int("failed", stats.Failed))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	runner := background.NewRunner(ctx, logger)
	apiRouter := api.NewRouter(a.Service, runner, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := index.Watch(gCtx, a.DB, a.Notes, logger, broker.NoteChanged); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

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
		// A non-nil return cancels gCtx, which stops the watcher.
		return errShutdown
	})

	err = g.Wait()
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Sync.ExitGrace)
	runner.Wait(drainCtx)
	cancel()
	if err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	a.Finish(context.Background())
	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown requested")

// RunMCP serves the MCP tools on stdin/stdout. Logs must not go to stdout
// here, so the default logger writes to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	a, err := Open(app.config, app.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Service.Reindex(ctx); err != nil {
		app.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	if err := mcpserver.New(a.Service, app.version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	a.Finish(ctx)
	return nil
}
