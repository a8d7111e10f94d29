// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/voxnotes/internal/api"
	"github.com/starford/voxnotes/internal/mcpserver"
	"github.com/starford/voxnotes/internal/metrics"
	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/noteservice"
	"github.com/starford/voxnotes/internal/notestore"
	"github.com/starford/voxnotes/internal/sse"
	"github.com/starford/voxnotes/internal/storage"
	"github.com/starford/voxnotes/internal/sweeper"
	"github.com/starford/voxnotes/internal/transcriber"
	"github.com/starford/voxnotes/internal/watcher"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	files   *storage.FS
	db      *notestore.DB
	metrics *metrics.Metrics
}

func (a *application) init() error {
	if a.config == nil {
		return fmt.Errorf("config is required")
	}
	if a.logOutput == nil {
		a.logOutput = os.Stdout
	}
	return nil
}

func (a *application) logger() *slog.Logger {
	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// open prepares the output directory and the note store.
func (a *application) open(ctx context.Context) (*runtime, error) {
	if err := a.init(); err != nil {
		return nil, err
	}
	cfg := a.config
	logger := a.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("output_dir", cfg.Storage.OutputDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("transcriber_url", cfg.Transcriber.URL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Storage.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	files, err := storage.NewFS(cfg.Storage.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := notestore.Open(ctx, cfg.SQLite.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("init note store: %w", err)
	}
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		files:   files,
		db:      db,
		metrics: metrics.New("voxnotes"),
	}, nil
}

func (rt *runtime) service(opts ...noteservice.Option) (*noteservice.Service, error) {
	tc := rt.cfg.Transcriber
	gateway, err := transcriber.NewClient(transcriber.Options{
		URL:           tc.URL,
		Model:         tc.Model,
		Timeout:       tc.Timeout,
		Retries:       tc.Retries,
		MaxConcurrent: tc.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("init transcriber: %w", err)
	}
	opts = append([]noteservice.Option{
		noteservice.WithLogger(rt.logger),
		noteservice.WithMetrics(rt.metrics),
	}, opts...)
	return noteservice.NewService(rt.db, rt.files, gateway, opts...), nil
}

func (rt *runtime) reconcile(ctx context.Context, svc *noteservice.Service) {
	rep, err := svc.Reconcile(ctx)
	if err != nil {
		rt.logger.Warn("reconcile failed", slog.String("error", err.Error()))
		return
	}
	rt.logger.Info("reconcile finished",
		slog.Int("checked", rep.Checked),
		slog.Int("cleared", rep.Cleared),
		slog.Int("missing_audio", rep.MissingAudio))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}

	rt, err := app.open(ctx)
	if err != nil {
		return err
	}
	defer rt.db.Close()
	cfg, logger := rt.cfg, rt.logger

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, err := rt.service(noteservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	if cfg.Store.ReconcileOnStart {
		rt.reconcile(ctx, svc)
	}

	apiRouter := api.NewRouter(svc, rt.files, api.RouterOptions{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		BaseURL:     cfg.App.HTTP.BaseURL,
		Events:      broker,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(rt.metrics.Middleware)

	// Health and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", rt.metrics.Handler())

	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the artifact directories for external removals.
	if cfg.Watcher.Enabled {
		g.Go(func() error {
			dirs := []watcher.Dir{
				{Kind: models.ArtifactAudio, Path: rt.files.Dir(models.ArtifactAudio)},
				{Kind: models.ArtifactNotes, Path: rt.files.Dir(models.ArtifactNotes)},
			}
			err := watcher.Watch(gCtx, dirs, logger, watcher.Callbacks{
				Removed: svc.ArtifactRemoved,
				Settled: func(ctx context.Context) { rt.reconcile(ctx, svc) },
			}, 0)
			if err != nil {
				logger.Warn("artifact watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Remove abandoned temp recordings.
	if cfg.Sweeper.Enabled {
		sw := sweeper.New(rt.files, cfg.Sweeper.MaxAge, cfg.Sweeper.Interval, logger, rt.metrics)
		g.Go(func() error { return sw.Run(gCtx) })
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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so background workers stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}

	rt, err := app.open(ctx)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	svc, err := rt.service()
	if err != nil {
		return err
	}
	rt.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(svc, rt.files).ServeStdio()
}

// RunSweep removes temp recordings older than the configured max age once.
func RunSweep(ctx context.Context, opts ...Option) (int, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if err := app.init(); err != nil {
		return 0, err
	}
	cfg := app.config
	logger := app.logger()
	if cfg.Sweeper.MaxAge <= 0 {
		return 0, fmt.Errorf("sweeper.max_age must be positive")
	}
	if _, err := os.Stat(cfg.Storage.OutputDir); errors.Is(err, os.ErrNotExist) {
		logger.Info("sweep skipped, no output dir", slog.String("output_dir", cfg.Storage.OutputDir))
		return 0, nil
	}

	files, err := storage.NewFS(cfg.Storage.OutputDir)
	if err != nil {
		return 0, fmt.Errorf("init storage: %w", err)
	}
	n, err := sweeper.Sweep(files, cfg.Sweeper.MaxAge, time.Now(), logger)
	if err != nil {
		return 0, err
	}
	logger.Info("sweep finished", slog.Int("removed", n))
	return n, nil
}

// RunProbe writes the capabilities of the configured note store to w as
// JSON without modifying the store.
func RunProbe(ctx context.Context, w io.Writer, opts ...Option) error {
	app := &application{logOutput: io.Discard}
	for _, opt := range opts {
		opt(app)
	}
	if err := app.init(); err != nil {
		return err
	}

	caps, err := notestore.ProbeFile(ctx, app.config.SQLite.Path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(caps)
}
