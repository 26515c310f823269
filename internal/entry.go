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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/wikipress/internal/api"
	"github.com/starford/wikipress/internal/apperr"
	"github.com/starford/wikipress/internal/docservice"
	"github.com/starford/wikipress/internal/mcpserver"
	"github.com/starford/wikipress/internal/pipeline"
	"github.com/starford/wikipress/internal/report"
	"github.com/starford/wikipress/internal/sse"
	"github.com/starford/wikipress/internal/storage"
)

// components are the pieces shared by every command.
type components struct {
	cfg     *Config
	logger  *slog.Logger
	builder *pipeline.Builder
	report  *report.DB
}

func (rt *components) Close() {
	if rt.report != nil {
		if err := rt.report.Close(); err != nil {
			rt.logger.Warn("close report failed", slog.String("error", err.Error()))
		}
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		out := app.logOutput
		if out == nil {
			out = os.Stdout
		}
		app.logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)
	return app, nil
}

// setup opens the content and output trees and the optional report database
// and wires them into a builder.
func (app *application) setup() (*components, error) {
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("content_root", cfg.Content.Root),
		slog.String("output_dir", cfg.Output.Dir),
		slog.String("format", cfg.Output.Format),
		slog.String("report_path", cfg.Report.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	exclude := append([]string(nil), cfg.Content.Exclude...)
	if rel, ok := nestedDir(cfg.Content.Root, cfg.Output.Dir); ok {
		exclude = append(exclude, rel)
		logger.Debug("output dir is inside content root, excluding it", slog.String("path", rel))
	}

	source, err := storage.NewFS(cfg.Content.Root,
		storage.WithDocumentExt(cfg.Content.DocumentExt),
		storage.WithExclude(exclude...))
	if err != nil {
		return nil, fmt.Errorf("init content: %w: %w", apperr.ErrConfiguration, err)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	output, err := storage.NewFS(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}

	indexOpts := cfg.Content.IndexOptions(logger)
	indexOpts.Exclude = exclude
	markup := cfg.Site.Markup(cfg.Content.DocumentExt)

	opts := []pipeline.Option{
		pipeline.WithIndexOptions(indexOpts),
		pipeline.WithWorkers(cfg.Output.Workers),
		pipeline.WithLogger(logger),
	}
	if cfg.Output.Format == FormatHTML {
		markup.EscapePaths = true
		opts = append(opts, pipeline.WithHTML(pipeline.NewHTMLRenderer(cfg.Site.URLs(cfg.Content.DocumentExt))))
	}
	opts = append(opts, pipeline.WithMarkup(markup))

	rt := &components{cfg: cfg, logger: logger}
	if cfg.Report.Enabled() {
		db, err := report.Open(cfg.Report.Path)
		if err != nil {
			return nil, fmt.Errorf("init report: %w", err)
		}
		rt.report = db
		opts = append(opts, pipeline.WithReport(db, cfg.Report.KeepBuilds))
	}

	rt.builder = pipeline.New(source, output, opts...)
	return rt, nil
}

// nestedDir reports the slash path of dir relative to root when dir lies
// inside root.
func nestedDir(root, dir string) (string, bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func logSummary(logger *slog.Logger, s *pipeline.Summary) {
	logger.Info("Build completed",
		slog.String("id", s.ID),
		slog.Int("documents", s.Documents),
		slog.Int("written", s.Written),
		slog.Int("unchanged", s.Unchanged),
		slog.Int("assets", s.Assets),
		slog.Int("unresolved", s.Unresolved),
		slog.Int("failed", s.Failed))
}

// Build runs a single build and returns once every document was attempted.
func Build(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := rt.builder.Build(ctx)
	if s != nil {
		logSummary(rt.logger, s)
	}
	return err
}

// Watch builds once and rebuilds on every content change until interrupted.
func Watch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.builder.Watch(ctx, func(s *pipeline.Summary, _ error) {
		if s != nil {
			logSummary(rt.logger, s)
		}
	})
}

// Serve starts the preview HTTP server with a watcher that rebuilds on
// change and publishes build events over SSE.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	logger := rt.logger

	// SSE broker.
	broker := sse.NewBroker(30 * time.Second)
	defer broker.Close()

	// Build API service and router.
	svc := docservice.NewService(rt.builder, rt.report)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		if rt.builder.Index() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"indexing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Start watcher with SSE callback.
	g.Go(func() error {
		return rt.builder.Watch(gCtx, func(s *pipeline.Summary, err error) {
			if s != nil {
				logSummary(logger, s)
				broker.PublishBuild(s, err)
				return
			}
			broker.PublishBuild(nil, err)
		})
	})

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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		cancel()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP exposes the rewrite tools over MCP on stdin/stdout. Logs go to
// stderr unless another output was configured.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.builder.Refresh(); err != nil {
		return err
	}

	srv := mcpserver.New(docservice.NewService(rt.builder, rt.report), app.version)
	rt.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
