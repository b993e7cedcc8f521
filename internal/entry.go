// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/gridsplit/internal/api"
	"github.com/starford/gridsplit/internal/editservice"
	"github.com/starford/gridsplit/internal/mcpserver"
	"github.com/starford/gridsplit/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.logOutput, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("fonts_dir", cfg.Fonts.Dir),
		slog.String("split_preset", cfg.Split.Preset),
		slog.Int("export_workers", cfg.Export.Workers),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(250 * time.Millisecond)
	defer broker.Close()

	eng, err := newEngine(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer eng.close()

	apiRouter := api.NewRouter(eng.svc, api.RouterOptions{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		SSE:         broker,
		MaxUpload:   int64(cfg.Sessions.MaxUploadMB) << 20,
	})

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
		splits, merges := eng.svc.Counts()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"splits":      splits,
			"merges":      merges,
			"fonts":       len(eng.fonts.Families()),
			"sse_clients": broker.ClientCount(),
		})
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the fonts directory; new families redraw the sessions using them.
	if cfg.Fonts.Watch && cfg.Fonts.Dir != "" {
		g.Go(func() error {
			if err := eng.fonts.Watch(gCtx, cfg.Fonts.Dir); err != nil {
				logger.Warn("fonts watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Evict idle sessions and expired jobs.
	g.Go(func() error {
		return eng.svc.Run(gCtx)
	})
	g.Go(func() error {
		return eng.runner.Run(gCtx)
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

// errShutdown stops the background loops once the server is down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to the configured log
// output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := newLogger(app.logOutput, app.config.App.LogLevel)
	slog.SetDefault(logger)

	eng, err := newEngine(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer eng.close()

	store, err := eng.outputStore("")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.runner.Run(gCtx)
	})
	g.Go(func() error {
		logger.Info("MCP server starting", slog.String("output_dir", store.Root()))
		err := mcpserver.New(eng.svc, store, app.version).Serve(gCtx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	logger.Info("MCP server stopped")
	return nil
}

// RunSplit performs one split and writes the pieces to outDir (the
// configured output directory when empty).
func RunSplit(ctx context.Context, req editservice.SplitRequest, outDir string, withArchive bool, opts ...Option) (editservice.Saved, error) {
	return runBatch(ctx, outDir, withArchive, opts, func(svc *editservice.Service) (editservice.Result, error) {
		return svc.Split(ctx, req)
	})
}

// RunMerge performs one merge and writes the result to outDir.
func RunMerge(ctx context.Context, req editservice.MergeRequest, outDir string, withArchive bool, opts ...Option) (editservice.Saved, error) {
	return runBatch(ctx, outDir, withArchive, opts, func(svc *editservice.Service) (editservice.Result, error) {
		return svc.Merge(ctx, req)
	})
}

func runBatch(ctx context.Context, outDir string, withArchive bool, opts []Option,
	do func(*editservice.Service) (editservice.Result, error)) (editservice.Saved, error) {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return editservice.Saved{}, err
	}
	logger := newLogger(app.logOutput, app.config.App.LogLevel)

	eng, err := newEngine(app.config, logger, nil)
	if err != nil {
		return editservice.Saved{}, err
	}
	defer eng.close()

	store, err := eng.outputStore(outDir)
	if err != nil {
		return editservice.Saved{}, err
	}
	res, err := do(eng.svc)
	if err != nil {
		return editservice.Saved{}, err
	}
	saved, err := editservice.SaveResult(store, "", res, withArchive)
	if err != nil {
		return saved, fmt.Errorf("save outputs: %w", err)
	}
	saved.Dir = store.Root()
	return saved, nil
}
