package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/gridsplit/internal/editservice"
	"github.com/starford/gridsplit/internal/export"
	"github.com/starford/gridsplit/internal/fonts"
	"github.com/starford/gridsplit/internal/render"
	"github.com/starford/gridsplit/internal/sse"
	"github.com/starford/gridsplit/internal/storage"
)

// engine is the set of components every entry point shares.
type engine struct {
	cfg    *Config
	logger *slog.Logger
	fonts  *fonts.Registry
	runner *export.Runner
	svc    *editservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// newEngine wires fonts, renderer, export runner and edit service. broker
// may be nil when nothing streams events.
func newEngine(cfg *Config, logger *slog.Logger, broker *sse.Broker) (*engine, error) {
	reg, err := fonts.NewRegistry(logger)
	if err != nil {
		return nil, fmt.Errorf("init fonts: %w", err)
	}
	if cfg.Fonts.Dir != "" {
		if err := os.MkdirAll(cfg.Fonts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create fonts dir: %w", err)
		}
		n, err := reg.LoadDir(cfg.Fonts.Dir)
		if err != nil {
			logger.Warn("font loading incomplete", slog.String("dir", cfg.Fonts.Dir), slog.String("error", err.Error()))
		}
		logger.Info("Fonts loaded", slog.Int("count", n), slog.String("dir", cfg.Fonts.Dir))
	}

	renderer, err := render.New(reg, render.Options{
		Interpolation: cfg.Render.Interpolation,
		MaxUpscale:    cfg.Render.MaxUpscale,
	})
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	var (
		pub    export.Publisher
		notify editservice.Notifier
	)
	if broker != nil {
		pub, notify = broker, broker
	}
	runner := export.NewRunner(cfg.ExportOptions(), pub, logger)
	svc := editservice.New(cfg.ServiceConfig(), reg, renderer, runner, notify, logger)

	return &engine{cfg: cfg, logger: logger, fonts: reg, runner: runner, svc: svc}, nil
}

// outputStore opens the output directory, creating it if needed.
func (e *engine) outputStore(dir string) (storage.Provider, error) {
	if dir == "" {
		dir = e.cfg.Output.Dir
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

func (e *engine) close() {
	e.runner.Close()
}
