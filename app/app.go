package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/searchktools/mini-server/config"
	"github.com/searchktools/mini-server/core"
	"github.com/searchktools/mini-server/core/middleware"
	"github.com/searchktools/mini-server/core/observability"
	"github.com/searchktools/mini-server/core/static"
)

// ShutdownTimeout bounds how long Run waits for in-flight connections
const ShutdownTimeout = 30 * time.Second

// App wires configuration, logging, telemetry and the engine together
type App struct {
	cfg       *config.Config
	engine    *core.Engine
	logger    *slog.Logger
	resolver  *static.Dir
	telemetry observability.ShutdownFunc
}

// New creates an application instance. When telemetry is enabled the
// OpenTelemetry providers are installed before the engine is built so its
// instruments bind to them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	level, err := observability.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg}
	if cfg.Telemetry {
		a.telemetry, err = observability.SetupTelemetry(ctx, cfg.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("app: telemetry: %w", err)
		}
	}
	a.logger = observability.NewLogger(os.Stderr, level, cfg.Telemetry).
		With("service", cfg.ServiceName, "env", cfg.Env)

	opts := core.Options{
		Workers:        cfg.Workers,
		QueueSize:      cfg.QueueSize,
		MaxConnections: cfg.MaxConnections,
		Logger:         a.logger,
	}
	if cfg.PublicDir != "" && len(cfg.StaticPaths) > 0 {
		dir, err := filepath.Abs(cfg.PublicDir)
		if err != nil {
			return nil, err
		}
		a.resolver = static.NewDir(dir, static.DefaultCacheSize)
		opts.Static = static.NewResponder(a.resolver, static.Config{
			Paths:        cfg.StaticPaths,
			TemplatePath: cfg.TemplatePath,
		})
	}

	a.engine, err = core.NewEngine(opts)
	if err != nil {
		return nil, err
	}
	a.engine.Use(middleware.Recovery(a.logger), middleware.Logger(a.logger))
	if cfg.StatsPath != "" {
		a.engine.GET(cfg.StatsPath, a.engine.StatsHandler())
	}

	return a, nil
}

// Engine returns the underlying engine for route registration
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Logger returns the application logger
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Run serves until SIGINT or SIGTERM, then drains in-flight connections
// and flushes telemetry.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("server starting", "port", a.cfg.Port, "workers", a.cfg.Workers)
	for _, r := range a.engine.Routes() {
		a.logger.Debug("route", "method", r.Method, "path", r.Path)
	}

	served := make(chan error, 1)
	go func() { served <- a.engine.Run(a.cfg.Addr()) }()

	var err error
	select {
	case err = <-served:
	case <-ctx.Done():
		a.logger.Info("signal received, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		err = a.engine.Shutdown(shutdownCtx)
		cancel()
		if err == nil {
			err = <-served
		}
	}
	if errors.Is(err, core.ErrServerClosed) {
		err = nil
	}

	return errors.Join(err, a.Close())
}

// Close releases static file handles and flushes telemetry
func (a *App) Close() error {
	var errs []error
	if a.resolver != nil {
		errs = append(errs, a.resolver.Close())
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.telemetry(ctx))
	}
	return errors.Join(errs...)
}
