package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/net/netutil"

	"github.com/searchktools/mini-server/core/http"
	"github.com/searchktools/mini-server/core/middleware"
	"github.com/searchktools/mini-server/core/observability"
	"github.com/searchktools/mini-server/core/pools"
	"github.com/searchktools/mini-server/core/router"
	"github.com/searchktools/mini-server/core/static"
)

// writeBufferSize is the per-connection response buffer
const writeBufferSize = 4096

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Workers bounds the number of connections handled at once
	Workers int
	// QueueSize is the per-worker backlog of accepted connections
	QueueSize int
	// MaxConnections caps accepted-but-unfinished connections; 0 is unlimited
	MaxConnections int
	// Static answers whitelisted paths that have no handler; nil disables it
	Static *static.Responder
	Logger *slog.Logger
}

// Engine accepts connections and dispatches one request per connection to
// the registered handlers on a fixed pool of workers.
type Engine struct {
	table      *router.Table
	static     *static.Responder
	pipeline   *middleware.Pipeline
	workerPool *pools.WorkerPool
	buffers    *pools.BufferPool
	monitor    *observability.Monitor
	logger     *slog.Logger

	maxConnections int

	mu       sync.Mutex
	listener net.Listener
	closing  atomic.Bool
	done     chan struct{}
}

// NewEngine creates a new engine instance
func NewEngine(opts Options) (*Engine, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	monitor, err := observability.NewMonitor()
	if err != nil {
		return nil, fmt.Errorf("core: create monitor: %w", err)
	}

	e := &Engine{
		table:          router.NewTable(),
		static:         opts.Static,
		pipeline:       middleware.NewPipeline(),
		buffers:        pools.NewBufferPool(http.RequestBufferSize, writeBufferSize),
		monitor:        monitor,
		logger:         opts.Logger,
		maxConnections: opts.MaxConnections,
		done:           make(chan struct{}),
	}

	e.workerPool = pools.NewWorkerPool(opts.Workers, opts.QueueSize)
	e.workerPool.PanicHandler = func(v any) {
		e.logger.Error("worker task panicked", "panic", v)
	}

	return e, nil
}

// Use appends middleware wrapping every registered handler. It must be
// called before Serve.
func (e *Engine) Use(mw ...middleware.Middleware) {
	e.pipeline.Use(mw...)
}

// Handle registers h for an exact method and path. Only GET and POST
// requests are accepted by the parser; registering another method has no
// reachable effect.
func (e *Engine) Handle(method, path string, h http.Handler) {
	e.table.Register(method, path, h)
}

// HandleFunc registers an ordinary function as a handler
func (e *Engine) HandleFunc(method, path string, f func(*http.Request, *http.ResponseWriter) error) {
	e.Handle(method, path, http.HandlerFunc(f))
}

// GET registers a GET route
func (e *Engine) GET(path string, handler http.HandlerFunc) {
	e.Handle(http.MethodGet, path, handler)
}

// POST registers a POST route
func (e *Engine) POST(path string, handler http.HandlerFunc) {
	e.Handle(http.MethodPost, path, handler)
}

// Routes returns the registered routes
func (e *Engine) Routes() []router.Route {
	return e.table.Routes()
}

// Monitor exposes the engine's dispatch metrics
func (e *Engine) Monitor() *observability.Monitor {
	return e.monitor
}

// Run listens on addr and serves until Shutdown or a fatal accept error
func (e *Engine) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return e.Serve(ln)
}

// Serve accepts connections from ln and hands each one to a worker. It
// returns ErrServerClosed after Shutdown. Any other accept error is fatal.
// In both cases every accepted connection has been handled before Serve
// returns.
func (e *Engine) Serve(ln net.Listener) error {
	if e.maxConnections > 0 {
		ln = netutil.LimitListener(ln, e.maxConnections)
	}

	e.mu.Lock()
	if e.closing.Load() {
		e.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	if e.listener != nil {
		e.mu.Unlock()
		return ErrServing
	}
	e.listener = ln
	e.mu.Unlock()

	defer close(e.done)
	defer e.workerPool.Close()

	e.logger.Info("server listening",
		"addr", ln.Addr().String(),
		"routes", len(e.table.Routes()),
		"max_connections", e.maxConnections)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if e.closing.Load() {
				return ErrServerClosed
			}
			e.logger.Error("accept failed", "error", err)
			ln.Close()
			return fmt.Errorf("core: accept: %w", err)
		}

		// Submit fails only with ErrPoolClosed
		if err := e.workerPool.Submit(func() { e.ServeConn(conn) }); err != nil {
			conn.Close()
			return ErrServerClosed
		}
	}
}

// Shutdown stops accepting connections and waits until the ones already
// accepted have been handled, or ctx is done. Running handlers are not
// interrupted.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing.Store(true)
	ln := e.listener
	e.mu.Unlock()

	if ln == nil {
		e.workerPool.Close()
		return nil
	}

	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		e.logger.Warn("close listener", "error", err)
	}

	select {
	case <-e.done:
		e.logger.Info("server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
