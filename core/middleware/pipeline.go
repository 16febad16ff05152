package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/searchktools/mini-server/core/http"
)

// Middleware wraps a handler. A middleware that returns without calling
// next stops the chain.
type Middleware func(next http.Handler) http.Handler

// Pipeline is an ordered middleware chain
type Pipeline struct {
	handlers []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{
		handlers: make([]Middleware, 0, 8),
	}
}

// Use adds middleware to the pipeline. The first one added runs outermost.
func (p *Pipeline) Use(mw ...Middleware) *Pipeline {
	p.handlers = append(p.handlers, mw...)
	return p
}

// Then wraps final with the pipeline
func (p *Pipeline) Then(final http.Handler) http.Handler {
	// Fast path: no middlewares
	if len(p.handlers) == 0 {
		return final
	}

	h := final
	for i := len(p.handlers) - 1; i >= 0; i-- {
		h = p.handlers[i](h)
	}
	return h
}

// Common middleware implementations

// Recovery turns a handler panic into a 500 response when nothing has been
// written yet. Otherwise the panic is reported as an error and the
// connection is dropped.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(req *http.Request, w *http.ResponseWriter) (err error) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("panic recovered", "method", req.Method(), "path", req.Path(), "panic", v)
					if w.Written() > 0 {
						err = fmt.Errorf("middleware: panic after partial response: %v", v)
						return
					}
					err = w.WriteEmpty(http.StatusInternalServerError)
				}
			}()
			return next.ServeRequest(req, w)
		})
	}
}

// Logger logs each handled request at debug level, or at warn when the
// handler fails
func Logger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(req *http.Request, w *http.ResponseWriter) error {
			start := time.Now()
			err := next.ServeRequest(req, w)

			attrs := []any{
				"method", req.Method(),
				"path", req.Path(),
				"status", w.Status(),
				"bytes", w.Written(),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Warn("request failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("request", attrs...)
			}
			return err
		})
	}
}
