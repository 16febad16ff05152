package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/searchktools/mini-server/core/http"
)

// ServeConn handles exactly one request on conn and closes it. Handler
// panics and I/O failures are contained here: they are logged and the
// connection is dropped without a further response.
func (e *Engine) ServeConn(conn net.Conn) {
	start := time.Now()
	ctx, span := e.monitor.StartConnection(context.Background())

	br := e.buffers.AcquireReader(conn)
	bw := e.buffers.AcquireWriter(conn)
	w := http.NewResponseWriter(bw)

	route := RouteMalformed
	failed := false

	defer func() {
		if v := recover(); v != nil {
			failed = true
			e.logger.Error("handler panicked",
				"route", route,
				"remote", conn.RemoteAddr().String(),
				"panic", v)
			span.SetStatus(codes.Error, fmt.Sprint(v))
		}
		if !failed {
			if err := bw.Flush(); err != nil {
				failed = true
				e.logger.Warn("flush response", "route", route, "error", err)
			}
		}

		e.monitor.EndConnection(ctx, route, w.Status(), time.Since(start), failed)

		conn.Close()
		e.buffers.ReleaseReader(br)
		e.buffers.ReleaseWriter(bw)

		span.SetAttributes(
			attribute.String("route", route),
			attribute.Int("http.response.status_code", w.Status()))
		span.End()
	}()

	if err := e.dispatch(ctx, br, w, &route); err != nil {
		failed = true
		e.logger.Warn("connection failed",
			"route", route,
			"remote", conn.RemoteAddr().String(),
			"error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// dispatch parses one request from br and produces its response on w.
// route is updated as soon as the outcome is known so that a panicking
// handler is still attributed.
func (e *Engine) dispatch(ctx context.Context, br *bufio.Reader, w *http.ResponseWriter, route *string) error {
	req, err := http.ParseRequest(br)
	if err != nil {
		if errors.Is(err, http.ErrMalformedRequest) {
			e.logger.Debug("malformed request", "error", err)
			return w.WriteEmpty(http.StatusBadRequest)
		}
		return err
	}

	if !e.table.HasMethod(req.Method()) {
		e.logger.Debug("no routes for method", "method", req.Method())
		return w.WriteEmpty(http.StatusBadRequest)
	}

	path := req.RoutePath()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("http.request.method", req.Method()),
		attribute.String("url.path", path))

	if h, ok := e.table.Lookup(req.Method(), path); ok {
		*route = req.Method() + " " + path
		return e.pipeline.Then(h).ServeRequest(req, w)
	}

	if e.static != nil && e.static.Allowed(path) {
		*route = RouteStatic
		if err := e.static.Serve(path, w); err != nil {
			return fmt.Errorf("static %s: %w", path, err)
		}
		return nil
	}

	*route = RouteNotFound
	return w.WriteEmpty(http.StatusNotFound)
}
