package core

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchktools/mini-server/core/codec"
	"github.com/searchktools/mini-server/core/http"
	"github.com/searchktools/mini-server/core/observability"
	"github.com/searchktools/mini-server/core/pools"
)

// Stats is a point-in-time view of the engine
type Stats struct {
	Workers     pools.WorkerPoolStats
	Buffers     pools.BufferStats
	Requests    uint64
	Failures    uint64
	Active      int64
	Routes      []observability.RouteSnapshot
	Bottlenecks []observability.Bottleneck
}

// Stats returns engine statistics
func (e *Engine) Stats() Stats {
	requests, failures, active := e.monitor.Totals()
	return Stats{
		Workers:     e.workerPool.Stats(),
		Buffers:     e.buffers.Stats(),
		Requests:    requests,
		Failures:    failures,
		Active:      active,
		Routes:      e.monitor.Snapshot(),
		Bottlenecks: e.monitor.Bottlenecks(),
	}
}

// Struct converts s to a protobuf Struct for wire encoding
func (s Stats) Struct() (*structpb.Struct, error) {
	routes := make([]any, 0, len(s.Routes))
	for _, r := range s.Routes {
		latency := make(map[string]any, len(r.Latency))
		for i, n := range r.Latency {
			latency[observability.LatencyLabel(i)] = n
		}
		routes = append(routes, map[string]any{
			"route":    r.Route,
			"count":    r.Count,
			"errors":   r.Errors,
			"failures": r.Failures,
			"avg_ms":   float64(r.AvgDuration.Microseconds()) / 1000,
			"min_ms":   float64(r.MinDuration.Microseconds()) / 1000,
			"max_ms":   float64(r.MaxDuration.Microseconds()) / 1000,
			"latency":  latency,
		})
	}

	bottlenecks := make([]any, 0, len(s.Bottlenecks))
	for _, b := range s.Bottlenecks {
		bottlenecks = append(bottlenecks, map[string]any{
			"type":     b.Type,
			"location": b.Location,
			"severity": b.Severity,
			"details":  b.Details,
		})
	}

	return structpb.NewStruct(map[string]any{
		"workers": map[string]any{
			"num_workers":     s.Workers.NumWorkers,
			"busy":            s.Workers.Busy,
			"tasks_submitted": s.Workers.TasksSubmitted,
			"tasks_completed": s.Workers.TasksCompleted,
			"tasks_pending":   s.Workers.TasksPending,
			"tasks_panicked":  s.Workers.TasksPanicked,
			"submits_blocked": s.Workers.SubmitsBlocked,
		},
		"buffers": map[string]any{
			"reader_gets": s.Buffers.ReaderGets,
			"writer_gets": s.Buffers.WriterGets,
			"allocated":   s.Buffers.Allocated,
			"hit_rate":    s.Buffers.HitRate,
		},
		"requests":    s.Requests,
		"failures":    s.Failures,
		"active":      s.Active,
		"routes":      routes,
		"bottlenecks": bottlenecks,
	})
}

// String renders s as human-readable text
func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, `Server Statistics
=================

Connections:
  Handled:  %d
  Failed:   %d
  Active:   %d

Worker Pool:
  Workers:  %d (%d busy)
  Pending:  %d
  Panicked: %d
  Blocked:  %d submits waited for queue space

Buffers:
  Gets:     %d readers / %d writers
  Hit Rate: %.2f%%
`,
		s.Requests, s.Failures, s.Active,
		s.Workers.NumWorkers, s.Workers.Busy, s.Workers.TasksPending, s.Workers.TasksPanicked,
		s.Workers.SubmitsBlocked,
		s.Buffers.ReaderGets, s.Buffers.WriterGets, s.Buffers.HitRate*100,
	)

	if len(s.Routes) > 0 {
		b.WriteString("\nRoutes:\n")
		for _, r := range s.Routes {
			fmt.Fprintf(&b, "  %-24s %6d req  %4d err  avg %v\n", r.Route, r.Count, r.Errors, r.AvgDuration)
			b.WriteString("   ")
			for i, n := range r.Latency {
				if n > 0 {
					fmt.Fprintf(&b, " %s:%d", observability.LatencyLabel(i), n)
				}
			}
			b.WriteString("\n")
		}
	}

	if len(s.Bottlenecks) > 0 {
		b.WriteString("\nBottlenecks:\n")
		for _, bn := range s.Bottlenecks {
			fmt.Fprintf(&b, "  [%s] %s: %s (severity %d)\n", bn.Type, bn.Location, bn.Details, bn.Severity)
		}
	}
	return b.String()
}

// StatsHandler serves Stats. A format query parameter (text, json or
// protobuf) wins over the Accept header.
func (e *Engine) StatsHandler() http.HandlerFunc {
	return func(req *http.Request, w *http.ResponseWriter) error {
		stats := e.Stats()
		accept, _ := req.Header(HeaderAccept)

		var c codec.Codec
		if format, ok := req.QueryParam("format"); ok {
			if format == "text" {
				return w.String(http.StatusOK, stats.String())
			}
			var err error
			if c, err = codec.ByName(format); err != nil {
				if errors.Is(err, codec.ErrUnsupportedCodec) {
					return w.String(http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
				}
				return err
			}
		} else if strings.Contains(accept, "text/plain") {
			return w.String(http.StatusOK, stats.String())
		} else {
			c = codec.Negotiate(accept)
		}

		msg, err := stats.Struct()
		if err != nil {
			return err
		}
		body, err := c.Encode(msg)
		if err != nil {
			return err
		}
		return w.Data(http.StatusOK, c.ContentType(), body)
	}
}
