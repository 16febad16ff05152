package observability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope for meters and tracers
const ScopeName = "github.com/searchktools/mini-server"

// Monitor records per-route dispatch outcomes. Counters are kept locally
// for the stats endpoint and mirrored to the global OpenTelemetry meter.
type Monitor struct {
	routes  sync.Map // route -> *RouteMetrics
	global  struct {
		totalRequests atomic.Uint64
		failures      atomic.Uint64
		active        atomic.Int64
	}

	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
	failures metric.Int64Counter
	active   metric.Int64UpDownCounter
}

// RouteMetrics stores per-route metrics
type RouteMetrics struct {
	Name           string
	Count          atomic.Uint64
	Errors         atomic.Uint64
	Failures       atomic.Uint64
	TotalDuration  atomic.Uint64
	MinDuration    atomic.Uint64
	MaxDuration    atomic.Uint64
	latencyBuckets [10]atomic.Uint64
}

// Bottleneck represents a route that looks unhealthy
type Bottleneck struct {
	Type     string
	Location string
	Severity int
	Details  string
}

// NewMonitor creates a monitor bound to the global meter and tracer providers
func NewMonitor() (*Monitor, error) {
	meter := otel.Meter(ScopeName)
	m := &Monitor{tracer: otel.Tracer(ScopeName)}

	var err error
	if m.requests, err = meter.Int64Counter("server.requests",
		metric.WithDescription("Responses produced, by route and status code"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("server.request.duration",
		metric.WithDescription("Time from accept hand-off to connection close"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.failures, err = meter.Int64Counter("server.connection.failures",
		metric.WithDescription("Connections dropped by an I/O failure or handler panic"),
		metric.WithUnit("{connection}")); err != nil {
		return nil, err
	}
	if m.active, err = meter.Int64UpDownCounter("server.connections.active",
		metric.WithDescription("Connections currently owned by a worker"),
		metric.WithUnit("{connection}")); err != nil {
		return nil, err
	}

	return m, nil
}

// StartConnection marks a connection as taken by a worker and opens its span
func (m *Monitor) StartConnection(ctx context.Context) (context.Context, trace.Span) {
	m.global.active.Add(1)
	m.active.Add(ctx, 1)
	return m.tracer.Start(ctx, "dispatch", trace.WithSpanKind(trace.SpanKindServer))
}

// EndConnection records the outcome of one connection. status is 0 when no
// response could be produced.
func (m *Monitor) EndConnection(ctx context.Context, route string, status int, d time.Duration, failed bool) {
	m.global.active.Add(-1)
	m.active.Add(ctx, -1)

	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
	if failed {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
	}

	m.record(route, status, d, failed)
}

func (m *Monitor) record(route string, status int, d time.Duration, failed bool) {
	val, _ := m.routes.LoadOrStore(route, &RouteMetrics{Name: route})
	rm := val.(*RouteMetrics)

	rm.Count.Add(1)
	if status >= 400 {
		rm.Errors.Add(1)
	}
	if failed {
		rm.Failures.Add(1)
		m.global.failures.Add(1)
	}

	durationNs := uint64(d.Nanoseconds())
	rm.TotalDuration.Add(durationNs)
	updateMinMax(rm, durationNs)
	updateLatencyBucket(rm, durationNs)

	m.global.totalRequests.Add(1)
}

func updateMinMax(m *RouteMetrics, d uint64) {
	for {
		min := m.MinDuration.Load()
		if min != 0 && d >= min {
			break
		}
		if m.MinDuration.CompareAndSwap(min, d) {
			break
		}
	}
	for {
		max := m.MaxDuration.Load()
		if d <= max {
			break
		}
		if m.MaxDuration.CompareAndSwap(max, d) {
			break
		}
	}
}

// LatencyBounds are the bucket upper bounds in milliseconds. The last
// bucket, past the final bound, is open.
var LatencyBounds = [9]uint64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000}

// LatencyLabel names bucket i of RouteSnapshot.Latency
func LatencyLabel(i int) string {
	if i >= len(LatencyBounds) {
		return fmt.Sprintf(">=%dms", LatencyBounds[len(LatencyBounds)-1])
	}
	return fmt.Sprintf("<%dms", LatencyBounds[i])
}

func updateLatencyBucket(m *RouteMetrics, durationNs uint64) {
	ms := durationNs / 1_000_000
	idx := len(LatencyBounds)
	for i, bound := range LatencyBounds {
		if ms < bound {
			idx = i
			break
		}
	}
	m.latencyBuckets[idx].Add(1)
}

// RouteSnapshot is a point-in-time copy of RouteMetrics
type RouteSnapshot struct {
	Route       string
	Count       uint64
	Errors      uint64
	Failures    uint64
	AvgDuration time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration
	// Latency holds request counts per LatencyBounds bucket
	Latency [10]uint64
}

// Snapshot returns per-route metrics sorted by route
func (m *Monitor) Snapshot() []RouteSnapshot {
	var out []RouteSnapshot
	m.routes.Range(func(_, value any) bool {
		rm := value.(*RouteMetrics)
		count := rm.Count.Load()
		s := RouteSnapshot{
			Route:       rm.Name,
			Count:       count,
			Errors:      rm.Errors.Load(),
			Failures:    rm.Failures.Load(),
			MinDuration: time.Duration(rm.MinDuration.Load()),
			MaxDuration: time.Duration(rm.MaxDuration.Load()),
		}
		for i := range rm.latencyBuckets {
			s.Latency[i] = rm.latencyBuckets[i].Load()
		}
		if count > 0 {
			s.AvgDuration = time.Duration(rm.TotalDuration.Load() / count)
		}
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// Totals returns global counters
func (m *Monitor) Totals() (requests, failures uint64, active int64) {
	return m.global.totalRequests.Load(), m.global.failures.Load(), m.global.active.Load()
}

// Bottlenecks flags routes with high average latency or error rates
func (m *Monitor) Bottlenecks() []Bottleneck {
	var bottlenecks []Bottleneck

	for _, s := range m.Snapshot() {
		if s.Count == 0 {
			continue
		}

		if s.AvgDuration > 100*time.Millisecond {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "latency",
				Location: s.Route,
				Severity: 8,
				Details:  fmt.Sprintf("High latency (%v avg)", s.AvgDuration),
			})
		}

		if s.Failures > 0 && float64(s.Failures)/float64(s.Count) > 0.05 {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "failures",
				Location: s.Route,
				Severity: 10,
				Details:  fmt.Sprintf("%.1f%% connection failures", float64(s.Failures)/float64(s.Count)*100),
			})
		}
	}

	return bottlenecks
}
