package tests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/nettest"

	"github.com/searchktools/mini-server/core"
	"github.com/searchktools/mini-server/core/http"
	"github.com/searchktools/mini-server/core/middleware"
)

// TestStressMixedTraffic drives routed, unrouted and malformed requests
// from many clients at once and checks every connection gets its answer.
func TestStressMixedTraffic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := core.NewEngine(core.Options{Workers: 4, QueueSize: 16, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	e.Use(middleware.Recovery(logger), middleware.Logger(logger))
	e.GET("/echo", func(req *http.Request, w *http.ResponseWriter) error {
		v, _ := req.QueryParam("n")
		return w.String(http.StatusOK, v)
	})

	ln, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- e.Serve(ln) }()

	const clients, perClient = 16, 25
	var ok, mismatched atomic.Int64
	var wg sync.WaitGroup

	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for i := 0; i < perClient; i++ {
				n := c*perClient + i
				var raw, wantStatus, wantBody string
				switch n % 3 {
				case 0:
					raw = fmt.Sprintf("GET /echo?n=%d HTTP/1.1\r\n\r\n", n)
					wantStatus, wantBody = "HTTP/1.1 200 OK", strconv.Itoa(n)
				case 1:
					raw = "GET /nowhere HTTP/1.1\r\n\r\n"
					wantStatus = "HTTP/1.1 404 Not Found"
				default:
					raw = "GET /echo\r\n\r\n"
					wantStatus = "HTTP/1.1 400 Bad Request"
				}

				resp, err := exchange(ln.Addr().String(), raw)
				head, body, framed := strings.Cut(resp, "\r\n\r\n")
				if err != nil || !framed || !strings.HasPrefix(head, wantStatus+"\r\n") || body != wantBody {
					mismatched.Add(1)
					continue
				}
				ok.Add(1)
			}
		}(c)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-served; !errors.Is(err, core.ErrServerClosed) {
		t.Errorf("Serve returned %v", err)
	}

	if mismatched.Load() != 0 {
		t.Errorf("%d of %d requests got the wrong answer", mismatched.Load(), clients*perClient)
	}

	stats := e.Stats()
	if stats.Requests != uint64(ok.Load()) {
		t.Errorf("stats counted %d connections, clients saw %d", stats.Requests, ok.Load())
	}
	if stats.Workers.TasksPending != 0 {
		t.Errorf("%d tasks pending after shutdown", stats.Workers.TasksPending)
	}
	t.Logf("\n%s", stats)
}

func exchange(addr, raw string) (string, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := io.WriteString(conn, raw); err != nil {
		return "", err
	}
	resp, err := io.ReadAll(conn)
	return string(resp), err
}
