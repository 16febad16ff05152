package router

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/searchktools/mini-server/core/http"
)

// namedHandler lets tests tell handlers apart
type namedHandler string

func (n namedHandler) ServeRequest(*http.Request, *http.ResponseWriter) error { return nil }

func TestTableLookup(t *testing.T) {
	table := NewTable()
	table.Register("GET", "/", namedHandler("root"))
	table.Register("GET", "/messages", namedHandler("list"))
	table.Register("POST", "/messages", namedHandler("create"))

	tests := []struct {
		method string
		path   string
		want   namedHandler
		found  bool
	}{
		{"GET", "/", "root", true},
		{"GET", "/messages", "list", true},
		{"POST", "/messages", "create", true},
		{"POST", "/", "", false},
		{"GET", "/messages/", "", false},
		{"GET", "/Messages", "", false},
		{"GET", "/messages?x=1", "", false},
		{"PUT", "/messages", "", false},
	}

	for _, tt := range tests {
		h, ok := table.Lookup(tt.method, tt.path)
		if ok != tt.found {
			t.Errorf("%s %s: found=%v, want %v", tt.method, tt.path, ok, tt.found)
			continue
		}
		if !ok {
			if h != nil {
				t.Errorf("%s %s: expected nil handler on miss, got %v", tt.method, tt.path, h)
			}
			continue
		}
		if h.(namedHandler) != tt.want {
			t.Errorf("%s %s: got handler %v, want %v", tt.method, tt.path, h, tt.want)
		}
	}
}

func TestTableRegisterOverwrites(t *testing.T) {
	table := NewTable()
	table.Register("GET", "/x", namedHandler("first"))
	table.Register("GET", "/x", namedHandler("second"))

	h, ok := table.Lookup("GET", "/x")
	if !ok || h.(namedHandler) != "second" {
		t.Errorf("expected second handler, got %v (%v)", h, ok)
	}
	if n := len(table.Routes()); n != 1 {
		t.Errorf("expected 1 route after overwrite, got %d", n)
	}
}

func TestTableHasMethod(t *testing.T) {
	table := NewTable()
	if table.HasMethod("GET") {
		t.Error("empty table should not report GET")
	}
	table.Register("POST", "/p", namedHandler("p"))
	if !table.HasMethod("POST") {
		t.Error("POST should be registered")
	}
	if table.HasMethod("GET") {
		t.Error("GET should not be registered")
	}
}

func TestTableRoutesSorted(t *testing.T) {
	table := NewTable()
	table.Register("POST", "/b", namedHandler("b"))
	table.Register("GET", "/z", namedHandler("z"))
	table.Register("GET", "/a", namedHandler("a"))

	want := []Route{{"GET", "/a"}, {"GET", "/z"}, {"POST", "/b"}}
	if got := table.Routes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Routes() = %v, want %v", got, want)
	}
}

// Run with -race: registrations racing lookups must be safe and visible.
func TestTableConcurrentAccess(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				path := fmt.Sprintf("/w%d/%d", w, i)
				table.Register("GET", path, namedHandler(path))
				if h, ok := table.Lookup("GET", path); !ok || h.(namedHandler) != namedHandler(path) {
					t.Errorf("read-after-write failed for %s", path)
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				table.Lookup("GET", "/w0/0")
				table.HasMethod("GET")
			}
		}()
	}
	wg.Wait()

	if n := len(table.Routes()); n != 800 {
		t.Errorf("expected 800 routes, got %d", n)
	}
}

func BenchmarkTableLookup(b *testing.B) {
	table := NewTable()
	table.Register("GET", "/hello/world", namedHandler("h"))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			table.Lookup("GET", "/hello/world")
		}
	})
}
