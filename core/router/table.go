package router

import (
	"sort"
	"sync"

	"github.com/searchktools/mini-server/core/http"
)

// Table maps method -> path -> handler with exact string matching.
// Lookups may run concurrently with each other and with Register.
type Table struct {
	mu     sync.RWMutex
	routes map[string]map[string]http.Handler
}

// Route is one registered (method, path) pair
type Route struct {
	Method string
	Path   string
}

// NewTable creates an empty routing table
func NewTable() *Table {
	return &Table{
		routes: make(map[string]map[string]http.Handler),
	}
}

// Register binds handler to (method, path), replacing any previous binding
func (t *Table) Register(method, path string, handler http.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	paths, ok := t.routes[method]
	if !ok {
		paths = make(map[string]http.Handler)
		t.routes[method] = paths
	}
	paths[path] = handler
}

// Lookup returns the handler registered for exactly (method, path).
// The path must already have its query component removed.
func (t *Table) Lookup(method, path string) (http.Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.routes[method][path]
	return h, ok
}

// HasMethod reports whether any route is registered under method
func (t *Table) HasMethod(method string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.routes[method]) > 0
}

// Routes returns a sorted snapshot of all registrations
func (t *Table) Routes() []Route {
	t.mu.RLock()
	routes := make([]Route, 0, len(t.routes)*4)
	for method, paths := range t.routes {
		for path := range paths {
			routes = append(routes, Route{Method: method, Path: path})
		}
	}
	t.mu.RUnlock()

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Method != routes[j].Method {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	return routes
}
