package static

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/searchktools/mini-server/core/http"
)

// ErrNotWhitelisted is returned by Serve for paths outside the whitelist
var ErrNotWhitelisted = errors.New("static: path not whitelisted")

// DefaultPaths is the whitelist served when no other is configured
var DefaultPaths = []string{
	"/index.html", "/spring.svg", "/spring.png", "/resources.html",
	"/styles.css", "/app.js", "/links.html", "/forms.html",
	"/classic.html", "/events.html", "/events.js",
}

// Defaults for the templated resource
const (
	DefaultTemplatePath = "/classic.html"
	DefaultPlaceholder  = "{time}"
)

// Config configures a Responder
type Config struct {
	// Paths is the whitelist of servable request paths
	Paths []string
	// TemplatePath receives placeholder substitution; empty disables it
	TemplatePath string
	Placeholder  string
}

// Responder answers requests for whitelisted static paths
type Responder struct {
	resolver     Resolver
	allowed      map[string]struct{}
	templatePath string
	placeholder  string

	// Now supplies the substituted timestamp
	Now func() time.Time
}

// NewResponder creates a responder serving cfg.Paths through resolver
func NewResponder(resolver Resolver, cfg Config) *Responder {
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultPlaceholder
	}

	allowed := make(map[string]struct{}, len(cfg.Paths))
	for _, p := range cfg.Paths {
		allowed[p] = struct{}{}
	}

	return &Responder{
		resolver:     resolver,
		allowed:      allowed,
		templatePath: cfg.TemplatePath,
		placeholder:  cfg.Placeholder,
		Now:          time.Now,
	}
}

// Allowed reports whether path is whitelisted. path must not carry a query.
func (r *Responder) Allowed(path string) bool {
	_, ok := r.allowed[path]
	return ok
}

// Serve writes a 200 response carrying the content for path. Resolution
// and read failures are returned to the caller untranslated.
func (r *Responder) Serve(path string, w *http.ResponseWriter) error {
	if !r.Allowed(path) {
		return ErrNotWhitelisted
	}

	res, err := r.resolver.Resolve(path)
	if err != nil {
		return fmt.Errorf("static: resolve %s: %w", path, err)
	}
	defer res.Close()

	if path == r.templatePath {
		return r.serveTemplate(res, w)
	}

	if err := w.WriteHeader(http.StatusOK, res.ContentType(), res.Size()); err != nil {
		return err
	}
	n, err := w.ReadFrom(io.NewSectionReader(res, 0, res.Size()))
	if err != nil {
		return fmt.Errorf("static: copy %s: %w", path, err)
	}
	if n != res.Size() {
		return fmt.Errorf("static: copy %s: %w", path, io.ErrUnexpectedEOF)
	}
	return w.Flush()
}

func (r *Responder) serveTemplate(res Resource, w *http.ResponseWriter) error {
	raw, err := io.ReadAll(io.NewSectionReader(res, 0, res.Size()))
	if err != nil {
		return fmt.Errorf("static: read template: %w", err)
	}

	content := strings.ReplaceAll(string(raw), r.placeholder, FormatLocalTime(r.Now()))
	return w.Data(http.StatusOK, res.ContentType(), []byte(content))
}

// FormatLocalTime renders t as an ISO-8601 local date-time. Seconds are
// omitted when both they and the fraction are zero, and the fraction is
// printed in the shortest group of three digits that holds it.
func FormatLocalTime(t time.Time) string {
	var b strings.Builder
	b.WriteString(t.Format("2006-01-02T15:04"))

	sec, nano := t.Second(), t.Nanosecond()
	if sec == 0 && nano == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, ":%02d", sec)

	switch {
	case nano == 0:
	case nano%1_000_000 == 0:
		fmt.Fprintf(&b, ".%03d", nano/1_000_000)
	case nano%1_000 == 0:
		fmt.Fprintf(&b, ".%06d", nano/1_000)
	default:
		fmt.Fprintf(&b, ".%09d", nano)
	}
	return b.String()
}
