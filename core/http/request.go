package http

import (
	"errors"
	"io"
	"strconv"
	"strings"
)

// Supported request methods
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Request is one parsed client request. It is immutable once returned by
// ParseRequest and lives only as long as its connection.
type Request struct {
	method  string
	path    string
	proto   string
	headers []string

	// body is the connection stream positioned after the header block
	body io.Reader
}

var errInvalidRequest = errors.New("http: invalid request fields")

// NewRequest builds a request outside of the parser, applying the same
// method, path and header-line invariants.
func NewRequest(method, path string, headers []string) (*Request, error) {
	if !ValidMethod(method) || path == "" || strings.Contains(path, " ") {
		return nil, errInvalidRequest
	}
	for _, h := range headers {
		if strings.Contains(h, "\r\n") {
			return nil, errInvalidRequest
		}
	}

	hs := make([]string, len(headers))
	copy(hs, headers)
	return &Request{
		method:  method,
		path:    path,
		proto:   "HTTP/1.1",
		headers: hs,
		body:    strings.NewReader(""),
	}, nil
}

// ValidMethod reports whether method is in the accepted whitelist
func ValidMethod(method string) bool {
	return method == MethodGet || method == MethodPost
}

// Method returns the request method
func (r *Request) Method() string {
	return r.method
}

// Path returns the request target exactly as transmitted, query included
func (r *Request) Path() string {
	return r.path
}

// Proto returns the protocol version token of the request line
func (r *Request) Proto() string {
	return r.proto
}

// RoutePath returns the path with any query component removed
func (r *Request) RoutePath() string {
	return StripQuery(r.path)
}

// Headers returns a copy of the raw header lines in transmission order
func (r *Request) Headers() []string {
	hs := make([]string, len(r.headers))
	copy(hs, r.headers)
	return hs
}

// Header returns the value of the first header line whose name matches
// name case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	for _, line := range r.headers {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(line[:colon]), name) {
			return strings.TrimSpace(line[colon+1:]), true
		}
	}
	return "", false
}

// ContentLength parses the Content-Length header, if present and valid
func (r *Request) ContentLength() (int64, bool) {
	v, ok := r.Header("Content-Length")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Body returns the unread remainder of the connection stream. Handlers
// decide how much of it to consume.
func (r *Request) Body() io.Reader {
	return r.body
}

// String returns the request line
func (r *Request) String() string {
	return r.method + " " + r.path + " " + r.proto
}

// StripQuery removes everything from the first '?' on
func StripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
