package http

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/searchktools/mini-server/core/optimize"
)

// RequestBufferSize bounds the look-ahead window used to frame a request.
// The request line and header block together must fit in it.
const RequestBufferSize = 4096

var (
	// ErrMalformedRequest covers every way a request can fail to parse
	ErrMalformedRequest = errors.New("http: malformed request")

	crlf       = []byte("\r\n")
	headersEnd = []byte("\r\n\r\n")
)

// ParseRequest frames one request from r. The request line and header
// block are inspected in a single look-ahead window of at most r.Size()
// bytes; only the bytes up to and including the header terminator are
// consumed, so any body is left in r for the handler.
//
// All grammar failures return ErrMalformedRequest. Other transport errors
// are returned wrapped.
func ParseRequest(r *bufio.Reader) (*Request, error) {
	window, err := peekWindow(r)
	if err != nil {
		return nil, err
	}
	read := len(window)

	// Request line
	lineEnd := optimize.IndexWindow(window, crlf, 0, read)
	if lineEnd == -1 {
		return nil, ErrMalformedRequest
	}

	parts := strings.Split(string(window[:lineEnd]), " ")
	if len(parts) != 3 {
		return nil, ErrMalformedRequest
	}
	method, path, proto := parts[0], parts[1], parts[2]
	if !ValidMethod(method) || path == "" || proto == "" {
		return nil, ErrMalformedRequest
	}

	// Header block. The search starts at the request line terminator so
	// that a request without headers, whose terminator is the request line
	// CRLF followed by a blank line, is framed too.
	blockEnd := optimize.IndexWindow(window, headersEnd, lineEnd, read)
	if blockEnd == -1 {
		return nil, ErrMalformedRequest
	}

	blockStart := lineEnd + len(crlf)
	if _, err := r.Discard(blockStart); err != nil {
		return nil, fmt.Errorf("http: read request: %w", err)
	}

	var block []byte
	if blockEnd > blockStart {
		block = make([]byte, blockEnd-blockStart)
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, fmt.Errorf("http: read request: %w", err)
		}
	}

	consumed := blockStart + len(block)
	if _, err := r.Discard(blockEnd + len(headersEnd) - consumed); err != nil {
		return nil, fmt.Errorf("http: read request: %w", err)
	}

	return &Request{
		method:  method,
		path:    path,
		proto:   proto,
		headers: splitHeaders(block),
		body:    r,
	}, nil
}

// peekWindow performs one read into r's buffer and returns everything
// buffered without consuming it. An empty stream yields ErrMalformedRequest.
func peekWindow(r *bufio.Reader) ([]byte, error) {
	if _, err := r.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMalformedRequest
		}
		return nil, fmt.Errorf("http: read request: %w", err)
	}

	window, err := r.Peek(r.Buffered())
	if err != nil {
		return nil, fmt.Errorf("http: read request: %w", err)
	}
	return window, nil
}

func splitHeaders(block []byte) []string {
	if len(block) == 0 {
		return []string{}
	}
	return strings.Split(string(block), "\r\n")
}
