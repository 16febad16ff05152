package http

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
)

// ResponseWriter is the output sink handed to handlers. Every helper writes
// a complete response in the server's wire format, always declaring
// Connection: close. Raw writes through Write and ReadFrom are passed on
// untouched for handlers that frame their own response.
type ResponseWriter struct {
	w       *bufio.Writer
	headBuf []byte
	written int64
	status  int
}

// NewResponseWriter wraps w
func NewResponseWriter(w *bufio.Writer) *ResponseWriter {
	return &ResponseWriter{
		w:       w,
		headBuf: make([]byte, 0, 256),
	}
}

// WriteHeader writes the status line and headers. An empty contentType
// omits the Content-Type header.
func (rw *ResponseWriter) WriteHeader(code int, contentType string, contentLength int64) error {
	rw.status = code

	b := rw.headBuf[:0]
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(code), 10)
	b = append(b, ' ')
	b = append(b, StatusText(code)...)
	b = append(b, "\r\n"...)
	if contentType != "" {
		b = append(b, "Content-Type: "...)
		b = append(b, contentType...)
		b = append(b, "\r\n"...)
	}
	b = append(b, "Content-Length: "...)
	b = strconv.AppendInt(b, contentLength, 10)
	b = append(b, "\r\nConnection: close\r\n\r\n"...)
	rw.headBuf = b

	_, err := rw.Write(b)
	return err
}

// WriteEmpty writes a response with no body and flushes it
func (rw *ResponseWriter) WriteEmpty(code int) error {
	if err := rw.WriteHeader(code, "", 0); err != nil {
		return err
	}
	return rw.Flush()
}

// Data writes a response with the given body and flushes it
func (rw *ResponseWriter) Data(code int, contentType string, body []byte) error {
	if err := rw.WriteHeader(code, contentType, int64(len(body))); err != nil {
		return err
	}
	if _, err := rw.Write(body); err != nil {
		return err
	}
	return rw.Flush()
}

// String sends a text response
func (rw *ResponseWriter) String(code int, s string) error {
	return rw.Data(code, "text/plain; charset=utf-8", []byte(s))
}

// JSON sends v encoded as JSON
func (rw *ResponseWriter) JSON(code int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rw.Data(code, "application/json", body)
}

// Write implements io.Writer
func (rw *ResponseWriter) Write(p []byte) (int, error) {
	n, err := rw.w.Write(p)
	rw.written += int64(n)
	return n, err
}

// ReadFrom implements io.ReaderFrom
func (rw *ResponseWriter) ReadFrom(r io.Reader) (int64, error) {
	n, err := rw.w.ReadFrom(r)
	rw.written += n
	return n, err
}

// Flush pushes buffered bytes to the connection
func (rw *ResponseWriter) Flush() error {
	return rw.w.Flush()
}

// Written reports how many bytes have been written so far
func (rw *ResponseWriter) Written() int64 {
	return rw.written
}

// Status returns the code passed to the last WriteHeader, or 0
func (rw *ResponseWriter) Status() int {
	return rw.status
}
