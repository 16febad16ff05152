package http

// Handler produces the complete response for a routed request. A returned
// error is treated as a failure of the connection.
type Handler interface {
	ServeRequest(req *Request, w *ResponseWriter) error
}

// HandlerFunc adapts an ordinary function to Handler
type HandlerFunc func(req *Request, w *ResponseWriter) error

// ServeRequest calls f(req, w)
func (f HandlerFunc) ServeRequest(req *Request, w *ResponseWriter) error {
	return f(req, w)
}
