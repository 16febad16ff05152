package core

import "errors"

// HeaderAccept selects the stats encoding
const HeaderAccept = "Accept"

// Route labels for connections that did not reach a registered handler
const (
	RouteMalformed = "malformed"
	RouteStatic    = "static"
	RouteNotFound  = "not_found"
)

// Error definitions
var (
	// ErrServerClosed is returned by Serve and Run after Shutdown
	ErrServerClosed = errors.New("core: server closed")
	ErrServing      = errors.New("core: engine already serving")
)
