/*
Package miniserver is a small HTTP/1.1 server that answers exactly one
request per connection.

Each accepted connection is handed to a fixed pool of workers. A worker
frames the request line and header block from a single bounded read,
dispatches on the exact method and path, falls back to a whitelist of
static files when no handler matches, writes a response carrying
Connection: close and closes the connection.

Quick Start

	package main

	import (
	    "context"
	    "os"

	    "github.com/searchktools/mini-server/app"
	    "github.com/searchktools/mini-server/config"
	    "github.com/searchktools/mini-server/core/http"
	)

	func main() {
	    cfg, err := config.Load(os.Args[1:])
	    if err != nil {
	        panic(err)
	    }
	    application, err := app.New(context.Background(), cfg)
	    if err != nil {
	        panic(err)
	    }

	    application.Engine().GET("/hello", func(req *http.Request, w *http.ResponseWriter) error {
	        return w.String(http.StatusOK, "Hello, World!")
	    })

	    application.Run()
	}

Modules

  - app: Application lifecycle, signals and graceful shutdown
  - config: Flags, MINI_* environment variables and JSON files
  - core: Engine, accept loop and per-connection dispatch
  - core/http: Request parsing and response writing
  - core/router: Exact-match route table
  - core/middleware: Handler middleware pipeline
  - core/pools: Worker pool and buffer pools
  - core/static: Whitelisted static files and the {time} template
  - core/codec: JSON and protobuf payload encoding
  - core/optimize: Delimiter search over a bounded window
  - core/observability: slog logging, metrics and tracing via OpenTelemetry

Limitations

There is no keep-alive, pipelining or chunked encoding, and no read or
write deadline: a silent peer holds its worker until it disconnects.
*/
package miniserver
