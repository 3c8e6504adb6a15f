// Package server provides the netsandbox debug server.
//
// The server hosts sandboxed computers behind a REST API so the network
// stack can be driven without an embedding scheduler:
//   - HTTP routing with Gin framework
//   - Middleware stack (request ids, metrics, CORS, rate limiting, recovery)
//   - Computer lifecycle and per-computer network operations
//   - Websocket stream of each computer's queued events
//   - Prometheus and JSON metrics
//
// Server Lifecycle:
//  1. Load configuration from environment
//  2. Initialize logger (production or development)
//  3. Compile the address rules and build the shared dialer and worker pool
//  4. Setup HTTP routes and middleware
//  5. Start HTTP server
//  6. Graceful shutdown on signal, closing every computer
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
