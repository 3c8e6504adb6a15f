// Package main is the entry point for the netsandbox debug server.
//
// The server hosts sandboxed computers whose scripts reach the network only
// through the address rules, bandwidth throttle and resource limits of the
// network stack. Each computer's results are queued as events and can be
// watched over a websocket stream.
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -rules rules.toml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
