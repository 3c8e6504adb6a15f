// Package config provides 12-factor configuration for the network sandbox.
//
// Configuration is loaded from environment variables with sensible defaults.
// Address rules live in a separate TOML, YAML or JSON file named by
// NETSANDBOX_RULES_FILE; without one, private addresses are denied and
// everything else is allowed under conservative limits.
//
// Configuration Sections:
//   - Server: debug server settings (port, host, CORS origins)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting of the debug server
//   - Network: Per-computer limits, bandwidth, proxy and rules file
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	rs, err := cfg.Network.Rules()
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - NETSANDBOX_MAX_REQUESTS, NETSANDBOX_MAX_WEBSOCKETS
//   - NETSANDBOX_UPLOAD_BANDWIDTH, NETSANDBOX_DOWNLOAD_BANDWIDTH
//   - NETSANDBOX_HTTP_ENABLED, NETSANDBOX_WEBSOCKET_ENABLED
//   - NETSANDBOX_USER_AGENT, NETSANDBOX_RULES_FILE, NETSANDBOX_WORKERS
//   - NETSANDBOX_DIAL_TIMEOUT, NETSANDBOX_EVENT_CAPACITY
//   - NETSANDBOX_PROXY_ADDR, NETSANDBOX_PROXY_USER, NETSANDBOX_PROXY_PASSWORD
package config
