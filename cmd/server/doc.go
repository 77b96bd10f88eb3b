// Package main is the entry point for the DevTools bridge.
//
// The bridge exposes a browser's remote debugging port, which only accepts
// local connections, to external clients. GET / answers with a page that
// embeds the hosted DevTools frontend pointed back at the bridge; every
// other request and WebSocket upgrade is forwarded to the browser.
//
// Configuration:
//   - Defaults
//   - Optional YAML file (-config)
//   - Environment variables (12-factor)
//   - CLI flags (override everything else)
//
// Usage:
//
//	# Production mode
//	./server -external-host devtools.example.com -port 8080 -target-port 9222
//
//	# Development mode (console logs, debug level, plain ws://)
//	./server -dev -insecure-ws -external-host localhost:8080 -port 8080
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
