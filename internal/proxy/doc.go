// Package proxy forwards HTTP requests and WebSocket upgrades to the
// browser's debugging port, rewriting Host to "localhost" on the way.
//
// Every target connection the proxy dials is tracked, so Drain can wait for
// in-flight requests and long-lived tunnels and, once its context expires,
// close whatever is left.
package proxy
