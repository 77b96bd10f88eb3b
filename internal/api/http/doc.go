// Package http holds the bridge's own HTTP handlers: the landing page on
// the public listener, and the stats and health endpoints served next to
// /metrics.
package http
