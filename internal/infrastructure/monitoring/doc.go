/*
Package monitoring provides Prometheus metrics for the bridge.

# Overview

Each Metrics value owns a private registry carrying the Go runtime and
process collectors plus the bridge's own series:

- HTTP requests on the public listener, labelled by route kind
  (landing, proxy, upgrade) rather than by path
- Discovery outcomes and latency, and circuit breaker state
- Forwarding errors and open WebSocket tunnels
- Open client connections

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	client := devtools.NewClient(cfg, logger).WithObserver(metrics)

# Metrics Endpoint

The registry is served from a separate listener so the public port can
forward every path to the target:

	mux.Handle("/metrics", metrics.Handler())
*/
package monitoring
