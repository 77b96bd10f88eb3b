// Package config provides 12-factor configuration management for the bridge.
//
// Configuration is assembled in layers, each overriding the previous one:
//   - Defaults from Default()
//   - An optional YAML file (cmd/server -config)
//   - Environment variables
//   - CLI flags (applied by cmd/server)
//
// Configuration Sections:
//   - Server: public listener and the externally visible host
//   - Target: the debugged browser's local debugging port
//   - Discovery: retry and timeout settings for page discovery
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting of the landing page
//   - Metrics: optional Prometheus listener
//
// Example Usage:
//
//	cfg, err := config.Load("")
//	if err == nil {
//		err = cfg.Validate()
//	}
//
// Environment Variables:
//   - EXTERNAL_HOST, HOST, PORT, SHUTDOWN_GRACE, MAX_CONNECTIONS
//   - TLS_CERT_FILE, TLS_KEY_FILE
//   - TARGET_HOST, TARGET_PORT, INSECURE_WS, TARGET_DIAL_TIMEOUT
//   - DISCOVERY_RETRIES, DISCOVERY_RETRY_DELAY, DISCOVERY_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - METRICS_ADDR
package config
