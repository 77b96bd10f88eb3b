// Package logging provides structured logging using uber/zap.
//
// Two output modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a *Logger and derive a named child with Named, so
// log lines carry "proxy", "discovery" or "server" as the logger name.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	logger.Named("proxy").Warn("target unreachable", zap.Error(err))
package logging
