package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
)

// AccessLog logs one line per request once it completes. For forwarded
// WebSocket upgrades that is when the tunnel closes.
func AccessLog(logger *logging.Logger) gin.HandlerFunc {
	logger = logger.Named("access")

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Warn("Request failed", fields...)
		default:
			logger.Debug("Request served", fields...)
		}
	}
}
