package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/shared/id"
)

const (
	// RequestIDHeader carries the request ID on responses.
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	maxRequestIDLen = 128
)

// RequestID assigns every request an ID, reusing a sane inbound
// X-Request-ID. The ID is set on the response only; forwarded requests
// reach the target unchanged.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = id.NewRequestID().String()
		}

		c.Set(requestIDKey, reqID)
		c.Header(RequestIDHeader, reqID)
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
