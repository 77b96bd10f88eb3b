package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := RouteKind(c)

		c.Next()

		size := int64(c.Writer.Size())
		if size < 0 {
			size = 0
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start), size)
	}
}

// RouteKind labels a request by how the front server handles it. Forwarded
// paths are collapsed so arbitrary target URLs do not blow up cardinality.
func RouteKind(c *gin.Context) string {
	switch {
	case websocket.IsWebSocketUpgrade(c.Request):
		return RouteUpgrade
	case c.FullPath() == "/":
		return RouteLanding
	default:
		return RouteProxy
	}
}
