package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware starts a span per request. An inbound X-Trace-ID and
// X-Span-ID make the span part of the caller's trace; the span's own ids
// are returned in the same headers.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithRemoteParent(c.Request.Context(),
			TraceID(c.GetHeader(TraceHeader)),
			SpanID(c.GetHeader(SpanHeader)),
		)

		span, ctx := tracer.StartSpan(ctx, operationName(c))
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(ctx)

		c.Header(TraceHeader, string(span.TraceID))
		c.Header(SpanHeader, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}

		span.Finish()
		tracer.Submit(span)
	}
}

// operationName names a span after its route. Unrouted requests belong to
// the target and are named as forwards.
func operationName(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return "http " + c.Request.Method + " " + route
	}
	return "http " + c.Request.Method + " forward"
}
