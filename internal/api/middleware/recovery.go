package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
)

// Recovery turns handler panics into a plain-text 500. http.ErrAbortHandler
// is re-raised so net/http aborts the response quietly.
func Recovery(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.Error("Recovered from panic",
				zap.String("request_id", GetRequestID(c)),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			if !c.Writer.Written() {
				c.String(http.StatusInternalServerError, "internal server error")
			}
			c.Abort()
		}()

		c.Next()
	}
}
