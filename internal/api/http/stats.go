package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/monitoring"
)

// Stats returns a JSON snapshot of the bridge's counters.
func Stats(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Snapshot())
	}
}

// Health reports that the process is up. It does not probe the target.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
