// Package ws routes WebSocket upgrades on the public listener.
package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Forwarder takes over an upgrade request and its connection.
type Forwarder interface {
	ForwardUpgrade(w http.ResponseWriter, r *http.Request)
}

// Upgrades hands every WebSocket upgrade, whatever its path, to f and stops
// the chain. Other requests continue to routing.
func Upgrades(f Forwarder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !websocket.IsWebSocketUpgrade(c.Request) {
			c.Next()
			return
		}

		f.ForwardUpgrade(c.Writer, c.Request)
		c.Abort()
	}
}
