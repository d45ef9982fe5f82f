package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/telemetry"
	"chat-relay/internal/ws"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, relay *ws.Router, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", "", requestIDFromContext(c), nil)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/presence", func(c *gin.Context) {
		online := relay.Online()
		pending := make(map[string]int, len(online))
		if user := c.Query("user"); user != "" {
			pending[user] = relay.Pending(user)
		}
		c.JSON(http.StatusOK, gin.H{"online": online, "pending": pending})
	})
}
