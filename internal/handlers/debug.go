package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visaconnect/internal/chat"
	"visaconnect/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints: an audit-pipeline check
// and the conversation summary rebuild used to repair a summary lost between
// the append and summary writes.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, service *chat.Service, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "audit_test", "", "", requestIDFromContext(c), c.GetString("userID"))
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	router.POST("/debug/conversations/:conversation_id/rebuild-summary", func(c *gin.Context) {
		if err := service.RebuildSummary(c.Request.Context(), c.Param("conversation_id")); err != nil {
			respondNotFoundOrError(c, err, "failed to rebuild summary")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
