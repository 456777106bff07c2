package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RealtimeHandler mounts the collaboration socket. The gateway authenticates
// the upgrade itself, so the route sits outside the bearer middleware.
type RealtimeHandler struct {
	gateway http.Handler
}

func NewRealtimeHandler(gateway http.Handler) *RealtimeHandler {
	return &RealtimeHandler{gateway: gateway}
}

// GET /api/realtime/ws
func (h *RealtimeHandler) Serve(c *gin.Context) {
	h.gateway.ServeHTTP(c.Writer, c.Request)
}
