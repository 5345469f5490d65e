package handler

import (
	"net/http"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/database"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/response"
	"github.com/gin-gonic/gin"
)

// HealthHandler reports the state of backing stores.
type HealthHandler struct {
	deps map[string]database.Pinger
}

func NewHealthHandler(deps map[string]database.Pinger) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// Health godoc
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	checks, ok := database.Check(c.Request.Context(), h.deps)
	status, code := "ok", http.StatusOK
	if !ok {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	response.Success(c, code, gin.H{"status": status, "checks": checks})
}
