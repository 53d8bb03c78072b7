package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emineral/emineral-backend/internal/data/db"
)

type HealthHandler struct {
	dbService *db.Service
	startedAt time.Time
}

func NewHealthHandler(dbService *db.Service) *HealthHandler {
	return &HealthHandler{dbService: dbService, startedAt: time.Now()}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if err := h.dbService.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
	})
}
