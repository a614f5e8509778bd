package handlers

import (
	"net/http"

	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the store, queue and live-event hub.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.EventHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.EventHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub}
}

// CheckHealth returns 200 when the database answers, 503 otherwise.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	code := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	sseClients := 0
	if h.hub != nil {
		sseClients = h.hub.ClientCount()
	}

	var pending int64
	if dbStatus == "ok" {
		h.db.Model(&models.Complaint{}).Where("status = ?", models.StatusPending).Count(&pending)
	}

	c.JSON(code, gin.H{
		"status":  overall,
		"service": "complaints",
		"components": gin.H{
			"database":           dbStatus,
			"queue_mode":         queueMode,
			"sse_clients":        sseClients,
			"pending_complaints": pending,
		},
	})
}
