package handlers

import (
	"strconv"

	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
	retentionDays    int
}

func NewSystemLogHandler(systemLogService *services.SystemLogService, retentionDays int) *SystemLogHandler {
	return &SystemLogHandler{
		systemLogService: systemLogService,
		retentionDays:    retentionDays,
	}
}

func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.systemLogService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, resp)
}

func (h *SystemLogHandler) GetModules(c *gin.Context) {
	modules, err := h.systemLogService.GetModules()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"modules": modules})
}

// Cleanup removes entries older than ?days=, defaulting to the configured
// retention.
// POST /api/system-logs/cleanup
func (h *SystemLogHandler) Cleanup(c *gin.Context) {
	days := h.retentionDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}

	deleted, err := h.systemLogService.CleanupOldLogs(days)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"deleted": deleted, "retention_days": days})
}
