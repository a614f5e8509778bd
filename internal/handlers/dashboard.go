package handlers

import (
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetStats returns complaint statistics
// GET /api/dashboard/stats?start_date=&end_date=
func (h *DashboardHandler) GetStats(c *gin.Context) {
	var req services.DashboardStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.dashboardService.GetStats(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, resp)
}
