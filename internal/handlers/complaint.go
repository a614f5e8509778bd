package handlers

import (
	"strings"

	"github.com/dhrustimirsdar/customerreviewpost/internal/middleware"
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

type ComplaintHandler struct {
	complaintService *services.ComplaintService
	messageService   *services.MessageService
}

func NewComplaintHandler(complaints *services.ComplaintService, messages *services.MessageService) *ComplaintHandler {
	return &ComplaintHandler{
		complaintService: complaints,
		messageService:   messages,
	}
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// Submit classifies and stores a new complaint
// POST /functions/v1/process-complaint, POST /api/complaints
func (h *ComplaintHandler) Submit(c *gin.Context) {
	var req services.SubmitComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid JSON body")
		return
	}

	complaint, err := h.complaintService.Submit(c.Request.Context(), middleware.GetCaller(c), &req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"complaint": complaint})
}

// List returns the complaints visible to the caller
// GET /functions/v1/manage-complaints, GET /api/complaints
func (h *ComplaintHandler) List(c *gin.Context) {
	complaints, err := h.complaintService.List(c.Request.Context(), middleware.GetCaller(c), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"complaints": complaints})
}

// Get returns one complaint
// GET /api/complaints/:id
func (h *ComplaintHandler) Get(c *gin.Context) {
	complaint, err := h.complaintService.Get(c.Request.Context(), middleware.GetCaller(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"complaint": complaint})
}

// Update changes status and/or feedback_helpful
// PUT /functions/v1/manage-complaints, PUT /api/complaints/:id
func (h *ComplaintHandler) Update(c *gin.Context) {
	var req services.UpdateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid JSON body")
		return
	}
	if id := c.Param("id"); id != "" {
		req.ID = id
	}

	complaint, err := h.complaintService.Update(c.Request.Context(), middleware.GetCaller(c), &req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"complaint": complaint})
}

// MessageCounts returns per-complaint message totals for the dashboard list
// GET /api/complaints/message-counts?ids=a,b,c
func (h *ComplaintHandler) MessageCounts(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		response.BadRequest(c, "ids is required")
		return
	}
	if len(ids) > 200 {
		response.BadRequest(c, "at most 200 ids per request")
		return
	}

	counts, err := h.messageService.Counts(c.Request.Context(), middleware.GetCaller(c), ids)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"counts": counts})
}
