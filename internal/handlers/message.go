package handlers

import (
	"github.com/dhrustimirsdar/customerreviewpost/internal/middleware"
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messages}
}

// List returns a complaint's thread oldest first
// GET /functions/v1/complaint-messages?complaint_id=, GET /api/complaints/:id/messages
func (h *MessageHandler) List(c *gin.Context) {
	complaintID := c.Param("id")
	if complaintID == "" {
		complaintID = c.Query("complaint_id")
	}

	messages, err := h.messageService.List(c.Request.Context(), middleware.GetCaller(c), complaintID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"success": true, "messages": messages})
}

// Append adds a message to a complaint's thread
// POST /functions/v1/complaint-messages, POST /api/complaints/:id/messages
func (h *MessageHandler) Append(c *gin.Context) {
	var req services.AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid JSON body")
		return
	}
	if id := c.Param("id"); id != "" {
		req.ComplaintID = id
	}

	message, err := h.messageService.Append(c.Request.Context(), middleware.GetCaller(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"success": true, "message": message})
}
