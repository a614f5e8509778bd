package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dhrustimirsdar/customerreviewpost/internal/middleware"
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SSEHandler streams live complaint and message events.
type SSEHandler struct {
	hub *services.EventHub
}

func NewSSEHandler(hub *services.EventHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// StreamEvents keeps the connection open and writes one data frame per
// event. Callers who only see their own complaints only get those events.
// GET /api/events
func (h *SSEHandler) StreamEvents(c *gin.Context) {
	caller := middleware.GetCaller(c)
	var ownerID *uint
	if !caller.SeesAll() {
		ownerID = caller.UserID
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID, ownerID)
	defer h.hub.Unsubscribe(clientID)

	log := logger.Component("sse").With().Str("client_id", clientID).Logger()
	log.Info().Int("total", h.hub.ClientCount()).Msg("client connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Str("event", event.Type).Msg("marshal failed")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			log.Info().Msg("client disconnected")
			return false
		}
	})
}
