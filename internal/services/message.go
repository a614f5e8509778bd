package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"gorm.io/gorm"
)

type AppendMessageRequest struct {
	ComplaintID string `json:"complaint_id"`
	MessageText string `json:"message_text"`
	SenderRole  string `json:"sender_role"`
}

// MessageService manages the per-complaint conversation thread.
type MessageService struct {
	db     *gorm.DB
	events *EventHub
	now    func() time.Time
}

func NewMessageService(db *gorm.DB, events *EventHub) *MessageService {
	return &MessageService{db: db, events: events, now: time.Now}
}

// List returns a complaint's messages oldest first. An unknown complaint
// yields an empty list.
func (s *MessageService) List(ctx context.Context, caller *Caller, complaintID string) ([]models.ComplaintMessage, error) {
	complaintID = strings.TrimSpace(complaintID)
	if complaintID == "" {
		return nil, response.NewValidationError("complaint_id is required")
	}

	messages := []models.ComplaintMessage{}

	if !caller.SeesAll() {
		var complaint models.Complaint
		err := s.db.WithContext(ctx).Select("id", "user_id").First(&complaint, "id = ?", complaintID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !caller.Owns(&complaint)) {
			return messages, nil
		}
		if err != nil {
			return nil, response.NewUpstreamError(err)
		}
	}

	if err := s.db.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, response.NewUpstreamError(fmt.Errorf("failed to list messages: %w", err))
	}
	return messages, nil
}

// Append adds one message to a complaint's thread. An admin sender_role
// requires a verified admin caller.
func (s *MessageService) Append(ctx context.Context, caller *Caller, req *AppendMessageRequest) (*models.ComplaintMessage, error) {
	complaintID := strings.TrimSpace(req.ComplaintID)
	text := strings.TrimSpace(req.MessageText)
	role := strings.TrimSpace(req.SenderRole)

	if complaintID == "" || text == "" || role == "" {
		return nil, response.NewValidationError("complaint_id, message_text and sender_role are required")
	}
	if !models.IsValidSenderRole(role) {
		return nil, response.NewValidationError("sender_role must be 'user' or 'admin'")
	}
	if role == models.SenderAdmin && !caller.IsAdmin() {
		return nil, response.NewForbidden("Only administrators can post admin messages")
	}

	var complaint models.Complaint
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&complaint, "id = ?", complaintID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("Complaint not found")
		}
		return nil, response.NewUpstreamError(err)
	}
	if !caller.CanSee(&complaint) {
		return nil, response.NewNotFound("Complaint not found")
	}

	msg := &models.ComplaintMessage{
		ComplaintID: complaintID,
		MessageText: text,
		SenderRole:  role,
		CreatedAt:   s.now(),
	}
	if caller != nil && !caller.Anonymous {
		msg.SenderID = caller.UserID
	}

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, response.NewUpstreamError(fmt.Errorf("failed to save message: %w", err))
	}

	MessagesAppended.WithLabelValues(role).Inc()
	logger.Debug().Str("complaint_id", complaintID).Str("sender_role", role).Msg("[Message] message appended")

	if s.events != nil {
		s.events.Publish(Event{
			Type:        EventMessageCreated,
			ComplaintID: complaintID,
			SenderRole:  role,
			OwnerID:     complaint.UserID,
		})
	}
	return msg, nil
}

// Counts returns the number of messages per complaint for the given ids.
// Complaints the caller cannot see report zero, as their threads do in List.
func (s *MessageService) Counts(ctx context.Context, caller *Caller, complaintIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(complaintIDs))
	for _, id := range complaintIDs {
		counts[id] = 0
	}

	visible := complaintIDs
	if !caller.SeesAll() {
		visible = nil
		if caller.UserID != nil && len(complaintIDs) > 0 {
			if err := s.db.WithContext(ctx).Model(&models.Complaint{}).
				Where("id IN ? AND user_id = ?", complaintIDs, *caller.UserID).
				Pluck("id", &visible).Error; err != nil {
				return nil, response.NewUpstreamError(err)
			}
		}
	}
	if len(visible) == 0 {
		return counts, nil
	}

	var rows []struct {
		ComplaintID string
		Total       int64
	}
	if err := s.db.WithContext(ctx).Model(&models.ComplaintMessage{}).
		Select("complaint_id, COUNT(*) AS total").
		Where("complaint_id IN ?", visible).
		Group("complaint_id").
		Scan(&rows).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}
	for _, r := range rows {
		counts[r.ComplaintID] = r.Total
	}
	return counts, nil
}
