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

type SubmitComplaintRequest struct {
	ComplaintText  string  `json:"complaint_text"`
	PhoneNumber    *string `json:"phone_number"`
	TrackingID     *string `json:"tracking_id"`
	RecaptchaToken string  `json:"recaptcha_token"`
}

// UpdateComplaintRequest carries a partial update. Nil fields are left as is.
type UpdateComplaintRequest struct {
	ID              string  `json:"id"`
	Status          *string `json:"status"`
	FeedbackHelpful *bool   `json:"feedback_helpful"`
}

// RequestMeta is request context recorded with audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type ComplaintService struct {
	db         *gorm.DB
	classifier Classifier
	verifier   BotVerifier
	sla        *SLACalendar
	events     *EventHub
	queue      TaskQueue
	audit      *SystemLogService
	now        func() time.Time
}

// NewComplaintService wires the intake and management operations. verifier,
// sla, events, queue and audit are optional.
func NewComplaintService(db *gorm.DB, classifier Classifier, verifier BotVerifier, sla *SLACalendar,
	events *EventHub, queue TaskQueue, audit *SystemLogService) *ComplaintService {
	return &ComplaintService{
		db:         db,
		classifier: classifier,
		verifier:   verifier,
		sla:        sla,
		events:     events,
		queue:      queue,
		audit:      audit,
		now:        time.Now,
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Submit classifies and stores a new complaint. Nothing is persisted unless
// classification and the insert both succeed.
func (s *ComplaintService) Submit(ctx context.Context, caller *Caller, req *SubmitComplaintRequest, meta RequestMeta) (*models.Complaint, error) {
	text := strings.TrimSpace(req.ComplaintText)
	if text == "" {
		return nil, response.NewValidationError("complaint_text is required")
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, req.RecaptchaToken, meta.IP); err != nil {
			return nil, err
		}
	}

	result, err := s.classifier.Classify(ctx, text)
	if err == nil {
		err = result.Validate()
	}
	if err != nil {
		logger.Error().Err(err).Msg("[Complaint] classification failed")
		return nil, response.NewUpstreamError(err)
	}

	now := s.now()
	complaint := &models.Complaint{
		ComplaintText:     text,
		Category:          result.Category,
		Sentiment:         result.Sentiment,
		Priority:          result.Priority,
		AIResponse:        result.Response,
		AIExplanation:     result.Explanation,
		AIConfidenceScore: result.Confidence,
		Status:            models.StatusPending,
		PhoneNumber:       trimOptional(req.PhoneNumber),
		TrackingID:        trimOptional(req.TrackingID),
		LLMProvider:       result.Provider,
		LLMModel:          result.Model,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if caller != nil && !caller.Anonymous {
		complaint.UserID = caller.UserID
		if caller.Email != "" {
			email := caller.Email
			complaint.UserEmail = &email
		}
	}
	if s.sla != nil {
		due := s.sla.DueDate(now, complaint.Priority)
		complaint.ResponseDueAt = &due
	}

	if err := s.db.WithContext(ctx).Create(complaint).Error; err != nil {
		return nil, response.NewUpstreamError(fmt.Errorf("failed to save complaint: %w", err))
	}

	ComplaintsSubmitted.WithLabelValues(complaint.Priority, complaint.Sentiment).Inc()
	logger.Info().
		Str("complaint_id", complaint.ID).
		Str("priority", complaint.Priority).
		Str("category", complaint.Category).
		Msg("[Complaint] complaint submitted")

	s.afterCreate(complaint)
	return complaint, nil
}

func (s *ComplaintService) afterCreate(c *models.Complaint) {
	if s.events != nil {
		s.events.Publish(Event{
			Type:        EventComplaintCreated,
			ComplaintID: c.ID,
			Status:      c.Status,
			Priority:    c.Priority,
			OwnerID:     c.UserID,
		})
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(&NotifyTask{ComplaintID: c.ID, Priority: c.Priority}); err != nil {
			logger.Warn().Err(err).Str("complaint_id", c.ID).Msg("[Complaint] failed to enqueue notification")
		}
	}
}

// List returns complaints visible to the caller, newest first. status may
// be empty for no filter.
func (s *ComplaintService) List(ctx context.Context, caller *Caller, status string) ([]models.Complaint, error) {
	query := s.db.WithContext(ctx).Model(&models.Complaint{})

	if status != "" {
		if !models.IsValidStatus(status) {
			return nil, response.NewValidationError("status must be Pending or Resolved")
		}
		query = query.Where("status = ?", status)
	}

	if !caller.SeesAll() {
		if caller.UserID == nil {
			return []models.Complaint{}, nil
		}
		query = query.Where("user_id = ?", *caller.UserID)
	}

	complaints := []models.Complaint{}
	if err := query.Order("created_at DESC").Find(&complaints).Error; err != nil {
		return nil, response.NewUpstreamError(fmt.Errorf("failed to list complaints: %w", err))
	}
	return complaints, nil
}

// Get returns one complaint. Complaints the caller may not see are
// reported as not found.
func (s *ComplaintService) Get(ctx context.Context, caller *Caller, id string) (*models.Complaint, error) {
	if strings.TrimSpace(id) == "" {
		return nil, response.NewValidationError("id is required")
	}

	var complaint models.Complaint
	if err := s.db.WithContext(ctx).First(&complaint, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("Complaint not found")
		}
		return nil, response.NewUpstreamError(err)
	}
	if !caller.CanSee(&complaint) {
		return nil, response.NewNotFound("Complaint not found")
	}
	return &complaint, nil
}

// Update applies a partial update of status and/or feedback_helpful. Only
// supplied columns are written; classifier fields are never touched.
func (s *ComplaintService) Update(ctx context.Context, caller *Caller, req *UpdateComplaintRequest, meta RequestMeta) (*models.Complaint, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, response.NewValidationError("id is required")
	}
	if req.Status == nil && req.FeedbackHelpful == nil {
		return nil, response.NewValidationError("Nothing to update: provide status or feedback_helpful")
	}
	if req.Status != nil && !models.IsValidStatus(*req.Status) {
		return nil, response.NewValidationError("status must be Pending or Resolved")
	}
	if req.Status != nil && !caller.CanManage() {
		return nil, response.NewForbidden("Only administrators can change complaint status")
	}

	current, err := s.Get(ctx, caller, req.ID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Status != nil && *req.Status != current.Status {
		if current.Status == models.StatusResolved && *req.Status == models.StatusPending {
			return nil, response.NewValidationError("Resolved complaints cannot be reopened")
		}
		updates["status"] = *req.Status
		if *req.Status == models.StatusResolved {
			updates["resolved_at"] = s.now()
		}
	}
	if req.FeedbackHelpful != nil {
		updates["feedback_helpful"] = *req.FeedbackHelpful
	}

	if len(updates) > 0 {
		updates["updated_at"] = s.now()
		result := s.db.WithContext(ctx).Model(&models.Complaint{}).Where("id = ?", req.ID).Updates(updates)
		if result.Error != nil {
			return nil, response.NewUpstreamError(fmt.Errorf("failed to update complaint: %w", result.Error))
		}
		if result.RowsAffected == 0 {
			return nil, response.NewNotFound("Complaint not found")
		}
		for field := range updates {
			if field == "status" || field == "feedback_helpful" {
				ComplaintUpdates.WithLabelValues(field).Inc()
			}
		}
	}

	var updated models.Complaint
	if err := s.db.WithContext(ctx).First(&updated, "id = ?", req.ID).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}

	if _, changed := updates["status"]; changed || req.FeedbackHelpful != nil {
		s.afterUpdate(caller, &updated, updates, meta)
	}
	return &updated, nil
}

func (s *ComplaintService) afterUpdate(caller *Caller, c *models.Complaint, updates map[string]interface{}, meta RequestMeta) {
	if s.events != nil {
		s.events.Publish(Event{
			Type:        EventComplaintUpdated,
			ComplaintID: c.ID,
			Status:      c.Status,
			Priority:    c.Priority,
			OwnerID:     c.UserID,
		})
	}

	if s.audit == nil {
		return
	}
	var uid *uint
	who := "api-key client"
	if caller != nil && !caller.Anonymous {
		uid = caller.UserID
		who = caller.Email
	}
	fields := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if k != "updated_at" {
			fields[k] = v
		}
	}
	s.audit.Info(AuditEntry{
		Module:    "complaints",
		Action:    "update",
		Target:    c.ID,
		Message:   fmt.Sprintf("%s updated complaint %s", who, c.ID),
		UserID:    uid,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Extra:     fields,
	})
}
