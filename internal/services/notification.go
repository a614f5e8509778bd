package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/slack-go/slack"
	"gorm.io/gorm"
)

// NotificationService alerts staff in Slack about new complaints at or
// above the configured priority.
type NotificationService struct {
	db          *gorm.DB
	webhookURL  string
	minPriority string
	dashboard   string
}

func NewNotificationService(db *gorm.DB, cfg *config.NotificationConfig) *NotificationService {
	s := &NotificationService{db: db, minPriority: models.PriorityHigh}
	if cfg != nil {
		s.webhookURL = cfg.SlackWebhookURL
		s.dashboard = strings.TrimRight(cfg.DashboardURL, "/")
		if models.IsValidPriority(cfg.MinPriority) {
			s.minPriority = cfg.MinPriority
		}
	}
	return s
}

func (s *NotificationService) Enabled() bool {
	return s.webhookURL != ""
}

// ShouldNotify reports whether a complaint of this priority triggers an alert.
func (s *NotificationService) ShouldNotify(priority string) bool {
	return s.Enabled() && models.PriorityRank(priority) >= models.PriorityRank(s.minPriority)
}

// Process is the TaskProcessor for TaskTypeNotify.
func (s *NotificationService) Process(ctx context.Context, task *NotifyTask) error {
	if !s.Enabled() {
		NotificationsSent.WithLabelValues("skipped").Inc()
		return nil
	}

	var complaint models.Complaint
	if err := s.db.WithContext(ctx).First(&complaint, "id = ?", task.ComplaintID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotificationsSent.WithLabelValues("skipped").Inc()
			logger.Warnf("[Notification] complaint %s no longer exists", task.ComplaintID)
			return nil
		}
		return fmt.Errorf("load complaint: %w", err)
	}

	if !s.ShouldNotify(complaint.Priority) {
		NotificationsSent.WithLabelValues("skipped").Inc()
		return nil
	}

	if err := slack.PostWebhookContext(ctx, s.webhookURL, s.buildMessage(&complaint)); err != nil {
		NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("slack webhook: %w", err)
	}

	NotificationsSent.WithLabelValues("success").Inc()
	logger.Info().Str("complaint_id", complaint.ID).Str("priority", complaint.Priority).Msg("[Notification] Slack alert sent")
	return nil
}

func priorityEmoji(priority string) string {
	switch priority {
	case models.PriorityHigh:
		return ":red_circle:"
	case models.PriorityMedium:
		return ":large_yellow_circle:"
	}
	return ":large_green_circle:"
}

func (s *NotificationService) buildMessage(c *models.Complaint) *slack.WebhookMessage {
	text := c.ComplaintText
	if len([]rune(text)) > 280 {
		text = string([]rune(text)[:280]) + "..."
	}

	header := fmt.Sprintf("%s *New %s priority complaint* (%s, %s)", priorityEmoji(c.Priority), c.Priority, c.Category, c.Sentiment)
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*ID*\n"+c.ID, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Confidence*\n%d%%", c.AIConfidenceScore), false, false),
	}
	if c.ResponseDueAt != nil {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, "*Respond by*\n"+c.ResponseDueAt.Format("Mon Jan 2 15:04 MST"), false, false))
	}
	if c.TrackingID != nil && *c.TrackingID != "" {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, "*Tracking ID*\n"+*c.TrackingID, false, false))
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, header, false, false), nil, nil),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, ">"+strings.ReplaceAll(text, "\n", "\n>"), false, false), fields, nil),
	}
	if s.dashboard != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("<%s|Open dashboard>", s.dashboard), false, false)))
	}

	return &slack.WebhookMessage{
		Text:   fmt.Sprintf("New %s priority complaint: %s", c.Priority, c.Category),
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}
