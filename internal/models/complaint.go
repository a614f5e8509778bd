package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending  = "Pending"
	StatusResolved = "Resolved"

	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"

	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

// Complaint is a single customer submission plus its classification.
// Classifier fields are written once at intake; only Status, ResolvedAt
// and FeedbackHelpful change afterwards.
type Complaint struct {
	ID                string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ComplaintText     string     `gorm:"type:text;not null" json:"complaint_text"`
	Category          string     `gorm:"size:100;index" json:"category"`
	Sentiment         string     `gorm:"size:20;index" json:"sentiment"`
	Priority          string     `gorm:"size:20;index" json:"priority"`
	AIResponse        string     `gorm:"type:text" json:"ai_response"`
	AIExplanation     string     `gorm:"type:text" json:"ai_explanation"`
	AIConfidenceScore int        `json:"ai_confidence_score"`
	Status            string     `gorm:"size:20;default:Pending;index" json:"status"`
	FeedbackHelpful   *bool      `json:"feedback_helpful"`
	PhoneNumber       *string    `gorm:"size:50" json:"phone_number"`
	TrackingID        *string    `gorm:"size:100" json:"tracking_id"`
	UserEmail         *string    `gorm:"size:255" json:"user_email"`
	UserID            *uint      `gorm:"index" json:"user_id"`
	LLMProvider       string     `gorm:"size:50" json:"llm_provider"`
	LLMModel          string     `gorm:"size:100" json:"llm_model"`
	ResponseDueAt     *time.Time `json:"response_due_at"`
	ResolvedAt        *time.Time `json:"resolved_at"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Messages []ComplaintMessage `gorm:"foreignKey:ComplaintID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Complaint) TableName() string { return "complaints" }

func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func IsValidStatus(s string) bool {
	return s == StatusPending || s == StatusResolved
}

func IsValidPriority(p string) bool {
	return PriorityRank(p) > 0
}

func IsValidSentiment(s string) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// PriorityRank orders priorities Low < Medium < High; unknown values rank 0.
func PriorityRank(p string) int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}
