package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SenderUser  = "user"
	SenderAdmin = "admin"
)

// ComplaintMessage is one entry in a complaint's conversation thread.
// Messages are append-only.
type ComplaintMessage struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ComplaintID string    `gorm:"type:varchar(36);not null;index" json:"complaint_id"`
	MessageText string    `gorm:"type:text;not null" json:"message_text"`
	SenderRole  string    `gorm:"size:10;not null" json:"sender_role"`
	SenderID    *uint     `json:"sender_id,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (ComplaintMessage) TableName() string { return "complaint_messages" }

// BeforeCreate assigns a time-ordered UUIDv7 so "created_at, id" keeps
// insertion order when two messages share a timestamp.
func (m *ComplaintMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	m.ID = id.String()
	return nil
}

func IsValidSenderRole(role string) bool {
	return role == SenderUser || role == SenderAdmin
}
