package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alera-fm/alera-backend/pkg/enums"
)

// EmailQueue holds scheduled transactional emails until the dispatcher sends them.
type EmailQueue struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey"`
	UserID       *uuid.UUID        `gorm:"column:user_id;type:uuid"`
	ToEmail      string            `gorm:"column:to_email;not null"`
	FromEmail    *string           `gorm:"column:from_email"`
	Subject      string            `gorm:"column:subject;not null"`
	HTMLBody     string            `gorm:"column:html_body;not null"`
	TextBody     *string           `gorm:"column:text_body"`
	Status       enums.EmailStatus `gorm:"column:status;type:email_status;not null;default:'pending'"`
	ScheduledAt  time.Time         `gorm:"column:scheduled_at;not null"`
	Attempts     int               `gorm:"column:attempts;not null;default:0"`
	LastError    *string           `gorm:"column:last_error"`
	ClaimedUntil *time.Time        `gorm:"column:claimed_until"`
	SentAt       *time.Time        `gorm:"column:sent_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (EmailQueue) TableName() string {
	return "email_queue"
}

func (e *EmailQueue) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
