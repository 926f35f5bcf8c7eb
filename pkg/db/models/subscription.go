package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alera-fm/alera-backend/pkg/enums"
)

// Subscription is the single plan row per user.
type Subscription struct {
	ID                    uuid.UUID                `gorm:"type:uuid;primaryKey"`
	UserID                uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Tier                  enums.SubscriptionTier   `gorm:"column:tier;type:subscription_tier;not null;default:'trial'"`
	Status                enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	TrialExpiresAt        *time.Time               `gorm:"column:trial_expires_at"`
	SubscriptionExpiresAt *time.Time               `gorm:"column:subscription_expires_at"`
	CreatedAt             time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
