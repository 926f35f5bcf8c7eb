package models

import (
	"time"

	"github.com/google/uuid"
)

// AIUsage is the additive per-day token ledger.
type AIUsage struct {
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	UsageDate  time.Time `gorm:"column:usage_date;primaryKey"`
	TokensUsed int64     `gorm:"column:tokens_used;not null;default:0"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (AIUsage) TableName() string {
	return "ai_usage"
}
