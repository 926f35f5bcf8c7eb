package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alera-fm/alera-backend/pkg/enums"
)

// AudioScanResult is one AI-content-detection attempt for a single track.
type AudioScanResult struct {
	ID            int64                `gorm:"primaryKey;autoIncrement"`
	ReleaseID     uuid.UUID            `gorm:"column:release_id;type:uuid;not null;index"`
	TrackID       *uuid.UUID           `gorm:"column:track_id;type:uuid"`
	VendorJobID   *string              `gorm:"column:vendor_job_id"`
	Status        enums.ScanStatus     `gorm:"column:status;type:scan_status;not null;default:'pending'"`
	Passed        bool                 `gorm:"column:passed;not null;default:false"`
	Confidence    decimal.NullDecimal  `gorm:"column:confidence;type:numeric(5,2)"`
	ModelVersion  *string              `gorm:"column:model_version"`
	FlaggedReason *string              `gorm:"column:flagged_reason"`
	ErrorMessage  *string              `gorm:"column:error_message"`
	AdminReviewed bool                 `gorm:"column:admin_reviewed;not null;default:false"`
	AdminDecision *enums.AdminDecision `gorm:"column:admin_decision;type:admin_decision"`
	AdminNotes    *string              `gorm:"column:admin_notes"`
	ReviewedBy    *uuid.UUID           `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt    *time.Time           `gorm:"column:reviewed_at"`
	ClaimedUntil  *time.Time           `gorm:"column:claimed_until"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// ApprovedByAdmin reports whether a reviewer cleared this record's flag.
func (s AudioScanResult) ApprovedByAdmin() bool {
	return s.AdminReviewed && s.AdminDecision != nil && *s.AdminDecision == enums.AdminDecisionApproved
}
