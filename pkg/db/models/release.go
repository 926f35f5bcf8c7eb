package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alera-fm/alera-backend/pkg/enums"
)

// Release is the distribution submission an artist moves through review.
type Release struct {
	ID              uuid.UUID                `gorm:"type:uuid;primaryKey"`
	ArtistID        uuid.UUID                `gorm:"column:artist_id;type:uuid;not null;index"`
	Title           string                   `gorm:"column:title;not null"`
	ReleaseType     enums.ReleaseType        `gorm:"column:release_type;type:release_type;not null"`
	Status          enums.ReleaseStatus      `gorm:"column:status;type:release_status;not null;default:'draft'"`
	AudioScanStatus *enums.ReleaseScanStatus `gorm:"column:audio_scan_status;type:release_scan_status"`
	SubmittedAt     *time.Time               `gorm:"column:submitted_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Release) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

type Track struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReleaseID   uuid.UUID `gorm:"column:release_id;type:uuid;not null;index"`
	Title       string    `gorm:"column:title;not null"`
	TrackNumber int       `gorm:"column:track_number;not null;default:1"`
	AudioURL    *string   `gorm:"column:audio_url"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Track) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
