package scans

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
)

// ScanDTO is the API shape of a scan record.
type ScanDTO struct {
	ID            int64                `json:"id"`
	ReleaseID     uuid.UUID            `json:"release_id"`
	TrackID       *uuid.UUID           `json:"track_id,omitempty"`
	VendorJobID   *string              `json:"vendor_job_id,omitempty"`
	Status        enums.ScanStatus     `json:"status"`
	Passed        bool                 `json:"passed"`
	Confidence    *decimal.Decimal     `json:"confidence,omitempty"`
	ModelVersion  *string              `json:"model_version,omitempty"`
	FlaggedReason *string              `json:"flagged_reason,omitempty"`
	ErrorMessage  *string              `json:"error_message,omitempty"`
	AdminReviewed bool                 `json:"admin_reviewed"`
	AdminDecision *enums.AdminDecision `json:"admin_decision,omitempty"`
	AdminNotes    *string              `json:"admin_notes,omitempty"`
	ReviewedBy    *uuid.UUID           `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time           `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func FromModel(m models.AudioScanResult) ScanDTO {
	dto := ScanDTO{
		ID:            m.ID,
		ReleaseID:     m.ReleaseID,
		TrackID:       m.TrackID,
		VendorJobID:   m.VendorJobID,
		Status:        m.Status,
		Passed:        m.Passed,
		ModelVersion:  m.ModelVersion,
		FlaggedReason: m.FlaggedReason,
		ErrorMessage:  m.ErrorMessage,
		AdminReviewed: m.AdminReviewed,
		AdminDecision: m.AdminDecision,
		AdminNotes:    m.AdminNotes,
		ReviewedBy:    m.ReviewedBy,
		ReviewedAt:    m.ReviewedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Confidence.Valid {
		c := m.Confidence.Decimal
		dto.Confidence = &c
	}
	return dto
}

func FromModels(rows []models.AudioScanResult) []ScanDTO {
	out := make([]ScanDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}
