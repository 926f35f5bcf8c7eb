// Package payloads holds the typed data carried inside outbox envelopes.
package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alera-fm/alera-backend/pkg/enums"
)

// AudioScanCompletedEvent is emitted when a scan reaches a terminal state.
type AudioScanCompletedEvent struct {
	ScanID       int64               `json:"scan_id"`
	ReleaseID    uuid.UUID           `json:"release_id"`
	TrackID      *uuid.UUID          `json:"track_id,omitempty"`
	Status       enums.ScanStatus    `json:"status"`
	Passed       bool                `json:"passed"`
	Confidence   decimal.NullDecimal `json:"confidence"`
	ModelVersion string              `json:"model_version,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	TimedOut     bool                `json:"timed_out"`
}

type AudioScanReviewedEvent struct {
	ScanID     int64               `json:"scan_id"`
	ReleaseID  uuid.UUID           `json:"release_id"`
	Decision   enums.AdminDecision `json:"decision"`
	ReviewedBy uuid.UUID           `json:"reviewed_by"`
	ReviewedAt time.Time           `json:"reviewed_at"`
}

// ReleaseScanStatusChangedEvent drives "scan flagged" and "scan passed" notifications.
type ReleaseScanStatusChangedEvent struct {
	ReleaseID uuid.UUID                `json:"release_id"`
	ArtistID  uuid.UUID                `json:"artist_id"`
	Previous  *enums.ReleaseScanStatus `json:"previous,omitempty"`
	Current   enums.ReleaseScanStatus  `json:"current"`
}

type ReleaseSubmittedForReviewEvent struct {
	ReleaseID   uuid.UUID `json:"release_id"`
	ArtistID    uuid.UUID `json:"artist_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ReleaseStatusChangedEvent carries admin workflow transitions such as approval or takedown.
type ReleaseStatusChangedEvent struct {
	ReleaseID uuid.UUID           `json:"release_id"`
	ArtistID  uuid.UUID           `json:"artist_id"`
	Previous  enums.ReleaseStatus `json:"previous"`
	Current   enums.ReleaseStatus `json:"current"`
	ChangedBy uuid.UUID           `json:"changed_by"`
}
