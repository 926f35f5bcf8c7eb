package releases

import (
	"time"

	"github.com/google/uuid"

	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
)

// ReleaseDTO exposes a release and its tracks in API responses.
type ReleaseDTO struct {
	ID              uuid.UUID                `json:"id"`
	ArtistID        uuid.UUID                `json:"artist_id"`
	Title           string                   `json:"title"`
	ReleaseType     enums.ReleaseType        `json:"release_type"`
	Status          enums.ReleaseStatus      `json:"status"`
	AudioScanStatus *enums.ReleaseScanStatus `json:"audio_scan_status,omitempty"`
	SubmittedAt     *time.Time               `json:"submitted_at,omitempty"`
	Tracks          []TrackDTO               `json:"tracks,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

type TrackDTO struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	TrackNumber int       `json:"track_number"`
	AudioURL    *string   `json:"audio_url,omitempty"`
}

// CreateInput is the artist-supplied data for a new release.
type CreateInput struct {
	Title       string
	ReleaseType enums.ReleaseType
	TrackTitles []string
}

func FromModel(m *models.Release, tracks []models.Track) *ReleaseDTO {
	if m == nil {
		return nil
	}
	dto := &ReleaseDTO{
		ID:              m.ID,
		ArtistID:        m.ArtistID,
		Title:           m.Title,
		ReleaseType:     m.ReleaseType,
		Status:          m.Status,
		AudioScanStatus: m.AudioScanStatus,
		SubmittedAt:     m.SubmittedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for _, t := range tracks {
		dto.Tracks = append(dto.Tracks, TrackDTO{
			ID:          t.ID,
			Title:       t.Title,
			TrackNumber: t.TrackNumber,
			AudioURL:    t.AudioURL,
		})
	}
	return dto
}
