package releases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alera-fm/alera-backend/internal/repo"
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	"github.com/alera-fm/alera-backend/pkg/pagination"
)

var ErrNotFound = errors.New("release not found")

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts the release and its tracks, numbering tracks in order.
func (r *Repository) Create(ctx context.Context, tx *gorm.DB, release *models.Release, tracks []models.Track) error {
	conn := r.Conn(ctx, tx)
	if err := conn.Create(release).Error; err != nil {
		return err
	}
	if len(tracks) == 0 {
		return nil
	}
	for i := range tracks {
		tracks[i].ReleaseID = release.ID
		tracks[i].TrackNumber = i + 1
	}
	return conn.Create(&tracks).Error
}

func (r *Repository) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Release, error) {
	return r.find(r.Conn(ctx, tx), id)
}

// LockByID loads the release holding a row lock until tx ends.
func (r *Repository) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Release, error) {
	return r.find(r.Conn(ctx, tx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *Repository) find(conn *gorm.DB, id uuid.UUID) (*models.Release, error) {
	var release models.Release
	err := conn.Where("id = ?", id).Take(&release).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *Repository) ListTracks(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]models.Track, error) {
	var tracks []models.Track
	err := r.Conn(ctx, tx).Where("release_id = ?", releaseID).Order("track_number ASC").Find(&tracks).Error
	return tracks, err
}

// ListByArtist returns the artist's releases newest first.
func (r *Repository) ListByArtist(ctx context.Context, artistID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Release, error) {
	query := r.DB(ctx).Where("artist_id = ?", artistID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Release
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.ReleaseStatus, submittedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if submittedAt != nil {
		updates["submitted_at"] = *submittedAt
	}
	return r.Conn(ctx, tx).Model(&models.Release{}).Where("id = ?", id).Updates(updates).Error
}
