package emails

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alera-fm/alera-backend/internal/repo"
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Enqueue(ctx context.Context, email *models.EmailQueue) error {
	return r.DB(ctx).Create(email).Error
}

// ClaimDue leases up to limit pending emails whose scheduled time has passed, oldest
// schedule first. Rows held by another dispatcher are skipped.
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.EmailQueue, error) {
	var rows []models.EmailQueue
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND scheduled_at <= ?", enums.EmailStatusPending, now).
			Where("claimed_until IS NULL OR claimed_until < ?", now).
			Order("scheduled_at ASC").
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		until := now.Add(lease)
		if err := tx.Model(&models.EmailQueue{}).
			Where("id IN ?", ids).
			Update("claimed_until", until).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].ClaimedUntil = &until
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return r.DB(ctx).Model(&models.EmailQueue{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.EmailStatusSent,
			"sent_at":       sentAt,
			"attempts":      gorm.Expr("attempts + 1"),
			"last_error":    nil,
			"claimed_until": nil,
		}).Error
}

// MarkAttemptFailed records a delivery failure. The email stays pending for the next
// cycle unless terminal is set, in which case it is parked as failed.
func (r *Repository) MarkAttemptFailed(ctx context.Context, id uuid.UUID, lastError string, terminal bool) error {
	status := enums.EmailStatusPending
	if terminal {
		status = enums.EmailStatusFailed
	}
	return r.DB(ctx).Model(&models.EmailQueue{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"attempts":      gorm.Expr("attempts + 1"),
			"last_error":    lastError,
			"claimed_until": nil,
		}).Error
}
