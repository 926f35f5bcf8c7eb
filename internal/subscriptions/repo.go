package subscriptions

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
)

// ErrNotFound is returned when a user has no subscription row.
var ErrNotFound = errors.New("subscription not found")

// Repository reads subscription rows and maintains the AI usage ledger.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.DB(ctx).Create(sub).Error
}

func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.DB(ctx).Where("user_id = ?", userID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CountReleases counts every release the artist has created, in any status.
func (r *Repository) CountReleases(ctx context.Context, artistID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Release{}).Where("artist_id = ?", artistID).Count(&count).Error
	return count, err
}

// CountPendingReleases counts drafts and releases under review.
func (r *Repository) CountPendingReleases(ctx context.Context, artistID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Release{}).
		Where("artist_id = ? AND status IN ?", artistID, enums.PendingReleaseStatuses).
		Count(&count).Error
	return count, err
}

// SumTokensSince totals ledger entries dated on or after since.
func (r *Repository) SumTokensSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	err := r.DB(ctx).Model(&models.AIUsage{}).
		Select("COALESCE(SUM(tokens_used), 0)").
		Where("user_id = ? AND usage_date >= ?", userID, since).
		Scan(&total).Error
	return total, err
}

// AddTokens adds tokens to the user's ledger row for day, creating it when absent.
func (r *Repository) AddTokens(ctx context.Context, userID uuid.UUID, day time.Time, tokens int64) error {
	row := models.AIUsage{UserID: userID, UsageDate: day, TokensUsed: tokens}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "usage_date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"tokens_used": gorm.Expr("ai_usage.tokens_used + excluded.tokens_used"),
			"updated_at":  gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&row).Error
}
