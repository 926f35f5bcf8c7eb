package scans

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alera-fm/alera-backend/internal/repo"
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	"github.com/alera-fm/alera-backend/pkg/pagination"
)

var (
	ErrScanNotFound    = errors.New("audio scan not found")
	ErrReleaseNotFound = errors.New("release not found")
	ErrTrackNotFound   = errors.New("track not found")
)

// Completion is the terminal outcome written onto a scan record.
type Completion struct {
	Status        enums.ScanStatus
	Passed        bool
	Confidence    decimal.NullDecimal
	ModelVersion  *string
	FlaggedReason *string
	ErrorMessage  *string
}

// Review is an admin verdict on a flagged scan.
type Review struct {
	Decision   enums.AdminDecision
	Notes      *string
	ReviewedBy uuid.UUID
	ReviewedAt time.Time
}

// ReleaseScanChange reports the aggregate before and after a refresh.
type ReleaseScanChange struct {
	ReleaseID uuid.UUID
	ArtistID  uuid.UUID
	Previous  *enums.ReleaseScanStatus
	Current   *enums.ReleaseScanStatus
}

// Changed reports whether the refresh wrote a different value.
func (c ReleaseScanChange) Changed() bool {
	switch {
	case c.Previous == nil && c.Current == nil:
		return false
	case c.Previous == nil || c.Current == nil:
		return true
	default:
		return *c.Previous != *c.Current
	}
}

// Repository persists audio scan records and the release rollup derived from them.
// Methods taking a tx run on it when non-nil.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// LockRelease loads a release with a row lock held until tx ends.
func (r *Repository) LockRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) (*models.Release, error) {
	var release models.Release
	err := r.Conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", releaseID).
		Take(&release).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReleaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *Repository) FindTrack(ctx context.Context, tx *gorm.DB, releaseID, trackID uuid.UUID) (*models.Track, error) {
	var track models.Track
	err := r.Conn(ctx, tx).Where("id = ? AND release_id = ?", trackID, releaseID).Take(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	return &track, nil
}

func (r *Repository) SetTrackAudioURL(ctx context.Context, tx *gorm.DB, trackID uuid.UUID, audioURL string) error {
	return r.Conn(ctx, tx).Model(&models.Track{}).Where("id = ?", trackID).Update("audio_url", audioURL).Error
}

// Replace removes earlier scans of the same (release, track) and inserts rec.
func (r *Repository) Replace(ctx context.Context, tx *gorm.DB, rec *models.AudioScanResult) error {
	conn := r.Conn(ctx, tx)
	del := conn.Where("release_id = ?", rec.ReleaseID)
	if rec.TrackID == nil {
		del = del.Where("track_id IS NULL")
	} else {
		del = del.Where("track_id = ?", *rec.TrackID)
	}
	if err := del.Delete(&models.AudioScanResult{}).Error; err != nil {
		return err
	}
	return conn.Create(rec).Error
}

// AttachVendorJob records the vendor job id and moves a pending scan to processing.
func (r *Repository) AttachVendorJob(ctx context.Context, tx *gorm.DB, scanID int64, jobID string) (bool, error) {
	res := r.Conn(ctx, tx).Model(&models.AudioScanResult{}).
		Where("id = ? AND status = ?", scanID, enums.ScanStatusPending).
		Updates(map[string]any{
			"vendor_job_id": jobID,
			"status":        enums.ScanStatusProcessing,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) FindByID(ctx context.Context, tx *gorm.DB, scanID int64) (*models.AudioScanResult, error) {
	var rec models.AudioScanResult
	err := r.Conn(ctx, tx).Where("id = ?", scanID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByRelease returns a release's scans oldest first.
func (r *Repository) ListByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]models.AudioScanResult, error) {
	var rows []models.AudioScanResult
	err := r.Conn(ctx, tx).
		Where("release_id = ?", releaseID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ClaimOutstanding leases up to limit pending/processing scans, oldest first.
// Rows leased by another worker, or locked by one mid-claim, are skipped.
func (r *Repository) ClaimOutstanding(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.AudioScanResult, error) {
	var rows []models.AudioScanResult
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status IN ?", enums.OutstandingScanStatuses).
			Where("claimed_until IS NULL OR claimed_until < ?", now).
			Order("created_at ASC").
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]int64, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		until := now.Add(lease)
		if err := tx.Model(&models.AudioScanResult{}).
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

// ReleaseClaim drops the lease so the next cycle can pick the scan up again.
func (r *Repository) ReleaseClaim(ctx context.Context, scanID int64) error {
	return r.DB(ctx).Model(&models.AudioScanResult{}).
		Where("id = ?", scanID).
		Update("claimed_until", nil).Error
}

// Complete writes a terminal outcome. It is a no-op returning false when the scan
// is already terminal, which keeps repeated polls idempotent.
func (r *Repository) Complete(ctx context.Context, tx *gorm.DB, scanID int64, c Completion) (bool, error) {
	if !c.Status.IsTerminal() {
		return false, errors.New("completion status must be terminal")
	}
	res := r.Conn(ctx, tx).Model(&models.AudioScanResult{}).
		Where("id = ? AND status IN ?", scanID, enums.OutstandingScanStatuses).
		Updates(map[string]any{
			"status":         c.Status,
			"passed":         c.Passed,
			"confidence":     c.Confidence,
			"model_version":  c.ModelVersion,
			"flagged_reason": c.FlaggedReason,
			"error_message":  c.ErrorMessage,
			"claimed_until":  nil,
		})
	return res.RowsAffected == 1, res.Error
}

// ApplyReview annotates a flagged, not yet reviewed scan. The status never changes.
func (r *Repository) ApplyReview(ctx context.Context, tx *gorm.DB, scanID int64, review Review) (bool, error) {
	res := r.Conn(ctx, tx).Model(&models.AudioScanResult{}).
		Where("id = ? AND status = ? AND admin_reviewed = ?", scanID, enums.ScanStatusFlagged, false).
		Updates(map[string]any{
			"admin_reviewed": true,
			"admin_decision": review.Decision,
			"admin_notes":    review.Notes,
			"reviewed_by":    review.ReviewedBy,
			"reviewed_at":    review.ReviewedAt,
		})
	return res.RowsAffected == 1, res.Error
}

// ListPendingReviews pages through flagged scans awaiting review, oldest first.
func (r *Repository) ListPendingReviews(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.AudioScanResult, error) {
	query := r.DB(ctx).
		Where("status = ? AND admin_reviewed = ?", enums.ScanStatusFlagged, false)
	if cursor != nil {
		lastID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, err
		}
		query = query.Where("(created_at > ?) OR (created_at = ? AND id > ?)", cursor.CreatedAt, cursor.CreatedAt, lastID)
	}

	var rows []models.AudioScanResult
	err := query.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// RefreshReleaseScanStatus recomputes and stores a release's audio_scan_status
// while holding the release row lock, so concurrent completions serialize.
func (r *Repository) RefreshReleaseScanStatus(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) (ReleaseScanChange, error) {
	if tx == nil {
		return ReleaseScanChange{}, errors.New("transaction required")
	}
	release, err := r.LockRelease(ctx, tx, releaseID)
	if err != nil {
		return ReleaseScanChange{}, err
	}
	records, err := r.ListByRelease(ctx, tx, releaseID)
	if err != nil {
		return ReleaseScanChange{}, err
	}

	change := ReleaseScanChange{ReleaseID: release.ID, ArtistID: release.ArtistID, Previous: release.AudioScanStatus}
	if status, ok := AggregateReleaseScanStatus(records); ok {
		change.Current = &status
	}
	if !change.Changed() {
		return change, nil
	}

	err = tx.WithContext(ctx).Model(&models.Release{}).
		Where("id = ?", releaseID).
		Update("audio_scan_status", change.Current).Error
	return change, err
}

func scanCursor(rec models.AudioScanResult) pagination.Cursor {
	return pagination.Cursor{CreatedAt: rec.CreatedAt, ID: strconv.FormatInt(rec.ID, 10)}
}
