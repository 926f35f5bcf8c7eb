package scans

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/metrics"
	"github.com/alera-fm/alera-backend/pkg/outbox"
	"github.com/alera-fm/alera-backend/pkg/outbox/payloads"
	"github.com/alera-fm/alera-backend/pkg/pagination"
)

type repository interface {
	LockRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) (*models.Release, error)
	FindTrack(ctx context.Context, tx *gorm.DB, releaseID, trackID uuid.UUID) (*models.Track, error)
	SetTrackAudioURL(ctx context.Context, tx *gorm.DB, trackID uuid.UUID, audioURL string) error
	Replace(ctx context.Context, tx *gorm.DB, rec *models.AudioScanResult) error
	AttachVendorJob(ctx context.Context, tx *gorm.DB, scanID int64, jobID string) (bool, error)
	FindByID(ctx context.Context, tx *gorm.DB, scanID int64) (*models.AudioScanResult, error)
	ListByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]models.AudioScanResult, error)
	Complete(ctx context.Context, tx *gorm.DB, scanID int64, c Completion) (bool, error)
	ApplyReview(ctx context.Context, tx *gorm.DB, scanID int64, review Review) (bool, error)
	ListPendingReviews(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.AudioScanResult, error)
	RefreshReleaseScanStatus(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) (ReleaseScanChange, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Submitter forwards audio to the detection vendor.
type Submitter interface {
	Submit(ctx context.Context, audioURL string) (string, error)
}

// ReviewInput is an admin verdict on a flagged scan.
type ReviewInput struct {
	ScanID     int64
	ReviewerID uuid.UUID
	Decision   enums.AdminDecision
	Notes      string
}

// Service owns the scan record lifecycle.
type Service interface {
	SubmitScan(ctx context.Context, releaseID uuid.UUID, trackID *uuid.UUID, audioURL string) (*models.AudioScanResult, error)
	CanSubmitRelease(ctx context.Context, releaseID uuid.UUID) (SubmissionDecision, error)
	ReviewScan(ctx context.Context, input ReviewInput) (*models.AudioScanResult, error)
	ListReleaseScans(ctx context.Context, releaseID uuid.UUID) ([]models.AudioScanResult, error)
	ListPendingReviews(ctx context.Context, params pagination.Params) (pagination.Page[models.AudioScanResult], error)
	// Complete closes an outstanding scan and refreshes its release. It reports
	// false when the scan was already terminal.
	Complete(ctx context.Context, scan models.AudioScanResult, c Completion, timedOut bool) (bool, error)
}

type ServiceParams struct {
	Repo              repository
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Logger            *logger.Logger
	Metrics           *metrics.ScanMetrics
	// Vendor may be nil; submissions then stay pending until the timeout closes them.
	Vendor Submitter
}

type service struct {
	repo    repository
	tx      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.ScanMetrics
	vendor  Submitter
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("scan repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.TransactionRunner,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		vendor:  params.Vendor,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) SubmitScan(ctx context.Context, releaseID uuid.UUID, trackID *uuid.UUID, audioURL string) (*models.AudioScanResult, error) {
	if releaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "release id is required")
	}
	audioURL = strings.TrimSpace(audioURL)
	if err := validateAudioURL(audioURL); err != nil {
		return nil, err
	}
	ctx = s.logg.WithReleaseID(ctx, releaseID.String())

	rec := &models.AudioScanResult{
		ReleaseID: releaseID,
		TrackID:   trackID,
		Status:    enums.ScanStatusPending,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.LockRelease(ctx, tx, releaseID); err != nil {
			return err
		}
		if trackID != nil {
			if _, err := s.repo.FindTrack(ctx, tx, releaseID, *trackID); err != nil {
				return err
			}
			if err := s.repo.SetTrackAudioURL(ctx, tx, *trackID, audioURL); err != nil {
				return err
			}
		}
		if err := s.repo.Replace(ctx, tx, rec); err != nil {
			return err
		}
		return s.refreshRelease(ctx, tx, releaseID)
	})
	if err != nil {
		return nil, mapRepoError(err, "create scan record")
	}

	ctx = s.logg.WithField(ctx, "scan_id", rec.ID)
	if s.vendor == nil {
		s.logg.Warn(ctx, "audio scanning not configured; scan left pending")
		return rec, nil
	}

	jobID, err := s.vendor.Submit(ctx, audioURL)
	if err != nil {
		s.metrics.IncVendorError("submit")
		s.logg.Error(ctx, "detection vendor submit failed; scan left pending", err)
		return rec, nil
	}

	attached, err := s.repo.AttachVendorJob(ctx, nil, rec.ID, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach vendor job")
	}
	if attached {
		rec.VendorJobID = &jobID
		rec.Status = enums.ScanStatusProcessing
	}
	s.logg.Info(s.logg.WithField(ctx, "vendor_job_id", jobID), "audio scan submitted")
	return rec, nil
}

func (s *service) CanSubmitRelease(ctx context.Context, releaseID uuid.UUID) (SubmissionDecision, error) {
	records, err := s.ListReleaseScans(ctx, releaseID)
	if err != nil {
		return SubmissionDecision{}, err
	}
	return EvaluateSubmission(records), nil
}

func (s *service) ListReleaseScans(ctx context.Context, releaseID uuid.UUID) ([]models.AudioScanResult, error) {
	if releaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "release id is required")
	}
	records, err := s.repo.ListByRelease(ctx, nil, releaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list release scans")
	}
	return records, nil
}

func (s *service) ReviewScan(ctx context.Context, input ReviewInput) (*models.AudioScanResult, error) {
	if input.ScanID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scan id is required")
	}
	if input.ReviewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviewer id is required")
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid decision %q", input.Decision)
	}

	review := Review{
		Decision:   input.Decision,
		ReviewedBy: input.ReviewerID,
		ReviewedAt: s.now(),
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		review.Notes = &notes
	}

	var reviewed *models.AudioScanResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rec, err := s.repo.FindByID(ctx, tx, input.ScanID)
		if err != nil {
			return err
		}
		if rec.Status != enums.ScanStatusFlagged {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "only flagged scans can be reviewed; scan is %s", rec.Status)
		}
		ok, err := s.repo.ApplyReview(ctx, tx, rec.ID, review)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "scan has already been reviewed")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAudioScanReviewed,
			AggregateType: enums.AggregateAudioScan,
			AggregateID:   strconv.FormatInt(rec.ID, 10),
			Actor:         &outbox.ActorRef{UserID: input.ReviewerID.String(), Role: string(enums.UserRoleAdmin)},
			Data: payloads.AudioScanReviewedEvent{
				ScanID:     rec.ID,
				ReleaseID:  rec.ReleaseID,
				Decision:   review.Decision,
				ReviewedBy: review.ReviewedBy,
				ReviewedAt: review.ReviewedAt,
			},
		}); err != nil {
			return err
		}

		reviewed, err = s.repo.FindByID(ctx, tx, rec.ID)
		return err
	})
	if err != nil {
		return nil, mapRepoError(err, "review scan")
	}
	return reviewed, nil
}

func (s *service) ListPendingReviews(ctx context.Context, params pagination.Params) (pagination.Page[models.AudioScanResult], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.AudioScanResult]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListPendingReviews(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return pagination.Page[models.AudioScanResult]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending reviews")
	}
	return pagination.Trim(rows, params.Limit, scanCursor), nil
}

func (s *service) Complete(ctx context.Context, scan models.AudioScanResult, c Completion, timedOut bool) (bool, error) {
	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.Complete(ctx, tx, scan.ID, c)
		if err != nil || !ok {
			return err
		}
		applied = true

		event := payloads.AudioScanCompletedEvent{
			ScanID:     scan.ID,
			ReleaseID:  scan.ReleaseID,
			TrackID:    scan.TrackID,
			Status:     c.Status,
			Passed:     c.Passed,
			Confidence: c.Confidence,
			TimedOut:   timedOut,
		}
		if c.ModelVersion != nil {
			event.ModelVersion = *c.ModelVersion
		}
		switch {
		case c.FlaggedReason != nil:
			event.Reason = *c.FlaggedReason
		case c.ErrorMessage != nil:
			event.Reason = *c.ErrorMessage
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAudioScanCompleted,
			AggregateType: enums.AggregateAudioScan,
			AggregateID:   strconv.FormatInt(scan.ID, 10),
			Data:          event,
		}); err != nil {
			return err
		}
		return s.refreshRelease(ctx, tx, scan.ReleaseID)
	})
	if err != nil {
		return false, err
	}
	if applied {
		s.metrics.IncOutcome(OutcomeLabel(c, timedOut))
	}
	return applied, nil
}

// refreshRelease recomputes the release rollup and announces a change.
func (s *service) refreshRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) error {
	change, err := s.repo.RefreshReleaseScanStatus(ctx, tx, releaseID)
	if err != nil {
		return err
	}
	if !change.Changed() || change.Current == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReleaseScanStatusChanged,
		AggregateType: enums.AggregateRelease,
		AggregateID:   releaseID.String(),
		Data: payloads.ReleaseScanStatusChangedEvent{
			ReleaseID: change.ReleaseID,
			ArtistID:  change.ArtistID,
			Previous:  change.Previous,
			Current:   *change.Current,
		},
	})
}

func validateAudioURL(raw string) error {
	if raw == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "audio url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "audio url must be an absolute http(s) url")
	}
	return nil
}

func mapRepoError(err error, action string) error {
	switch {
	case pkgerrors.As(err) != nil:
		return err
	case errors.Is(err, ErrReleaseNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "release not found")
	case errors.Is(err, ErrTrackNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "track not found on this release")
	case errors.Is(err, ErrScanNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "audio scan not found")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
	}
}
