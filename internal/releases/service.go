package releases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alera-fm/alera-backend/internal/scans"
	"github.com/alera-fm/alera-backend/internal/subscriptions"
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/outbox"
	"github.com/alera-fm/alera-backend/pkg/outbox/payloads"
	"github.com/alera-fm/alera-backend/pkg/pagination"
)

const (
	maxTitleLength = 200
	maxTracks      = 50
)

type repository interface {
	Create(ctx context.Context, tx *gorm.DB, release *models.Release, tracks []models.Track) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Release, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Release, error)
	ListTracks(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]models.Track, error)
	ListByArtist(ctx context.Context, artistID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Release, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.ReleaseStatus, submittedAt *time.Time) error
}

type entitlementChecker interface {
	CheckEntitlement(ctx context.Context, userID uuid.UUID, feature enums.Feature, ectx subscriptions.EntitlementContext) (subscriptions.Decision, error)
}

// scanLister reads scan records on the caller's transaction.
type scanLister interface {
	ListByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]models.AudioScanResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID.String(), Role: string(a.Role)}
}

// Service manages the release review workflow.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*ReleaseDTO, error)
	Get(ctx context.Context, actor Actor, releaseID uuid.UUID) (*ReleaseDTO, error)
	ListByArtist(ctx context.Context, artistID uuid.UUID, params pagination.Params) (pagination.Page[ReleaseDTO], error)
	SubmitForReview(ctx context.Context, actor Actor, releaseID uuid.UUID) (*ReleaseDTO, error)
	UpdateStatus(ctx context.Context, actor Actor, releaseID uuid.UUID, status enums.ReleaseStatus) (*ReleaseDTO, error)
}

type ServiceParams struct {
	Repo              repository
	Scans             scanLister
	Entitlements      entitlementChecker
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Logger            *logger.Logger
}

type service struct {
	repo         repository
	scans        scanLister
	entitlements entitlementChecker
	tx           txRunner
	outbox       outbox.Emitter
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("release repo required")
	case params.Scans == nil:
		return nil, fmt.Errorf("scan lister required")
	case params.Entitlements == nil:
		return nil, fmt.Errorf("entitlement checker required")
	case params.TransactionRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:         params.Repo,
		scans:        params.Scans,
		entitlements: params.Entitlements,
		tx:           params.TransactionRunner,
		outbox:       params.Outbox,
		logg:         params.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*ReleaseDTO, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateCreate(title, input); err != nil {
		return nil, err
	}

	decision, err := s.entitlements.CheckEntitlement(ctx, actor.UserID, enums.FeatureReleaseCreation, subscriptions.EntitlementContext{ReleaseType: input.ReleaseType})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, entitlementDenied(decision)
	}

	release := &models.Release{
		ArtistID:    actor.UserID,
		Title:       title,
		ReleaseType: input.ReleaseType,
		Status:      enums.ReleaseStatusDraft,
	}
	tracks := make([]models.Track, 0, len(input.TrackTitles))
	for _, t := range input.TrackTitles {
		tracks = append(tracks, models.Track{Title: strings.TrimSpace(t)})
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.Create(ctx, tx, release, tracks)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create release")
	}

	s.logg.Info(s.logg.WithReleaseID(ctx, release.ID.String()), "release created")
	return FromModel(release, tracks), nil
}

func (s *service) Get(ctx context.Context, actor Actor, releaseID uuid.UUID) (*ReleaseDTO, error) {
	release, err := s.repo.FindByID(ctx, nil, releaseID)
	if err != nil {
		return nil, mapRepoError(err, "load release")
	}
	if err := authorize(actor, release); err != nil {
		return nil, err
	}
	tracks, err := s.repo.ListTracks(ctx, nil, releaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load tracks")
	}
	return FromModel(release, tracks), nil
}

func (s *service) ListByArtist(ctx context.Context, artistID uuid.UUID, params pagination.Params) (pagination.Page[ReleaseDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[ReleaseDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByArtist(ctx, artistID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return pagination.Page[ReleaseDTO]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list releases")
	}

	page := pagination.Trim(rows, params.Limit, func(r models.Release) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID.String()}
	})
	out := pagination.Page[ReleaseDTO]{Items: make([]ReleaseDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		out.Items = append(out.Items, *FromModel(&page.Items[i], nil))
	}
	return out, nil
}

// SubmitForReview moves a draft or rejected release to under_review once the
// scan gate allows it. The release row stays locked while the gate is evaluated
// so a concurrent scan submission cannot slip in between.
func (s *service) SubmitForReview(ctx context.Context, actor Actor, releaseID uuid.UUID) (*ReleaseDTO, error) {
	ctx = s.logg.WithReleaseID(ctx, releaseID.String())

	current, err := s.repo.FindByID(ctx, nil, releaseID)
	if err != nil {
		return nil, mapRepoError(err, "load release")
	}
	if current.ArtistID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "release not found")
	}
	if err := s.checkSubmissionEntitlement(ctx, actor, current); err != nil {
		return nil, err
	}

	var updated *models.Release
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		release, err := s.repo.LockByID(ctx, tx, releaseID)
		if err != nil {
			return err
		}
		if release.ArtistID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "release not found")
		}
		if !release.Status.CanTransitionTo(enums.ReleaseStatusUnderReview) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "a %s release cannot be submitted for review", release.Status)
		}

		records, err := s.scans.ListByRelease(ctx, tx, releaseID)
		if err != nil {
			return err
		}
		decision := scans.EvaluateSubmission(records)
		if !decision.Allowed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, decision.Reason).WithDetails(decision)
		}

		submittedAt := s.now()
		if err := s.repo.UpdateStatus(ctx, tx, releaseID, enums.ReleaseStatusUnderReview, &submittedAt); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReleaseSubmittedForReview,
			AggregateType: enums.AggregateRelease,
			AggregateID:   releaseID.String(),
			Actor:         actor.ref(),
			Data: payloads.ReleaseSubmittedForReviewEvent{
				ReleaseID:   releaseID,
				ArtistID:    release.ArtistID,
				SubmittedAt: submittedAt,
			},
		}); err != nil {
			return err
		}

		updated, err = s.repo.FindByID(ctx, tx, releaseID)
		return err
	})
	if err != nil {
		return nil, mapRepoError(err, "submit release")
	}

	s.logg.Info(ctx, "release submitted for review")
	return FromModel(updated, nil), nil
}

// checkSubmissionEntitlement denies review for an expired plan or a release type
// the current plan no longer covers. The release itself already counts toward
// the creation cap.
func (s *service) checkSubmissionEntitlement(ctx context.Context, actor Actor, release *models.Release) error {
	decision, err := s.entitlements.CheckEntitlement(ctx, actor.UserID, enums.FeatureReleaseCreation, subscriptions.EntitlementContext{
		ReleaseType:     release.ReleaseType,
		ExistingRelease: true,
	})
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return entitlementDenied(decision)
	}
	return nil
}

func entitlementDenied(decision subscriptions.Decision) error {
	return pkgerrors.New(pkgerrors.CodeForbidden, decision.Reason).WithDetails(map[string]any{
		"reason":           decision.Reason,
		"upgrade_required": decision.UpgradeRequired,
	})
}

// UpdateStatus applies an admin workflow transition. Entering review always goes
// through SubmitForReview so the scan gate cannot be bypassed.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, releaseID uuid.UUID, status enums.ReleaseStatus) (*ReleaseDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid release status %q", status)
	}
	if status == enums.ReleaseStatusUnderReview {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "releases enter review through artist submission")
	}
	ctx = s.logg.WithReleaseID(ctx, releaseID.String())

	var updated *models.Release
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		release, err := s.repo.LockByID(ctx, tx, releaseID)
		if err != nil {
			return err
		}
		if !release.Status.CanTransitionTo(status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move release from %s to %s", release.Status, status)
		}
		if err := s.repo.UpdateStatus(ctx, tx, releaseID, status, nil); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReleaseStatusChanged,
			AggregateType: enums.AggregateRelease,
			AggregateID:   releaseID.String(),
			Actor:         actor.ref(),
			Data: payloads.ReleaseStatusChangedEvent{
				ReleaseID: releaseID,
				ArtistID:  release.ArtistID,
				Previous:  release.Status,
				Current:   status,
				ChangedBy: actor.UserID,
			},
		}); err != nil {
			return err
		}
		updated, err = s.repo.FindByID(ctx, tx, releaseID)
		return err
	})
	if err != nil {
		return nil, mapRepoError(err, "update release status")
	}

	s.logg.Info(s.logg.WithField(ctx, "status", string(status)), "release status updated")
	return FromModel(updated, nil), nil
}

func authorize(actor Actor, release *models.Release) error {
	if actor.IsAdmin() || release.ArtistID == actor.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "release not found")
}

func validateCreate(title string, input CreateInput) error {
	if title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if len(title) > maxTitleLength {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "title must be at most %d characters", maxTitleLength)
	}
	if !input.ReleaseType.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid release type %q", input.ReleaseType)
	}
	if len(input.TrackTitles) > maxTracks {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "a release can have at most %d tracks", maxTracks)
	}
	for i, t := range input.TrackTitles {
		if strings.TrimSpace(t) == "" {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "track %d title is required", i+1)
		}
	}
	return nil
}

func mapRepoError(err error, action string) error {
	switch {
	case pkgerrors.As(err) != nil:
		return err
	case errors.Is(err, ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "release not found")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
	}
}
