package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
	"github.com/alera-fm/alera-backend/pkg/logger"
)

type repository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	CountReleases(ctx context.Context, artistID uuid.UUID) (int64, error)
	CountPendingReleases(ctx context.Context, artistID uuid.UUID) (int64, error)
	SumTokensSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	AddTokens(ctx context.Context, userID uuid.UUID, day time.Time, tokens int64) error
}

// EntitlementContext carries the optional inputs some features are judged on.
type EntitlementContext struct {
	ReleaseType enums.ReleaseType
	Tokens      int64
	Tab         enums.FanZoneTab
	// ExistingRelease judges a release that already counts against the cap, as
	// on submission for review. Only expiry and release type apply.
	ExistingRelease bool
}

// Decision is the outcome of an entitlement check.
type Decision struct {
	Allowed         bool                   `json:"allowed"`
	Reason          string                 `json:"reason,omitempty"`
	UpgradeRequired enums.SubscriptionTier `json:"upgrade_required,omitempty"`
	Remaining       *int64                 `json:"remaining,omitempty"`
}

func allow(remaining *int64) Decision {
	return Decision{Allowed: true, Remaining: remaining}
}

func deny(reason string, upgrade enums.SubscriptionTier, remaining *int64) Decision {
	return Decision{Allowed: false, Reason: reason, UpgradeRequired: upgrade, Remaining: remaining}
}

// Summary describes a user's plan and current usage.
type Summary struct {
	Tier               enums.SubscriptionTier   `json:"tier"`
	EffectiveTier      enums.SubscriptionTier   `json:"effective_tier"`
	Status             enums.SubscriptionStatus `json:"status"`
	Expired            bool                     `json:"expired"`
	DaysRemaining      *int                     `json:"days_remaining,omitempty"`
	TrialExpiresAt     *time.Time               `json:"trial_expires_at,omitempty"`
	ExpiresAt          *time.Time               `json:"subscription_expires_at,omitempty"`
	DailyTokensUsed    int64                    `json:"daily_tokens_used"`
	MonthlyTokensUsed  int64                    `json:"monthly_tokens_used"`
	MonthlyWindowStart time.Time                `json:"monthly_window_start"`
	PendingReleases    int64                    `json:"pending_releases"`
}

// Service answers entitlement questions and records AI usage.
type Service interface {
	CheckEntitlement(ctx context.Context, userID uuid.UUID, feature enums.Feature, ectx EntitlementContext) (Decision, error)
	TrackAIUsage(ctx context.Context, userID uuid.UUID, tokens int64) error
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
}

type ServiceParams struct {
	Repo   repository
	Logger *logger.Logger
}

type service struct {
	repo repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo: params.Repo,
		logg: params.Logger,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// CheckEntitlement returns an error only for malformed input. Lookup failures
// produce a denial so a storage problem never grants access.
func (s *service) CheckEntitlement(ctx context.Context, userID uuid.UUID, feature enums.Feature, ectx EntitlementContext) (Decision, error) {
	if err := validateCheck(userID, feature, ectx); err != nil {
		return Decision{}, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "feature": string(feature)})

	sub, err := s.repo.FindByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return deny("no subscription on file", enums.SubscriptionTierPlus, nil), nil
	}
	if err != nil {
		s.logg.Error(ctx, "subscription lookup failed; denying", err)
		return deny("unable to verify subscription", "", nil), nil
	}

	now := s.now()
	if IsExpired(sub, now) {
		return deny("subscription expired", enums.SubscriptionTierPlus, nil), nil
	}

	policy := policyFor(EffectiveTier(sub.Tier, sub.Status))
	switch feature {
	case enums.FeatureReleaseCreation:
		return s.checkReleaseCreation(ctx, userID, policy.releases, ectx), nil
	case enums.FeatureAIAgent:
		return s.checkTokens(ctx, sub, policy.tokens, ectx.Tokens, now), nil
	case enums.FeatureFanZone:
		if !policy.fanZone.allowsTab(ectx.Tab) {
			return deny(fmt.Sprintf("fan zone tab %q requires the %s plan", ectx.Tab, policy.fanZone.upgradeTo), policy.fanZone.upgradeTo, nil), nil
		}
		return allow(nil), nil
	case enums.FeatureTipJar, enums.FeaturePaidSubscriptions:
		if !policy.monetization.allowed {
			return deny(fmt.Sprintf("%s requires the %s plan", feature, policy.monetization.upgradeTo), policy.monetization.upgradeTo, nil), nil
		}
		return allow(nil), nil
	}
	return deny("unsupported feature", "", nil), nil
}

func (s *service) checkReleaseCreation(ctx context.Context, userID uuid.UUID, rule releaseRule, ectx EntitlementContext) Decision {
	if !rule.allowsType(ectx.ReleaseType) {
		return deny(fmt.Sprintf("%s releases require the %s plan", ectx.ReleaseType, rule.upgradeTo), rule.upgradeTo, nil)
	}
	if rule.maxReleases == Unlimited || ectx.ExistingRelease {
		return allow(nil)
	}

	count, err := s.repo.CountReleases(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "count releases failed; denying", err)
		return deny("unable to verify release usage", "", nil)
	}
	remaining := max(rule.maxReleases-count, 0)
	if remaining == 0 {
		return deny(fmt.Sprintf("release limit of %d reached", rule.maxReleases), rule.upgradeTo, &remaining)
	}
	return allow(&remaining)
}

func (s *service) checkTokens(ctx context.Context, sub *models.Subscription, rule tokenRule, requested int64, now time.Time) Decision {
	if rule.period == tokenPeriodNone {
		return allow(nil)
	}

	since := startOfDay(now)
	if rule.period == tokenPeriodMonthly {
		since = MonthlyWindowStart(sub, now)
	}
	used, err := s.repo.SumTokensSince(ctx, sub.UserID, since)
	if err != nil {
		s.logg.Error(ctx, "sum ai usage failed; denying", err)
		zero := int64(0)
		return deny("unable to verify AI usage", "", &zero)
	}

	remaining := max(rule.limit-used, 0)
	if requested > remaining || remaining == 0 {
		return deny(fmt.Sprintf("%s AI token limit of %d reached", rule.period, rule.limit), rule.upgradeTo, &remaining)
	}
	return allow(&remaining)
}

// TrackAIUsage appends tokens to today's ledger row.
func (s *service) TrackAIUsage(ctx context.Context, userID uuid.UUID, tokens int64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if tokens <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "tokens must be positive")
	}
	if err := s.repo.AddTokens(ctx, userID, startOfDay(s.now()), tokens); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record ai usage")
	}
	return nil
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.repo.FindByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}

	now := s.now()
	windowStart := MonthlyWindowStart(sub, now)
	daily, err := s.repo.SumTokensSince(ctx, userID, startOfDay(now))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum daily usage")
	}
	monthly, err := s.repo.SumTokensSince(ctx, userID, windowStart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum monthly usage")
	}
	pending, err := s.repo.CountPendingReleases(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count pending releases")
	}

	summary := &Summary{
		Tier:               sub.Tier,
		EffectiveTier:      EffectiveTier(sub.Tier, sub.Status),
		Status:             sub.Status,
		Expired:            IsExpired(sub, now),
		TrialExpiresAt:     sub.TrialExpiresAt,
		ExpiresAt:          sub.SubscriptionExpiresAt,
		DailyTokensUsed:    daily,
		MonthlyTokensUsed:  monthly,
		MonthlyWindowStart: windowStart,
		PendingReleases:    pending,
	}
	if days, ok := DaysRemaining(sub, now); ok {
		summary.DaysRemaining = &days
	}
	return summary, nil
}

func validateCheck(userID uuid.UUID, feature enums.Feature, ectx EntitlementContext) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !feature.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown feature %q", feature)
	}
	if ectx.ReleaseType != "" && !ectx.ReleaseType.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown release type %q", ectx.ReleaseType)
	}
	if ectx.Tab != "" && !ectx.Tab.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown fan zone tab %q", ectx.Tab)
	}
	if ectx.Tokens < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "tokens must not be negative")
	}
	return nil
}
