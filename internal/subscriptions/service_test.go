package subscriptions

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alera-fm/alera-backend/internal/repo/repotest"
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
	"github.com/alera-fm/alera-backend/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type fixture struct {
	svc    *service
	repo   *Repository
	userID uuid.UUID
}

func newFixture(t *testing.T, sub models.Subscription) fixture {
	t.Helper()
	db := repotest.Open(t)
	repository := NewRepository(db)

	user := models.User{Email: uuid.NewString() + "@alera.test", Role: enums.UserRoleArtist}
	require.NoError(t, db.Create(&user).Error)

	sub.UserID = user.ID
	if sub.Status == "" {
		sub.Status = enums.SubscriptionStatusActive
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	}
	require.NoError(t, repository.Create(context.Background(), &sub))

	svc, err := NewService(ServiceParams{Repo: repository, Logger: testLogger()})
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return fixedNow }
	return fixture{svc: impl, repo: repository, userID: user.ID}
}

func (f fixture) createRelease(t *testing.T, releaseType enums.ReleaseType, status enums.ReleaseStatus) {
	t.Helper()
	release := models.Release{ArtistID: f.userID, Title: "r", ReleaseType: releaseType, Status: status}
	require.NoError(t, f.repo.DB(context.Background()).Create(&release).Error)
}

func TestTrialReleaseCreationScenario(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierTrial, TrialExpiresAt: ptrTime(fixedNow.AddDate(0, 0, 14))})
	ctx := context.Background()

	decision, err := f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureReleaseCreation, EntitlementContext{ReleaseType: enums.ReleaseTypeEP})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, enums.SubscriptionTierPlus, decision.UpgradeRequired)

	decision, err = f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureReleaseCreation, EntitlementContext{ReleaseType: enums.ReleaseTypeSingle})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	require.NotNil(t, decision.Remaining)
	assert.EqualValues(t, 1, *decision.Remaining)

	f.createRelease(t, enums.ReleaseTypeSingle, enums.ReleaseStatusLive)

	decision, err = f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureReleaseCreation, EntitlementContext{ReleaseType: enums.ReleaseTypeSingle})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, enums.SubscriptionTierPlus, decision.UpgradeRequired)
	assert.Contains(t, decision.Reason, "release limit")
}

func TestExistingReleaseSkipsCapButNotExpiryOrType(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierTrial, TrialExpiresAt: ptrTime(fixedNow.AddDate(0, 0, 14))})
	ctx := context.Background()
	f.createRelease(t, enums.ReleaseTypeSingle, enums.ReleaseStatusDraft)

	decision, err := f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureReleaseCreation,
		EntitlementContext{ReleaseType: enums.ReleaseTypeSingle, ExistingRelease: true})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureReleaseCreation,
		EntitlementContext{ReleaseType: enums.ReleaseTypeAlbum, ExistingRelease: true})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, enums.SubscriptionTierPlus, decision.UpgradeRequired)

	expired := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierTrial, TrialExpiresAt: ptrTime(fixedNow.Add(-time.Hour))})
	decision, err = expired.svc.CheckEntitlement(ctx, expired.userID, enums.FeatureReleaseCreation,
		EntitlementContext{ReleaseType: enums.ReleaseTypeSingle, ExistingRelease: true})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "subscription expired", decision.Reason)
}

func TestPlusReleaseCreationIsUnlimited(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierPlus})
	for range 3 {
		f.createRelease(t, enums.ReleaseTypeAlbum, enums.ReleaseStatusDraft)
	}
	decision, err := f.svc.CheckEntitlement(context.Background(), f.userID, enums.FeatureReleaseCreation, EntitlementContext{ReleaseType: enums.ReleaseTypeAlbum})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Nil(t, decision.Remaining)
}

func TestPaymentFailedProAppliesTrialTokenCap(t *testing.T) {
	f := newFixture(t, models.Subscription{
		Tier:                  enums.SubscriptionTierPro,
		Status:                enums.SubscriptionStatusPaymentFailed,
		SubscriptionExpiresAt: ptrTime(fixedNow.AddDate(0, 1, 0)),
	})

	decision, err := f.svc.CheckEntitlement(context.Background(), f.userID, enums.FeatureAIAgent, EntitlementContext{Tokens: 2000})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	require.NotNil(t, decision.Remaining)
	assert.EqualValues(t, 1500, *decision.Remaining)
	assert.Equal(t, enums.SubscriptionTierPlus, decision.UpgradeRequired)
}

func TestTrialDailyTokenUsage(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierTrial})
	ctx := context.Background()

	require.NoError(t, f.svc.TrackAIUsage(ctx, f.userID, 1000))
	require.NoError(t, f.svc.TrackAIUsage(ctx, f.userID, 400))

	decision, err := f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureAIAgent, EntitlementContext{Tokens: 100})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.EqualValues(t, 100, *decision.Remaining)

	decision, err = f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureAIAgent, EntitlementContext{Tokens: 101})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Yesterday's usage does not count against today.
	f.svc.now = func() time.Time { return fixedNow.AddDate(0, 0, 1) }
	decision, err = f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureAIAgent, EntitlementContext{Tokens: 1500})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestPlusMonthlyTokenWindow(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierPlus})
	ctx := context.Background()

	require.NoError(t, f.repo.AddTokens(ctx, f.userID, startOfDay(fixedNow.AddDate(0, 0, -2)), 99000))
	require.NoError(t, f.repo.AddTokens(ctx, f.userID, startOfDay(fixedNow.AddDate(0, -2, 0)), 50000))

	decision, err := f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureAIAgent, EntitlementContext{Tokens: 1000})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureAIAgent, EntitlementContext{Tokens: 1001})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, enums.SubscriptionTierPro, decision.UpgradeRequired)
}

func TestProTokensUnlimited(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierPro})
	decision, err := f.svc.CheckEntitlement(context.Background(), f.userID, enums.FeatureAIAgent, EntitlementContext{Tokens: 10_000_000})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestFanZoneTabs(t *testing.T) {
	plus := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierPlus})
	ctx := context.Background()

	decision, err := plus.svc.CheckEntitlement(ctx, plus.userID, enums.FeatureFanZone, EntitlementContext{Tab: enums.FanZoneTabFans})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = plus.svc.CheckEntitlement(ctx, plus.userID, enums.FeatureFanZone, EntitlementContext{Tab: enums.FanZoneTabCampaigns})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, enums.SubscriptionTierPro, decision.UpgradeRequired)

	trial := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierTrial})
	decision, err = trial.svc.CheckEntitlement(ctx, trial.userID, enums.FeatureFanZone, EntitlementContext{Tab: enums.FanZoneTabCampaigns})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestMonetizationFeatures(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		tier  enums.SubscriptionTier
		allow bool
	}{
		{enums.SubscriptionTierTrial, true},
		{enums.SubscriptionTierPlus, false},
		{enums.SubscriptionTierPro, true},
	}
	for _, tc := range cases {
		f := newFixture(t, models.Subscription{Tier: tc.tier})
		for _, feature := range []enums.Feature{enums.FeatureTipJar, enums.FeaturePaidSubscriptions} {
			decision, err := f.svc.CheckEntitlement(ctx, f.userID, feature, EntitlementContext{})
			require.NoError(t, err)
			assert.Equal(t, tc.allow, decision.Allowed, "%s/%s", tc.tier, feature)
		}
	}
}

func TestExpiredDeniesEverything(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierTrial, TrialExpiresAt: ptrTime(fixedNow.Add(-time.Hour))})
	for _, feature := range []enums.Feature{enums.FeatureReleaseCreation, enums.FeatureAIAgent, enums.FeatureFanZone, enums.FeatureTipJar} {
		decision, err := f.svc.CheckEntitlement(context.Background(), f.userID, feature, EntitlementContext{})
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, enums.SubscriptionTierPlus, decision.UpgradeRequired)
		assert.Equal(t, "subscription expired", decision.Reason)
	}
}

func TestMissingSubscriptionDenies(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierPro})
	decision, err := f.svc.CheckEntitlement(context.Background(), uuid.New(), enums.FeatureTipJar, EntitlementContext{})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCheckEntitlementValidation(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierPro})
	ctx := context.Background()

	_, err := f.svc.CheckEntitlement(ctx, f.userID, "karaoke", EntitlementContext{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CheckEntitlement(ctx, uuid.Nil, enums.FeatureAIAgent, EntitlementContext{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureFanZone, EntitlementContext{Tab: "lyrics"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CheckEntitlement(ctx, f.userID, enums.FeatureAIAgent, EntitlementContext{Tokens: -1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type failingRepo struct {
	sub *models.Subscription
	err error
}

func (r failingRepo) FindByUserID(context.Context, uuid.UUID) (*models.Subscription, error) {
	if r.sub != nil {
		return r.sub, nil
	}
	return nil, r.err
}

func (r failingRepo) CountReleases(context.Context, uuid.UUID) (int64, error) { return 0, r.err }

func (r failingRepo) CountPendingReleases(context.Context, uuid.UUID) (int64, error) {
	return 0, r.err
}

func (r failingRepo) SumTokensSince(context.Context, uuid.UUID, time.Time) (int64, error) {
	return 0, r.err
}

func (r failingRepo) AddTokens(context.Context, uuid.UUID, time.Time, int64) error { return r.err }

func TestRepositoryErrorsDeny(t *testing.T) {
	boom := errors.New("connection reset")
	ctx := context.Background()
	userID := uuid.New()

	svc, err := NewService(ServiceParams{Repo: failingRepo{err: boom}, Logger: testLogger()})
	require.NoError(t, err)
	decision, err := svc.CheckEntitlement(ctx, userID, enums.FeatureTipJar, EntitlementContext{})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	trial := &models.Subscription{UserID: userID, Tier: enums.SubscriptionTierTrial, Status: enums.SubscriptionStatusActive}
	svc, err = NewService(ServiceParams{Repo: failingRepo{sub: trial, err: boom}, Logger: testLogger()})
	require.NoError(t, err)

	decision, err = svc.CheckEntitlement(ctx, userID, enums.FeatureReleaseCreation, EntitlementContext{ReleaseType: enums.ReleaseTypeSingle})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	decision, err = svc.CheckEntitlement(ctx, userID, enums.FeatureAIAgent, EntitlementContext{Tokens: 1})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.EqualValues(t, 0, *decision.Remaining)

	err = svc.TrackAIUsage(ctx, userID, 10)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestSummary(t *testing.T) {
	f := newFixture(t, models.Subscription{
		Tier:                  enums.SubscriptionTierPlus,
		Status:                enums.SubscriptionStatusPendingPayment,
		SubscriptionExpiresAt: ptrTime(fixedNow.Add(72 * time.Hour)),
	})
	ctx := context.Background()
	require.NoError(t, f.svc.TrackAIUsage(ctx, f.userID, 300))
	f.createRelease(t, enums.ReleaseTypeSingle, enums.ReleaseStatusDraft)
	f.createRelease(t, enums.ReleaseTypeSingle, enums.ReleaseStatusLive)

	summary, err := f.svc.Summary(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionTierPlus, summary.Tier)
	assert.Equal(t, enums.SubscriptionTierTrial, summary.EffectiveTier)
	assert.False(t, summary.Expired)
	require.NotNil(t, summary.DaysRemaining)
	assert.Equal(t, 3, *summary.DaysRemaining)
	assert.EqualValues(t, 300, summary.DailyTokensUsed)
	assert.EqualValues(t, 300, summary.MonthlyTokensUsed)
	assert.EqualValues(t, 1, summary.PendingReleases)

	_, err = f.svc.Summary(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestTrackAIUsageValidation(t *testing.T) {
	f := newFixture(t, models.Subscription{Tier: enums.SubscriptionTierTrial})
	err := f.svc.TrackAIUsage(context.Background(), f.userID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
