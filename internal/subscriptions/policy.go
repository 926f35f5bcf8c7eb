package subscriptions

import (
	"slices"

	"github.com/alera-fm/alera-backend/pkg/enums"
)

// Unlimited marks a quota without an upper bound.
const Unlimited int64 = -1

const (
	trialDailyTokenLimit  int64 = 1500
	plusMonthlyTokenLimit int64 = 100000
	trialReleaseCap       int64 = 1
)

type tokenPeriod string

const (
	tokenPeriodDaily   tokenPeriod = "daily"
	tokenPeriodMonthly tokenPeriod = "monthly"
	tokenPeriodNone    tokenPeriod = "none"
)

type releaseRule struct {
	// maxReleases counts every release ever created; Unlimited disables the cap.
	maxReleases  int64
	allowedTypes []enums.ReleaseType
	upgradeTo    enums.SubscriptionTier
}

type tokenRule struct {
	period    tokenPeriod
	limit     int64
	upgradeTo enums.SubscriptionTier
}

type fanZoneRule struct {
	// tabs is nil when every tab is open.
	tabs      []enums.FanZoneTab
	upgradeTo enums.SubscriptionTier
}

type monetizationRule struct {
	allowed   bool
	upgradeTo enums.SubscriptionTier
}

type tierPolicy struct {
	releases     releaseRule
	tokens       tokenRule
	fanZone      fanZoneRule
	monetization monetizationRule
}

var policyTable = map[enums.SubscriptionTier]tierPolicy{
	enums.SubscriptionTierTrial: {
		releases: releaseRule{
			maxReleases:  trialReleaseCap,
			allowedTypes: []enums.ReleaseType{enums.ReleaseTypeSingle},
			upgradeTo:    enums.SubscriptionTierPlus,
		},
		tokens:       tokenRule{period: tokenPeriodDaily, limit: trialDailyTokenLimit, upgradeTo: enums.SubscriptionTierPlus},
		fanZone:      fanZoneRule{},
		monetization: monetizationRule{allowed: true},
	},
	enums.SubscriptionTierPlus: {
		releases: releaseRule{maxReleases: Unlimited},
		tokens:   tokenRule{period: tokenPeriodMonthly, limit: plusMonthlyTokenLimit, upgradeTo: enums.SubscriptionTierPro},
		fanZone: fanZoneRule{
			tabs:      []enums.FanZoneTab{enums.FanZoneTabDashboard, enums.FanZoneTabFans},
			upgradeTo: enums.SubscriptionTierPro,
		},
		monetization: monetizationRule{allowed: false, upgradeTo: enums.SubscriptionTierPro},
	},
	enums.SubscriptionTierPro: {
		releases:     releaseRule{maxReleases: Unlimited},
		tokens:       tokenRule{period: tokenPeriodNone, limit: Unlimited},
		fanZone:      fanZoneRule{},
		monetization: monetizationRule{allowed: true},
	},
}

// EffectiveTier coerces payment-problem statuses down to trial entitlements.
func EffectiveTier(tier enums.SubscriptionTier, status enums.SubscriptionStatus) enums.SubscriptionTier {
	if status.IsPaymentIssue() {
		return enums.SubscriptionTierTrial
	}
	if _, ok := policyTable[tier]; !ok {
		return enums.SubscriptionTierTrial
	}
	return tier
}

func policyFor(tier enums.SubscriptionTier) tierPolicy {
	if p, ok := policyTable[tier]; ok {
		return p
	}
	return policyTable[enums.SubscriptionTierTrial]
}

func (r releaseRule) allowsType(releaseType enums.ReleaseType) bool {
	return len(r.allowedTypes) == 0 || releaseType == "" || slices.Contains(r.allowedTypes, releaseType)
}

func (r fanZoneRule) allowsTab(tab enums.FanZoneTab) bool {
	return r.tabs == nil || tab == "" || slices.Contains(r.tabs, tab)
}
