package subscriptions

import (
	"math"
	"time"

	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
)

// IsExpired reports whether the subscription no longer grants anything.
func IsExpired(sub *models.Subscription, now time.Time) bool {
	if sub == nil {
		return true
	}
	switch sub.Status {
	case enums.SubscriptionStatusExpired:
		return true
	case enums.SubscriptionStatusCancelled:
		return sub.SubscriptionExpiresAt == nil || !now.Before(*sub.SubscriptionExpiresAt)
	}

	if sub.Tier == enums.SubscriptionTierTrial {
		return sub.TrialExpiresAt != nil && !now.Before(*sub.TrialExpiresAt)
	}
	return sub.SubscriptionExpiresAt != nil && !now.Before(*sub.SubscriptionExpiresAt)
}

// DaysRemaining returns whole days left before the governing expiry, rounded up.
// ok is false when the subscription has no expiry date.
func DaysRemaining(sub *models.Subscription, now time.Time) (days int, ok bool) {
	if sub == nil {
		return 0, false
	}
	expiry := sub.SubscriptionExpiresAt
	if sub.Tier == enums.SubscriptionTierTrial {
		expiry = sub.TrialExpiresAt
	}
	if expiry == nil {
		return 0, false
	}
	left := expiry.Sub(now)
	if left <= 0 {
		return 0, true
	}
	return int(math.Ceil(left.Hours() / 24)), true
}

// MonthlyWindowStart returns the start of the current 30-day token window.
// The window restarts on the subscription's creation day-of-month, clamped to the
// last day of shorter months, and never begins before the subscription itself.
func MonthlyWindowStart(sub *models.Subscription, now time.Time) time.Time {
	now = now.UTC()
	created := startOfDay(sub.CreatedAt.UTC())
	anchor := created.Day()

	candidate := dayInMonth(now.Year(), now.Month(), anchor)
	if candidate.After(now) {
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		candidate = dayInMonth(prev.Year(), prev.Month(), anchor)
	}
	if candidate.Before(created) {
		return created
	}
	return candidate
}

func dayInMonth(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
