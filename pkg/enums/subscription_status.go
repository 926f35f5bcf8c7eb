package enums

import "fmt"

// SubscriptionStatus is the billing state stored on a user's subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusPaymentFailed  SubscriptionStatus = "payment_failed"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusExpired,
	SubscriptionStatusCancelled,
	SubscriptionStatusPendingPayment,
	SubscriptionStatusPaymentFailed,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsPaymentIssue reports whether the status signals a billing problem.
func (s SubscriptionStatus) IsPaymentIssue() bool {
	return s == SubscriptionStatusPendingPayment || s == SubscriptionStatusPaymentFailed
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}

// SubscriptionTier is the plan a user is on.
type SubscriptionTier string

const (
	SubscriptionTierTrial SubscriptionTier = "trial"
	SubscriptionTierPlus  SubscriptionTier = "plus"
	SubscriptionTierPro   SubscriptionTier = "pro"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierTrial,
	SubscriptionTierPlus,
	SubscriptionTierPro,
}

// IsValid reports whether the value is known.
func (t SubscriptionTier) IsValid() bool {
	for _, candidate := range validSubscriptionTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSubscriptionTier converts raw input into a SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}
