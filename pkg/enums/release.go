package enums

import "fmt"

// ReleaseStatus is the human review workflow state of a release.
type ReleaseStatus string

const (
	ReleaseStatusDraft             ReleaseStatus = "draft"
	ReleaseStatusUnderReview       ReleaseStatus = "under_review"
	ReleaseStatusSentToStores      ReleaseStatus = "sent_to_stores"
	ReleaseStatusLive              ReleaseStatus = "live"
	ReleaseStatusRejected          ReleaseStatus = "rejected"
	ReleaseStatusTakedownRequested ReleaseStatus = "takedown_requested"
	ReleaseStatusTakedown          ReleaseStatus = "takedown"
)

var validReleaseStatuses = []ReleaseStatus{
	ReleaseStatusDraft,
	ReleaseStatusUnderReview,
	ReleaseStatusSentToStores,
	ReleaseStatusLive,
	ReleaseStatusRejected,
	ReleaseStatusTakedownRequested,
	ReleaseStatusTakedown,
}

var releaseTransitions = map[ReleaseStatus][]ReleaseStatus{
	ReleaseStatusDraft:             {ReleaseStatusUnderReview},
	ReleaseStatusRejected:          {ReleaseStatusUnderReview},
	ReleaseStatusUnderReview:       {ReleaseStatusSentToStores, ReleaseStatusRejected},
	ReleaseStatusSentToStores:      {ReleaseStatusLive, ReleaseStatusRejected},
	ReleaseStatusLive:              {ReleaseStatusTakedownRequested},
	ReleaseStatusTakedownRequested: {ReleaseStatusTakedown, ReleaseStatusLive},
}

// PendingReleaseStatuses are the states counted as "in flight" on the dashboard.
var PendingReleaseStatuses = []ReleaseStatus{
	ReleaseStatusDraft,
	ReleaseStatusUnderReview,
}

// String implements fmt.Stringer.
func (s ReleaseStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReleaseStatus.
func (s ReleaseStatus) IsValid() bool {
	for _, candidate := range validReleaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the workflow allows moving from s to next.
func (s ReleaseStatus) CanTransitionTo(next ReleaseStatus) bool {
	for _, candidate := range releaseTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseReleaseStatus converts raw input into a ReleaseStatus.
func ParseReleaseStatus(value string) (ReleaseStatus, error) {
	for _, candidate := range validReleaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release status %q", value)
}

// ReleaseType is the distribution format of a release.
type ReleaseType string

const (
	ReleaseTypeSingle ReleaseType = "Single"
	ReleaseTypeEP     ReleaseType = "EP"
	ReleaseTypeAlbum  ReleaseType = "Album"
)

var validReleaseTypes = []ReleaseType{
	ReleaseTypeSingle,
	ReleaseTypeEP,
	ReleaseTypeAlbum,
}

// IsValid reports whether the value is a known ReleaseType.
func (t ReleaseType) IsValid() bool {
	for _, candidate := range validReleaseTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseReleaseType converts raw input into a ReleaseType.
func ParseReleaseType(value string) (ReleaseType, error) {
	for _, candidate := range validReleaseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release type %q", value)
}
