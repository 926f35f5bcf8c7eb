package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateRelease   OutboxAggregateType = "release"
	AggregateAudioScan OutboxAggregateType = "audio_scan"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateRelease,
	AggregateAudioScan,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names an observable state change.
type OutboxEventType string

const (
	EventAudioScanCompleted        OutboxEventType = "audio_scan_completed"
	EventAudioScanReviewed         OutboxEventType = "audio_scan_reviewed"
	EventReleaseScanStatusChanged  OutboxEventType = "release_scan_status_changed"
	EventReleaseSubmittedForReview OutboxEventType = "release_submitted_for_review"
	EventReleaseStatusChanged      OutboxEventType = "release_status_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAudioScanCompleted,
	EventAudioScanReviewed,
	EventReleaseScanStatusChanged,
	EventReleaseSubmittedForReview,
	EventReleaseStatusChanged,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why an outbox row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

// IsValid reports whether the value is a known dead-letter reason.
func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
