package enums

import "fmt"

// ScanStatus is the lifecycle state of a single audio scan record.
type ScanStatus string

const (
	ScanStatusPending    ScanStatus = "pending"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFlagged    ScanStatus = "flagged"
	ScanStatusFailed     ScanStatus = "failed"
)

var validScanStatuses = []ScanStatus{
	ScanStatusPending,
	ScanStatusProcessing,
	ScanStatusCompleted,
	ScanStatusFlagged,
	ScanStatusFailed,
}

// OutstandingScanStatuses lists the states the poller still has to close out.
var OutstandingScanStatuses = []ScanStatus{
	ScanStatusPending,
	ScanStatusProcessing,
}

var scanTransitions = map[ScanStatus][]ScanStatus{
	ScanStatusPending:    {ScanStatusProcessing, ScanStatusCompleted, ScanStatusFlagged, ScanStatusFailed},
	ScanStatusProcessing: {ScanStatusCompleted, ScanStatusFlagged, ScanStatusFailed},
}

// String implements fmt.Stringer.
func (s ScanStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ScanStatus.
func (s ScanStatus) IsValid() bool {
	for _, candidate := range validScanStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOutstanding reports whether the scan is still waiting on the vendor.
func (s ScanStatus) IsOutstanding() bool {
	return s == ScanStatusPending || s == ScanStatusProcessing
}

// IsTerminal reports whether no further automatic transition can happen.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFlagged || s == ScanStatusFailed
}

// CanTransitionTo reports whether moving from s to next is permitted.
func (s ScanStatus) CanTransitionTo(next ScanStatus) bool {
	for _, candidate := range scanTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseScanStatus converts raw input into a ScanStatus.
func ParseScanStatus(value string) (ScanStatus, error) {
	for _, candidate := range validScanStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid scan status %q", value)
}

// VendorJobStatus is the job state reported by the detection vendor.
type VendorJobStatus string

const (
	VendorJobPending    VendorJobStatus = "pending"
	VendorJobProcessing VendorJobStatus = "processing"
	VendorJobCompleted  VendorJobStatus = "completed"
	VendorJobFailed     VendorJobStatus = "failed"
)

func (v VendorJobStatus) IsValid() bool {
	switch v {
	case VendorJobPending, VendorJobProcessing, VendorJobCompleted, VendorJobFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the vendor finished working on the job.
func (v VendorJobStatus) IsTerminal() bool {
	return v == VendorJobCompleted || v == VendorJobFailed
}

// ReleaseScanStatus is the release-level rollup of its track scans.
type ReleaseScanStatus string

const (
	ReleaseScanScanning ReleaseScanStatus = "scanning"
	ReleaseScanPassed   ReleaseScanStatus = "scan_passed"
	ReleaseScanFlagged  ReleaseScanStatus = "scan_flagged"
	ReleaseScanFailed   ReleaseScanStatus = "scan_failed"
)

var validReleaseScanStatuses = []ReleaseScanStatus{
	ReleaseScanScanning,
	ReleaseScanPassed,
	ReleaseScanFlagged,
	ReleaseScanFailed,
}

// String implements fmt.Stringer.
func (r ReleaseScanStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReleaseScanStatus.
func (r ReleaseScanStatus) IsValid() bool {
	for _, candidate := range validReleaseScanStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// AdminDecision is the reviewer verdict recorded on a flagged scan.
type AdminDecision string

const (
	AdminDecisionApproved AdminDecision = "approved"
	AdminDecisionRejected AdminDecision = "rejected"
)

// IsValid reports whether the value is a known AdminDecision.
func (d AdminDecision) IsValid() bool {
	return d == AdminDecisionApproved || d == AdminDecisionRejected
}

// ParseAdminDecision converts raw input into an AdminDecision.
func ParseAdminDecision(value string) (AdminDecision, error) {
	d := AdminDecision(value)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid admin decision %q", value)
	}
	return d, nil
}
