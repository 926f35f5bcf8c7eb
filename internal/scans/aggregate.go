// Package scans tracks AI-content-detection scans for release audio and derives
// release-level scan state and submission eligibility from them.
package scans

import (
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
)

// AggregateReleaseScanStatus folds a release's scan records into one status.
// Precedence: outstanding, then flagged, then all passed, else failed. ok is false
// when there are no records; callers treat that as "not scanned".
func AggregateReleaseScanStatus(records []models.AudioScanResult) (status enums.ReleaseScanStatus, ok bool) {
	if len(records) == 0 {
		return "", false
	}

	flagged, allPassed := false, true
	for _, rec := range records {
		if rec.Status.IsOutstanding() {
			return enums.ReleaseScanScanning, true
		}
		if rec.Status == enums.ScanStatusFlagged {
			flagged = true
		}
		if rec.Status != enums.ScanStatusCompleted || !rec.Passed {
			allPassed = false
		}
	}

	switch {
	case flagged:
		return enums.ReleaseScanFlagged, true
	case allPassed:
		return enums.ReleaseScanPassed, true
	default:
		return enums.ReleaseScanFailed, true
	}
}
