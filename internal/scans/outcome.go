package scans

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alera-fm/alera-backend/pkg/detection"
	"github.com/alera-fm/alera-backend/pkg/enums"
	"github.com/alera-fm/alera-backend/pkg/metrics"
)

const defaultFlagReason = "AI-generated content detected"

// CompletionFromVendor maps a terminal vendor job onto a scan outcome. A positive
// flag wins over the vendor's own completed/failed status. ok is false while the
// vendor is still working.
func CompletionFromVendor(job detection.JobStatus) (c Completion, ok bool) {
	if !job.Status.IsTerminal() {
		return Completion{}, false
	}

	flagged := job.Result != nil && job.Result.Flagged
	c.Passed = !flagged && job.Status == enums.VendorJobCompleted
	if job.Result != nil {
		c.Confidence = decimal.NewNullDecimal(job.Result.Confidence.Round(2))
		if v := strings.TrimSpace(job.Result.ModelVersion); v != "" {
			c.ModelVersion = &v
		}
	}

	switch {
	case flagged:
		c.Status = enums.ScanStatusFlagged
		reason := defaultFlagReason
		if job.Result.Confidence.IsPositive() {
			reason = fmt.Sprintf("%s (confidence %s%%)", defaultFlagReason, job.Result.Confidence.StringFixed(2))
		}
		c.FlaggedReason = &reason
	case job.Status == enums.VendorJobCompleted:
		c.Status = enums.ScanStatusCompleted
	default:
		c.Status = enums.ScanStatusFailed
		msg := strings.TrimSpace(job.Error)
		if msg == "" {
			msg = "detection vendor reported a failed job"
		}
		c.ErrorMessage = &msg
	}
	return c, true
}

// TimeoutCompletion force-fails a scan the vendor never answered for.
func TimeoutCompletion(timeout time.Duration) Completion {
	msg := fmt.Sprintf("scan timed out after %s without a vendor result", timeout)
	return Completion{Status: enums.ScanStatusFailed, ErrorMessage: &msg}
}

// OutcomeLabel is the metrics label for a completion.
func OutcomeLabel(c Completion, timedOut bool) string {
	switch {
	case timedOut:
		return metrics.ScanOutcomeTimeout
	case c.Status == enums.ScanStatusFlagged:
		return metrics.ScanOutcomeFlagged
	case c.Passed:
		return metrics.ScanOutcomePassed
	default:
		return metrics.ScanOutcomeFailed
	}
}
