package scans

import (
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
)

const (
	ReasonNotScanned   = "no track audio has been scanned for this release yet; upload audio before submitting"
	ReasonScanning     = "audio scanning in progress; submit again once every track has finished scanning"
	ReasonFlagReview   = "flagged tracks need admin review and approval before this release can be submitted"
	ReasonScanReupload = "one or more tracks failed the audio scan; re-upload the audio and try again"
)

// SubmissionDecision is the advisory answer to "may this release go to review".
type SubmissionDecision struct {
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
	Total    int    `json:"total_scans"`
	Terminal int    `json:"terminal_scans"`
	Flagged  int    `json:"flagged_scans"`
	Approved int    `json:"approved_flags"`
}

// EvaluateSubmission decides from scan records alone. Flag overrides are checked
// before the pass check, so an approved flag does not count as a failure.
func EvaluateSubmission(records []models.AudioScanResult) SubmissionDecision {
	d := SubmissionDecision{Total: len(records)}
	failedOrUnpassed := 0
	for _, rec := range records {
		if rec.Status.IsTerminal() {
			d.Terminal++
		}
		switch {
		case rec.Status == enums.ScanStatusFlagged:
			d.Flagged++
			if rec.ApprovedByAdmin() {
				d.Approved++
			}
		case rec.Status != enums.ScanStatusCompleted || !rec.Passed:
			failedOrUnpassed++
		}
	}

	if d.Total == 0 {
		d.Reason = ReasonNotScanned
		return d
	}
	if d.Terminal != d.Total {
		d.Reason = ReasonScanning
		return d
	}
	if d.Flagged > 0 && d.Approved != d.Flagged {
		d.Reason = ReasonFlagReview
		return d
	}
	if failedOrUnpassed > 0 {
		d.Reason = ReasonScanReupload
		return d
	}
	d.Allowed = true
	return d
}
