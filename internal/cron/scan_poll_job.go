package cron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/alera-fm/alera-backend/internal/scans"
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/detection"
	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/metrics"
)

const (
	defaultScanBatchSize  = 100
	defaultScanTimeout    = time.Hour
	defaultScanClaimLease = 10 * time.Minute
)

type scanClaimer interface {
	ClaimOutstanding(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.AudioScanResult, error)
	ReleaseClaim(ctx context.Context, scanID int64) error
}

type scanCompleter interface {
	Complete(ctx context.Context, scan models.AudioScanResult, c scans.Completion, timedOut bool) (bool, error)
}

// StatusChecker looks up a vendor job.
type StatusChecker interface {
	GetStatus(ctx context.Context, jobID string) (detection.JobStatus, error)
}

type ScanPollJobParams struct {
	Logger  *logger.Logger
	Repo    scanClaimer
	Scans   scanCompleter
	Vendor  StatusChecker
	Metrics *metrics.ScanMetrics
	// Timeout is the age after which a scan the vendor cannot answer for is failed.
	Timeout    time.Duration
	BatchSize  int
	ClaimLease time.Duration
}

// NewScanPollJob builds the job closing out outstanding audio scans. A nil Vendor
// is allowed and turns every cycle into a logged no-op, so scans stay outstanding
// and the submission gate keeps reporting them as scanning.
func NewScanPollJob(params ScanPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("scan repository required")
	}
	if params.Scans == nil {
		return nil, fmt.Errorf("scan service required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultScanBatchSize
	}
	lease := params.ClaimLease
	if lease <= 0 {
		lease = defaultScanClaimLease
	}
	return &scanPollJob{
		logg:    params.Logger,
		repo:    params.Repo,
		scans:   params.Scans,
		vendor:  params.Vendor,
		metrics: params.Metrics,
		timeout: timeout,
		batch:   batch,
		lease:   lease,
		now:     time.Now,
	}, nil
}

type scanPollJob struct {
	logg    *logger.Logger
	repo    scanClaimer
	scans   scanCompleter
	vendor  StatusChecker
	metrics *metrics.ScanMetrics
	timeout time.Duration
	batch   int
	lease   time.Duration
	now     func() time.Time
}

func (j *scanPollJob) Name() string { return "audio-scan-poll" }

// Run polls every outstanding scan, oldest first, claiming BatchSize rows at a
// time until the claim comes back empty. Waiting rows keep their lease for the
// rest of the cycle so later rows get claimed, then are released for the next
// cycle. A failing record is logged and collected; it never stops the cycle.
func (j *scanPollJob) Run(ctx context.Context) error {
	if j.vendor == nil {
		j.logg.Warn(ctx, "detection vendor not configured; audio scan poll skipped")
		return nil
	}

	now := j.now().UTC()
	seen := make(map[int64]struct{})
	var waitingIDs []int64
	var errs error
	var claimed, completed int

	defer func() {
		// Lease release must outlive a canceled cycle.
		releaseCtx := context.WithoutCancel(ctx)
		for _, id := range waitingIDs {
			if relErr := j.repo.ReleaseClaim(releaseCtx, id); relErr != nil {
				j.logg.Error(j.logg.WithField(ctx, "scan_id", strconv.FormatInt(id, 10)), "failed to release scan claim", relErr)
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		batch, err := j.repo.ClaimOutstanding(ctx, now, j.lease, j.batch)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("claim outstanding scans: %w", err))
			break
		}
		fresh := 0
		for i := range batch {
			if _, ok := seen[batch[i].ID]; ok {
				continue
			}
			seen[batch[i].ID] = struct{}{}
			fresh++
			claimed++

			if ctx.Err() != nil {
				waitingIDs = append(waitingIDs, batch[i].ID)
				errs = multierr.Append(errs, ctx.Err())
				continue
			}
			done, err := j.poll(ctx, batch[i], now)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("scan %d: %w", batch[i].ID, err))
			}
			if done {
				completed++
				continue
			}
			waitingIDs = append(waitingIDs, batch[i].ID)
		}
		if fresh == 0 || len(batch) < j.batch {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"claimed":   claimed,
		"completed": completed,
		"waiting":   len(waitingIDs),
		"failures":  len(multierr.Errors(errs)),
	}), "audio scan poll complete")
	return errs
}

// poll reports whether the scan left the outstanding set.
func (j *scanPollJob) poll(ctx context.Context, scan models.AudioScanResult, now time.Time) (bool, error) {
	fields := map[string]any{
		"scan_id":    strconv.FormatInt(scan.ID, 10),
		"release_id": scan.ReleaseID.String(),
	}
	if scan.VendorJobID != nil {
		fields["vendor_job_id"] = *scan.VendorJobID
	}
	logCtx := j.logg.WithFields(ctx, fields)

	job, err := j.lookup(ctx, scan)
	if err != nil {
		if now.Sub(scan.CreatedAt) < j.timeout {
			j.logg.Warn(logCtx, fmt.Sprintf("vendor status unavailable; retrying next cycle: %v", err))
			return false, nil
		}
		applied, err := j.scans.Complete(logCtx, scan, scans.TimeoutCompletion(j.timeout), true)
		if err != nil {
			j.logg.Error(logCtx, "failed to time out scan", err)
			return false, err
		}
		if applied {
			j.logg.Warn(logCtx, "scan timed out")
		}
		return true, nil
	}

	completion, ok := scans.CompletionFromVendor(job)
	if !ok {
		return false, nil
	}
	applied, err := j.scans.Complete(logCtx, scan, completion, false)
	if err != nil {
		j.logg.Error(logCtx, "failed to record scan result", err)
		return false, err
	}
	if applied {
		j.logg.Info(j.logg.WithField(logCtx, "status", string(completion.Status)), "scan completed")
	}
	return true, nil
}

func (j *scanPollJob) lookup(ctx context.Context, scan models.AudioScanResult) (detection.JobStatus, error) {
	if scan.VendorJobID == nil || *scan.VendorJobID == "" {
		return detection.JobStatus{}, fmt.Errorf("scan has no vendor job")
	}
	job, err := j.vendor.GetStatus(ctx, *scan.VendorJobID)
	if err != nil {
		j.metrics.IncVendorError("status")
	}
	return job, err
}
