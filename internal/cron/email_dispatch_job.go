package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/alera-fm/alera-backend/pkg/db/models"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/mailer"
)

const (
	defaultEmailBatchSize   = 50
	defaultEmailMaxAttempts = 5
	emailClaimLease         = 5 * time.Minute
)

type emailQueue interface {
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.EmailQueue, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkAttemptFailed(ctx context.Context, id uuid.UUID, lastError string, terminal bool) error
}

type EmailDispatchJobParams struct {
	Logger      *logger.Logger
	Queue       emailQueue
	Sender      mailer.Sender
	BatchSize   int
	MaxAttempts int
}

// NewEmailDispatchJob builds the job delivering due emails. With a nil Sender the
// job logs once per run and leaves the queue untouched.
func NewEmailDispatchJob(params EmailDispatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("email queue required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultEmailBatchSize
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultEmailMaxAttempts
	}
	return &emailDispatchJob{
		logg:        params.Logger,
		queue:       params.Queue,
		sender:      params.Sender,
		batch:       batch,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}, nil
}

type emailDispatchJob struct {
	logg        *logger.Logger
	queue       emailQueue
	sender      mailer.Sender
	batch       int
	maxAttempts int
	now         func() time.Time
}

func (j *emailDispatchJob) Name() string { return "email-dispatch" }

func (j *emailDispatchJob) Run(ctx context.Context) error {
	if j.sender == nil {
		j.logg.Warn(ctx, "email sender not configured; skipping dispatch")
		return nil
	}

	now := j.now().UTC()
	due, err := j.queue.ClaimDue(ctx, now, emailClaimLease, j.batch)
	if err != nil {
		return fmt.Errorf("claim due emails: %w", err)
	}

	var errs error
	sent, failed := 0, 0
	for i := range due {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if err := j.deliver(ctx, due[i]); err != nil {
			errs = multierr.Append(errs, err)
			failed++
			continue
		}
		sent++
	}

	if len(due) > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"claimed": len(due),
			"sent":    sent,
			"failed":  failed,
		}), "email dispatch complete")
	}
	return errs
}

// deliver sends one email. Send failures are recorded on the row and are not
// returned; only bookkeeping failures are.
func (j *emailDispatchJob) deliver(ctx context.Context, email models.EmailQueue) error {
	logCtx := j.logg.WithField(ctx, "email_id", email.ID.String())
	msg := mailer.Message{
		To:       email.ToEmail,
		Subject:  email.Subject,
		HTMLBody: email.HTMLBody,
	}
	if email.FromEmail != nil {
		msg.From = *email.FromEmail
	}
	if email.TextBody != nil {
		msg.TextBody = *email.TextBody
	}

	sendErr := j.sender.Send(ctx, msg)
	if sendErr == nil {
		if err := j.queue.MarkSent(ctx, email.ID, j.now().UTC()); err != nil {
			return fmt.Errorf("mark email %s sent: %w", email.ID, err)
		}
		return nil
	}

	attempt := email.Attempts + 1
	// Rejected messages will never succeed.
	terminal := attempt >= j.maxAttempts || pkgerrors.IsCode(sendErr, pkgerrors.CodeValidation)
	j.logg.Error(j.logg.WithFields(logCtx, map[string]any{
		"attempt":  attempt,
		"terminal": terminal,
	}), "email delivery failed", sendErr)
	if err := j.queue.MarkAttemptFailed(ctx, email.ID, sendErr.Error(), terminal); err != nil {
		return fmt.Errorf("record email %s failure: %w", email.ID, err)
	}
	return nil
}
