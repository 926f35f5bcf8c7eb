// Package emails owns the scheduled transactional email queue.
package emails

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
	"github.com/alera-fm/alera-backend/pkg/logger"
)

const maxSubjectLength = 998

type enqueuer interface {
	Enqueue(ctx context.Context, email *models.EmailQueue) error
}

// EnqueueInput describes an email to deliver at or after ScheduledAt.
// A zero ScheduledAt means as soon as possible.
type EnqueueInput struct {
	UserID      *uuid.UUID
	To          string
	From        string
	Subject     string
	HTMLBody    string
	TextBody    string
	ScheduledAt time.Time
}

type Service interface {
	Enqueue(ctx context.Context, input EnqueueInput) (*models.EmailQueue, error)
}

type ServiceParams struct {
	Repo   enqueuer
	Logger *logger.Logger
}

type service struct {
	repo enqueuer
	logg *logger.Logger
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("email repo required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Enqueue(ctx context.Context, input EnqueueInput) (*models.EmailQueue, error) {
	to, err := mail.ParseAddress(strings.TrimSpace(input.To))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient address")
	}
	var from *string
	if raw := strings.TrimSpace(input.From); raw != "" {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sender address")
		}
		formatted := addr.String()
		from = &formatted
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}
	if len(subject) > maxSubjectLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject is too long")
	}
	if strings.TrimSpace(input.HTMLBody) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "html body is required")
	}

	scheduledAt := input.ScheduledAt.UTC()
	if input.ScheduledAt.IsZero() {
		scheduledAt = s.now()
	}
	email := &models.EmailQueue{
		UserID:      input.UserID,
		ToEmail:     to.Address,
		FromEmail:   from,
		Subject:     subject,
		HTMLBody:    input.HTMLBody,
		Status:      enums.EmailStatusPending,
		ScheduledAt: scheduledAt,
	}
	if text := strings.TrimSpace(input.TextBody); text != "" {
		email.TextBody = &input.TextBody
	}
	if err := s.repo.Enqueue(ctx, email); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueue email")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"email_id":     email.ID.String(),
		"scheduled_at": scheduledAt,
	}), "email queued")
	return email, nil
}
