package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/alera-fm/alera-backend/api/responses"
	"github.com/alera-fm/alera-backend/api/validators"
	"github.com/alera-fm/alera-backend/internal/emails"
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	"github.com/alera-fm/alera-backend/pkg/logger"
)

type enqueueEmailRequest struct {
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	To          string     `json:"to" validate:"required,email"`
	From        string     `json:"from,omitempty" validate:"omitempty,email"`
	Subject     string     `json:"subject" validate:"required,max=998"`
	HTMLBody    string     `json:"html_body" validate:"required"`
	TextBody    string     `json:"text_body,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type queuedEmailResponse struct {
	ID          uuid.UUID         `json:"id"`
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	Status      enums.EmailStatus `json:"status"`
	ScheduledAt time.Time         `json:"scheduled_at"`
}

func fromQueuedEmail(m *models.EmailQueue) queuedEmailResponse {
	return queuedEmailResponse{
		ID:          m.ID,
		To:          m.ToEmail,
		Subject:     m.Subject,
		Status:      m.Status,
		ScheduledAt: m.ScheduledAt,
	}
}

// AdminEnqueueEmail schedules an email for the dispatch worker.
func AdminEnqueueEmail(svc emails.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enqueueEmailRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := emails.EnqueueInput{
			UserID:   req.UserID,
			To:       req.To,
			From:     req.From,
			Subject:  req.Subject,
			HTMLBody: req.HTMLBody,
			TextBody: req.TextBody,
		}
		if req.ScheduledAt != nil {
			input.ScheduledAt = *req.ScheduledAt
		}

		queued, err := svc.Enqueue(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, fromQueuedEmail(queued))
	}
}
