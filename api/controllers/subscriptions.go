package controllers

import (
	"net/http"

	"github.com/alera-fm/alera-backend/api/responses"
	"github.com/alera-fm/alera-backend/api/validators"
	"github.com/alera-fm/alera-backend/internal/subscriptions"
	"github.com/alera-fm/alera-backend/pkg/enums"
	"github.com/alera-fm/alera-backend/pkg/logger"
)

type entitlementCheckRequest struct {
	Feature     string `json:"feature" validate:"required,feature"`
	ReleaseType string `json:"release_type,omitempty" validate:"omitempty,release_type"`
	Tokens      int64  `json:"tokens,omitempty" validate:"gte=0"`
	Tab         string `json:"tab,omitempty"`
}

// CheckEntitlement answers whether the caller's plan allows a feature. A denial
// is a normal 200 response with allowed=false.
func CheckEntitlement(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req entitlementCheckRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := svc.CheckEntitlement(r.Context(), actor.UserID, enums.Feature(req.Feature), subscriptions.EntitlementContext{
			ReleaseType: enums.ReleaseType(req.ReleaseType),
			Tokens:      req.Tokens,
			Tab:         enums.FanZoneTab(req.Tab),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

type trackAIUsageRequest struct {
	Tokens int64 `json:"tokens" validate:"required,gt=0"`
}

func TrackAIUsage(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req trackAIUsageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.TrackAIUsage(r.Context(), actor.UserID, req.Tokens); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]int64{"tokens": req.Tokens})
	}
}

func SubscriptionSummary(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
