package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/alera-fm/alera-backend/api/responses"
	"github.com/alera-fm/alera-backend/api/validators"
	"github.com/alera-fm/alera-backend/internal/releases"
	"github.com/alera-fm/alera-backend/internal/scans"
	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/pagination"
)

type submitScanRequest struct {
	TrackID  *string `json:"track_id,omitempty" validate:"omitempty,uuid"`
	AudioURL string  `json:"audio_url" validate:"required,http_url,max=2048"`
}

// SubmitScan records uploaded track audio and forwards it to the detection vendor.
func SubmitScan(releaseSvc releases.Service, scanSvc scans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		releaseID, err := validators.ParseUUIDParam(r, "releaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req submitScanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var trackID *uuid.UUID
		if req.TrackID != nil {
			id, err := uuid.Parse(*req.TrackID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid track_id"))
				return
			}
			trackID = &id
		}

		if _, err := releaseSvc.Get(r.Context(), actor, releaseID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scan, err := scanSvc.SubmitScan(r.Context(), releaseID, trackID, req.AudioURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, scans.FromModel(*scan))
	}
}

func ListReleaseScans(releaseSvc releases.Service, scanSvc scans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		releaseID, err := validators.ParseUUIDParam(r, "releaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := releaseSvc.Get(r.Context(), actor, releaseID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := scanSvc.ListReleaseScans(r.Context(), releaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, scans.FromModels(rows))
	}
}

// AdminListScanReviews lists flagged scans still waiting on an admin decision, oldest first.
func AdminListScanReviews(svc scans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListPendingReviews(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Page[scans.ScanDTO]{
			Items:      scans.FromModels(page.Items),
			NextCursor: page.NextCursor,
		})
	}
}

type reviewScanRequest struct {
	Decision string `json:"decision" validate:"required,admin_decision"`
	Notes    string `json:"notes" validate:"max=2000"`
}

func AdminReviewScan(svc scans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scanID, err := validators.ParseInt64Param(r, "scanId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reviewScanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scan, err := svc.ReviewScan(r.Context(), scans.ReviewInput{
			ScanID:     scanID,
			ReviewerID: actor.UserID,
			Decision:   enums.AdminDecision(req.Decision),
			Notes:      req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, scans.FromModel(*scan))
	}
}
