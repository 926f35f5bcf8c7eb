package controllers

import (
	"net/http"
	"strings"

	"github.com/alera-fm/alera-backend/api/responses"
	"github.com/alera-fm/alera-backend/api/validators"
	"github.com/alera-fm/alera-backend/internal/releases"
	"github.com/alera-fm/alera-backend/internal/scans"
	"github.com/alera-fm/alera-backend/pkg/enums"
	"github.com/alera-fm/alera-backend/pkg/logger"
)

type createReleaseRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	ReleaseType string   `json:"release_type" validate:"required,release_type"`
	TrackTitles []string `json:"track_titles" validate:"max=50,dive,required"`
}

// CreateRelease starts a draft release for the caller, subject to their plan's release cap.
func CreateRelease(svc releases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createReleaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		release, err := svc.Create(r.Context(), actor, releases.CreateInput{
			Title:       strings.TrimSpace(req.Title),
			ReleaseType: enums.ReleaseType(req.ReleaseType),
			TrackTitles: req.TrackTitles,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, release)
	}
}

func ListReleases(svc releases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByArtist(r.Context(), actor.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetRelease(svc releases.Service, logg *logger.Logger) http.HandlerFunc {
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

		release, err := svc.Get(r.Context(), actor, releaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, release)
	}
}

// SubmitRelease moves a draft or rejected release into admin review. A blocked
// submission comes back as 422 carrying the scan gate's reason.
func SubmitRelease(svc releases.Service, logg *logger.Logger) http.HandlerFunc {
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

		release, err := svc.SubmitForReview(r.Context(), actor, releaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, release)
	}
}

// SubmissionCheck reports whether the release would currently pass the scan gate.
// It never changes state.
func SubmissionCheck(releaseSvc releases.Service, scanSvc scans.Service, logg *logger.Logger) http.HandlerFunc {
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

		decision, err := scanSvc.CanSubmitRelease(r.Context(), releaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

type updateReleaseStatusRequest struct {
	Status string `json:"status" validate:"required,release_status"`
}

// AdminUpdateReleaseStatus applies an admin workflow transition.
func AdminUpdateReleaseStatus(svc releases.Service, logg *logger.Logger) http.HandlerFunc {
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
		var req updateReleaseStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		release, err := svc.UpdateStatus(r.Context(), actor, releaseID, enums.ReleaseStatus(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, release)
	}
}
