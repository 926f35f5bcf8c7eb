package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/alera-fm/alera-backend/api/middleware"
	"github.com/alera-fm/alera-backend/internal/releases"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
)

func actorFromRequest(r *http.Request) (releases.Actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		return releases.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return releases.Actor{UserID: userID, Role: middleware.RoleFromContext(r.Context())}, nil
}
