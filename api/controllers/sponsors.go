package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/courseforge-backend/api/middleware"
	"github.com/angelmondragon/courseforge-backend/api/responses"
	"github.com/angelmondragon/courseforge-backend/api/validators"
	"github.com/angelmondragon/courseforge-backend/internal/sponsors"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
	"github.com/angelmondragon/courseforge-backend/pkg/types"
)

type sponsorReassigner interface {
	Reassign(ctx context.Context, input sponsors.ReassignInput) (*sponsors.ReassignResult, error)
}

// reassignRequest requires sponsor_id to be present; null clears the sponsor.
type reassignRequest struct {
	SponsorID   types.NullableUUID `json:"sponsor_id"`
	Recalculate bool               `json:"recalculate"`
}

func AdminReassignSponsor(svc sponsorReassigner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sponsor service unavailable"))
			return
		}

		userID, err := validators.ParseURLUUID(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req reassignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !req.SponsorID.Set {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sponsor_id is required").WithDetails(map[string]any{"field": "sponsor_id"}))
			return
		}

		result, err := svc.Reassign(r.Context(), sponsors.ReassignInput{
			UserID:       userID,
			NewSponsorID: req.SponsorID.Value,
			Recalculate:  req.Recalculate,
			ActorUserID:  middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
