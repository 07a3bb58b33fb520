package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/courseforge-backend/api/responses"
	"github.com/angelmondragon/courseforge-backend/api/validators"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
)

type commissionRateSettings interface {
	CommissionRate(ctx context.Context) (decimal.Decimal, error)
	SetCommissionRate(ctx context.Context, rate decimal.Decimal) (decimal.Decimal, error)
}

type commissionRateRequest struct {
	Rate string `json:"rate" validate:"required,decimal_fraction"`
}

type commissionRateResponse struct {
	Rate decimal.Decimal `json:"rate"`
}

func AdminGetCommissionRate(svc commissionRateSettings, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		rate, err := svc.CommissionRate(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, commissionRateResponse{Rate: rate})
	}
}

// AdminSetCommissionRate stores the global rate used for purchases recorded
// from now on. Existing commissions keep their amounts.
func AdminSetCommissionRate(svc commissionRateSettings, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		var req commissionRateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(req.Rate))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rate"))
			return
		}

		stored, err := svc.SetCommissionRate(r.Context(), rate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, commissionRateResponse{Rate: stored})
	}
}
