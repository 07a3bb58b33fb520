package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/courseforge-backend/api/middleware"
	"github.com/angelmondragon/courseforge-backend/api/responses"
	"github.com/angelmondragon/courseforge-backend/api/validators"
	"github.com/angelmondragon/courseforge-backend/internal/commissions"
	"github.com/angelmondragon/courseforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
	"github.com/angelmondragon/courseforge-backend/pkg/pagination"
)

type commissionReader interface {
	List(ctx context.Context, params commissions.ListParams) (*commissions.ListResult, error)
	Totals(ctx context.Context, affiliateID uuid.UUID) (*commissions.Totals, error)
}

type commissionStatusSetter interface {
	SetStatus(ctx context.Context, id uuid.UUID, status enums.CommissionStatus) (*commissions.Item, error)
}

type payoutProcessor interface {
	ProcessPayment(ctx context.Context, input commissions.PayoutInput) (*commissions.PayoutResult, error)
}

type paymentReader interface {
	FindPayment(ctx context.Context, id uuid.UUID) (*commissions.PaymentDetail, error)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type payoutRequest struct {
	CommissionIDs []uuid.UUID `json:"commission_ids" validate:"required,min=1,dive,required"`
	Method        string      `json:"method" validate:"required"`
	Notes         string      `json:"notes" validate:"max=2000"`
}

func parseListParams(r *http.Request) (commissions.ListParams, error) {
	var params commissions.ListParams

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return params, err
	}
	status, err := validators.ParseQueryEnum(r, "status", enums.ParseCommissionStatus)
	if err != nil {
		return params, err
	}
	buyerID, err := validators.ParseQueryUUID(r, "buyer_id")
	if err != nil {
		return params, err
	}

	params.Status = status
	params.BuyerID = buyerID
	params.Params = pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	return params, nil
}

// AdminListCommissions returns the audit listing across all affiliates.
func AdminListCommissions(svc commissionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		affiliateID, err := validators.ParseQueryUUID(r, "affiliate_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.AffiliateID = affiliateID

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, page.Items, page.Cursor)
	}
}

func AdminCommissionTotals(svc commissionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		affiliateID, err := validators.ParseQueryUUID(r, "affiliate_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if affiliateID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "affiliate_id is required").WithDetails(map[string]any{"field": "affiliate_id"}))
			return
		}

		totals, err := svc.Totals(r.Context(), *affiliateID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, totals)
	}
}

// AdminSetCommissionStatus applies a manual review decision.
func AdminSetCommissionStatus(svc commissionStatusSetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		commissionID, err := validators.ParseURLUUID(r, "commissionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseCommissionStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"}))
			return
		}

		item, err := svc.SetStatus(r.Context(), commissionID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// AdminProcessPayout settles a batch of approved commissions for one affiliate.
func AdminProcessPayout(svc payoutProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		var req payoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePayoutMethod(req.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout method").WithDetails(map[string]any{"field": "method"}))
			return
		}

		result, err := svc.ProcessPayment(r.Context(), commissions.PayoutInput{
			CommissionIDs: req.CommissionIDs,
			Method:        method,
			Notes:         validators.SanitizeString(req.Notes, 2000),
			ActorUserID:   middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func AdminGetPayment(svc paymentReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		paymentID, err := validators.ParseURLUUID(r, "paymentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.FindPayment(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// AffiliateCommissions lists the caller's own commissions. An affiliate_id
// query parameter is ignored.
func AffiliateCommissions(svc commissionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		callerID := middleware.UserIDFromContext(r.Context())
		if callerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing caller"))
			return
		}

		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.AffiliateID = &callerID

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, page.Items, page.Cursor)
	}
}

func AffiliateTotals(svc commissionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		callerID := middleware.UserIDFromContext(r.Context())
		if callerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing caller"))
			return
		}

		totals, err := svc.Totals(r.Context(), callerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, totals)
	}
}
