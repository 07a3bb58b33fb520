package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/courseforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
)

type payoutBody struct {
	CommissionIDs []string `json:"commission_ids" validate:"required,min=1,dive,uuid"`
	Method        string   `json:"method" validate:"required"`
}

type rateBody struct {
	Rate string `json:"rate" validate:"required,decimal_fraction"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"commission_ids":["`+uuid.NewString()+`"],"method":"cash"}`))
	var body payoutBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, "cash", body.Method)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"method":"cash","extra":1}`))
	var body payoutBody
	err := DecodeJSONBody(req, &body)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"commission_ids":["nope"]}`))
	var body payoutBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["method"])
	assert.Contains(t, details, "commission_ids[0]")
}

func TestDecimalFractionTag(t *testing.T) {
	for raw, valid := range map[string]bool{"0": true, "0.15": true, "1": true, "1.01": false, "-0.1": false, "abc": false} {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"rate":"`+raw+`"}`))
		var body rateBody
		err := DecodeJSONBody(req, &body)
		assert.Equal(t, valid, err == nil, "rate %q", raw)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&affiliate_id="+id.String()+"&status=approved&bad=x", nil)

	limit, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	_, err = ParseQueryInt(req, "bad", 25, 1, 100)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	got, err := ParseQueryUUID(req, "affiliate_id")
	require.NoError(t, err)
	assert.Equal(t, id, *got)

	missing, err := ParseQueryUUID(req, "buyer_id")
	require.NoError(t, err)
	assert.Nil(t, missing)

	status, err := ParseQueryEnum(req, "status", enums.ParseCommissionStatus)
	require.NoError(t, err)
	assert.Equal(t, enums.CommissionStatusApproved, *status)

	_, err = ParseQueryEnum(req, "bad", enums.ParseCommissionStatus)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseURLUUID(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("id", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseURLUUID(req, "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseURLUUID(req, "missing")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "wire ref", SanitizeString("  wire ref  ", 0))
	assert.Equal(t, "pagé", SanitizeString("pagéda", 4))
}
