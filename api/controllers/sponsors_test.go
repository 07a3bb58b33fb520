package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/courseforge-backend/internal/sponsors"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
)

type stubReassigner struct {
	fn func(ctx context.Context, input sponsors.ReassignInput) (*sponsors.ReassignResult, error)
}

func (s stubReassigner) Reassign(ctx context.Context, input sponsors.ReassignInput) (*sponsors.ReassignResult, error) {
	if s.fn != nil {
		return s.fn(ctx, input)
	}
	return &sponsors.ReassignResult{UserID: input.UserID, SponsorID: input.NewSponsorID}, nil
}

func reassignRequestFor(userID uuid.UUID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	return withURLParam(req, "userID", userID.String())
}

func TestAdminReassignSponsor(t *testing.T) {
	userID, sponsorID := uuid.New(), uuid.New()
	var got sponsors.ReassignInput
	svc := stubReassigner{fn: func(ctx context.Context, input sponsors.ReassignInput) (*sponsors.ReassignResult, error) {
		got = input
		return &sponsors.ReassignResult{UserID: input.UserID, SponsorID: input.NewSponsorID}, nil
	}}

	rec := httptest.NewRecorder()
	AdminReassignSponsor(svc, nil).ServeHTTP(rec, reassignRequestFor(userID, `{"sponsor_id":"`+sponsorID.String()+`","recalculate":true}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if got.UserID != userID || got.NewSponsorID == nil || *got.NewSponsorID != sponsorID || !got.Recalculate {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestAdminReassignSponsorNullClears(t *testing.T) {
	var got sponsors.ReassignInput
	svc := stubReassigner{fn: func(ctx context.Context, input sponsors.ReassignInput) (*sponsors.ReassignResult, error) {
		got = input
		return &sponsors.ReassignResult{UserID: input.UserID}, nil
	}}

	rec := httptest.NewRecorder()
	AdminReassignSponsor(svc, nil).ServeHTTP(rec, reassignRequestFor(uuid.New(), `{"sponsor_id":null}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got.NewSponsorID != nil {
		t.Fatalf("expected cleared sponsor")
	}
}

func TestAdminReassignSponsorRequiresField(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminReassignSponsor(stubReassigner{}, nil).ServeHTTP(rec, reassignRequestFor(uuid.New(), `{"recalculate":false}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminReassignSponsorCycle(t *testing.T) {
	svc := stubReassigner{fn: func(ctx context.Context, input sponsors.ReassignInput) (*sponsors.ReassignResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeSponsorCycle, "sponsor assignment would create a cycle")
	}}
	rec := httptest.NewRecorder()
	AdminReassignSponsor(svc, nil).ServeHTTP(rec, reassignRequestFor(uuid.New(), `{"sponsor_id":"`+uuid.NewString()+`"}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeSponsorCycle) {
		t.Fatalf("unexpected code %s", code)
	}
}
