package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/courseforge-backend/pkg/redis"
)

const payoutsPath = "/api/admin/v1/commissions/payouts"

func newTestStore(t *testing.T) *pkgredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return pkgredis.NewFromRedis(raw)
}

func newPayoutRequest(body string, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, payoutsPath, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	mw := Idempotency(newTestStore(t), nil, PayoutIdempotencyTTL)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := newPayoutRequest(`{"commission_ids":[]}`, "")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	mw := Idempotency(newTestStore(t), nil, PayoutIdempotencyTTL)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"payment_id":"p1"}`))
	})

	for i := 0; i < 2; i++ {
		req := newPayoutRequest(`{"ids":["a"]}`, "abc")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d", i, rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Fatalf("expected content-type header preserved")
		}
		if strings.TrimSpace(rec.Body.String()) != `{"payment_id":"p1"}` {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
		if replayed := rec.Header().Get("Idempotent-Replayed") == "true"; replayed != (i == 1) {
			t.Fatalf("attempt %d: unexpected replay header %q", i, rec.Header().Get("Idempotent-Replayed"))
		}
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDoesNotCacheServerErrors(t *testing.T) {
	mw := Idempotency(newTestStore(t), nil, PayoutIdempotencyTTL)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := newPayoutRequest(`{}`, "retry")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected retry after 503 to reach handler, calls=%d", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newTestStore(t), nil, PayoutIdempotencyTTL)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), newPayoutRequest(`{"ids":["a"]}`, "xyz"))

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, newPayoutRequest(`{"ids":["b"]}`, "xyz"))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyKeysAreScopedByPath(t *testing.T) {
	mw := Idempotency(newTestStore(t), nil, DefaultIdempotencyTTL)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/api/admin/v1/users/a/sponsor", "/api/admin/v1/users/b/sponsor"} {
		req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"sponsor_id":null}`))
		req.Header.Set(IdempotencyHeader, "same-key")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected distinct paths to run independently, calls=%d", calls)
	}
}

func TestIdempotencyWithoutStoreIsPassthrough(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	Idempotency(nil, nil, DefaultIdempotencyTTL)(handler).ServeHTTP(httptest.NewRecorder(), newPayoutRequest(`{}`, ""))
	if !called {
		t.Fatal("expected passthrough when no store is configured")
	}
}
