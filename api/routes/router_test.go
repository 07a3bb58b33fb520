package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/internal/commissions"
	"github.com/angelmondragon/courseforge-backend/internal/settings"
	"github.com/angelmondragon/courseforge-backend/internal/users"
	"github.com/angelmondragon/courseforge-backend/pkg/auth"
	"github.com/angelmondragon/courseforge-backend/pkg/config"
	"github.com/angelmondragon/courseforge-backend/pkg/db"
	"github.com/angelmondragon/courseforge-backend/pkg/db/models"
	"github.com/angelmondragon/courseforge-backend/pkg/enums"
	"github.com/angelmondragon/courseforge-backend/pkg/metrics"
	"github.com/angelmondragon/courseforge-backend/pkg/migrate"
	pkgredis "github.com/angelmondragon/courseforge-backend/pkg/redis"
)

type testServer struct {
	cfg     *config.Config
	conn    *gorm.DB
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:routes_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(conn))
	client := db.NewFromConn(conn)

	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	redisClient := pkgredis.NewFromRedis(raw)

	settingsSvc, err := settings.NewService(settings.NewRepository(conn), decimal.RequireFromString("0.10"))
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	ledger, err := commissions.NewService(commissions.ServiceParams{
		Repo:    commissions.NewRepository(conn),
		Users:   users.NewRepository(conn),
		Rates:   settingsSvc,
		TX:      client,
		Metrics: metrics.NewCommissionMetrics(registry),
	})
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "courseforge", ExpirationMinutes: 10},
	}
	handler := NewRouter(cfg, nil, Dependencies{
		DB:          client,
		Redis:       redisClient,
		Gatherer:    registry,
		Commissions: ledger,
		Settings:    settingsSvc,
	})
	return &testServer{cfg: cfg, conn: conn, handler: handler}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role enums.UserType) string {
	t.Helper()
	token, err := auth.MintAccessToken(s.cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func (s *testServer) do(method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) commission(t *testing.T, affiliateID uuid.UUID, status enums.CommissionStatus) models.Commission {
	t.Helper()
	row := models.Commission{
		Amount:      decimal.RequireFromString("10.00"),
		Level:       1,
		AffiliateID: affiliateID,
		BuyerID:     uuid.New(),
		CourseID:    uuid.New(),
		Status:      status,
	}
	require.NoError(t, s.conn.Create(&row).Error)
	return row
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health/live", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-Courseforge-Env"))

	rec = s.do(http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/admin/v1/commissions", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/v1/commissions", s.token(t, uuid.New(), enums.UserTypeAffiliate), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/v1/commissions", s.token(t, uuid.New(), enums.UserTypeAdmin), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAffiliateCommissionsAreScopedToCaller(t *testing.T) {
	s := newTestServer(t)
	affiliateID := uuid.New()
	own := s.commission(t, affiliateID, enums.CommissionStatusPending)
	s.commission(t, uuid.New(), enums.CommissionStatusPending)

	rec := s.do(http.MethodGet, "/api/v1/affiliate/commissions", s.token(t, affiliateID, enums.UserTypeStudent), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page struct {
		Data []commissions.Item `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, own.ID, page.Data[0].ID)
}

func TestStatusChangeRequiresIdempotencyKeyAndReplays(t *testing.T) {
	s := newTestServer(t)
	row := s.commission(t, uuid.New(), enums.CommissionStatusPending)
	admin := s.token(t, uuid.New(), enums.UserTypeAdmin)
	path := "/api/admin/v1/commissions/" + row.ID.String() + "/status"

	rec := s.do(http.MethodPatch, path, admin, `{"status":"approved"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	key := map[string]string{"Idempotency-Key": "approve-1"}
	first := s.do(http.MethodPatch, path, admin, `{"status":"approved"}`, key)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	replay := s.do(http.MethodPatch, path, admin, `{"status":"approved"}`, key)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	var stored models.Commission
	require.NoError(t, s.conn.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, enums.CommissionStatusApproved, stored.Status)
}

func TestCommissionRateSettings(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, uuid.New(), enums.UserTypeAdmin)

	rec := s.do(http.MethodPut, "/api/admin/v1/settings/commission-rate", admin, `{"rate":"0.2"}`, map[string]string{"Idempotency-Key": "rate-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/admin/v1/settings/commission-rate", admin, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rate":"0.2"`)
}

func TestStripeWebhookDisabledWithoutClient(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/v1/webhooks/stripe", "", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
