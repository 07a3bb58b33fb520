package commissions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/internal/users"
	"github.com/angelmondragon/courseforge-backend/pkg/db"
	"github.com/angelmondragon/courseforge-backend/pkg/db/models"
	"github.com/angelmondragon/courseforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	"github.com/angelmondragon/courseforge-backend/pkg/migrate"
)

type fixedRate struct {
	rate decimal.Decimal
	err  error
}

func (f fixedRate) CommissionRate(context.Context) (decimal.Decimal, error) {
	return f.rate, f.err
}

type fakeLocker struct {
	lockFn   func(ctx context.Context, id string) (func(context.Context) error, error)
	released []string
}

func (f *fakeLocker) Lock(ctx context.Context, id string) (func(context.Context) error, error) {
	if f.lockFn != nil {
		return f.lockFn(ctx, id)
	}
	return func(context.Context) error {
		f.released = append(f.released, id)
		return nil
	}, nil
}

type fixture struct {
	conn *gorm.DB
	repo Repository
	svc  Service
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:commissions_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

func newFixture(t *testing.T, rate string, opts ...func(*ServiceParams)) *fixture {
	t.Helper()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	params := ServiceParams{
		Repo:  repo,
		Users: users.NewRepository(conn),
		Rates: fixedRate{rate: decimal.RequireFromString(rate)},
		TX:    db.NewFromConn(conn),
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return &fixture{conn: conn, repo: repo, svc: svc}
}

func (f *fixture) user(t *testing.T, sponsorID *uuid.UUID) uuid.UUID {
	t.Helper()
	user := models.User{Email: uuid.NewString() + "@example.com", UserType: enums.UserTypeAffiliate, SponsorID: sponsorID}
	require.NoError(t, f.conn.Create(&user).Error)
	return user.ID
}

// chain creates buyer -> s1 -> ... -> sn and returns [buyer, s1..sn].
func (f *fixture) chain(t *testing.T, ancestors int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, ancestors+1)
	var sponsor *uuid.UUID
	for i := ancestors; i >= 0; i-- {
		ids[i] = f.user(t, sponsor)
		id := ids[i]
		sponsor = &id
	}
	return ids
}

func (f *fixture) commission(t *testing.T, affiliateID uuid.UUID, status enums.CommissionStatus, amount string) models.Commission {
	t.Helper()
	row := models.Commission{
		Amount:      decimal.RequireFromString(amount),
		Level:       1,
		AffiliateID: affiliateID,
		BuyerID:     uuid.New(),
		CourseID:    uuid.New(),
		Status:      status,
	}
	require.NoError(t, f.conn.Create(&row).Error)
	return row
}

func (f *fixture) load(t *testing.T, id uuid.UUID) models.Commission {
	t.Helper()
	var row models.Commission
	require.NoError(t, f.conn.First(&row, "id = ?", id).Error)
	return row
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected coded error, got %v", err)
	assert.Equal(t, code, typed.Code(), typed.Error())
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got.Round(2)), "want %s got %s", want, got)
}

func fixedNow(at time.Time) func(*ServiceParams) {
	return func(p *ServiceParams) {
		p.Now = func() time.Time { return at }
	}
}
