package commissions

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCommissionAmountRoundsHalfUp(t *testing.T) {
	cases := map[string]struct {
		purchase string
		rate     string
		want     string
	}{
		"exact":         {"100.00", "0.10", "10.00"},
		"half cent up":  {"0.25", "0.10", "0.03"},
		"below half":    {"0.24", "0.10", "0.02"},
		"zero purchase": {"0", "0.10", "0"},
		"zero rate":     {"49.99", "0", "0"},
		"full rate":     {"49.99", "1", "49.99"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := commissionAmount(decimal.RequireFromString(tc.purchase), decimal.RequireFromString(tc.rate))
			assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestUniqueIDsDropsNilAndDuplicates(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, []uuid.UUID{a, b}, uniqueIDs([]uuid.UUID{a, uuid.Nil, b, a}))
}
