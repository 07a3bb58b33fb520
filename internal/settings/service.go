package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
)

// KeyCommissionRate stores the global commission fraction, e.g. "0.10".
const KeyCommissionRate = "commission_rate"

var (
	minRate = decimal.Zero
	maxRate = decimal.NewFromInt(1)
)

// Service reads and writes admin-editable settings.
type Service interface {
	CommissionRate(ctx context.Context) (decimal.Decimal, error)
	SetCommissionRate(ctx context.Context, rate decimal.Decimal) (decimal.Decimal, error)
}

type service struct {
	repo     Repository
	fallback decimal.Decimal
}

// NewService wires the settings service. fallback is returned by
// CommissionRate when no rate has been stored.
func NewService(repo Repository, fallback decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if err := validateRate(fallback); err != nil {
		return nil, fmt.Errorf("fallback commission rate: %w", err)
	}
	return &service{repo: repo, fallback: fallback}, nil
}

// CommissionRate reads the stored rate on every call so admin edits apply
// to the next purchase without a restart.
func (s *service) CommissionRate(ctx context.Context) (decimal.Decimal, error) {
	setting, err := s.repo.Get(ctx, KeyCommissionRate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fallback, nil
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission rate")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(setting.Value))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stored commission rate is not a decimal")
	}
	if err := validateRate(rate); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stored commission rate out of range")
	}
	return rate, nil
}

func (s *service) SetCommissionRate(ctx context.Context, rate decimal.Decimal) (decimal.Decimal, error) {
	if err := validateRate(rate); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid commission rate").
			WithDetails(map[string]any{"rate": rate.String(), "min": minRate.String(), "max": maxRate.String()})
	}
	if err := s.repo.Set(ctx, KeyCommissionRate, rate.String()); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store commission rate")
	}
	return rate, nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.LessThan(minRate) || rate.GreaterThan(maxRate) {
		return fmt.Errorf("rate %s outside [%s, %s]", rate.String(), minRate.String(), maxRate.String())
	}
	return nil
}
