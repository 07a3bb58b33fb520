package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/internal/commissions"
	"github.com/angelmondragon/courseforge-backend/internal/sponsors"
	"github.com/angelmondragon/courseforge-backend/pkg/db"
	"github.com/angelmondragon/courseforge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records completed checkouts and replays them for commission
// recalculation.
type Service interface {
	Complete(ctx context.Context, input CompleteInput) (*CompleteResult, error)
	RecalculateBuyer(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (sponsors.Recalculation, error)
}

// CompleteInput is a trusted purchase-completed event.
type CompleteInput struct {
	BuyerID    uuid.UUID
	CourseID   uuid.UUID
	Amount     decimal.Decimal
	ExternalID string
}

// CompleteResult reports the stored purchase. Duplicate is set when the
// event had already been recorded and nothing was written.
type CompleteResult struct {
	Purchase    models.Purchase
	Commissions []models.Commission
	Duplicate   bool
}

type service struct {
	repo   Repository
	ledger commissions.Service
	tx     txRunner
	logg   *logger.Logger
}

// NewService wires the purchases service.
func NewService(repo Repository, ledger commissions.Service, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("commission ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, ledger: ledger, tx: tx, logg: logg}, nil
}

func (s *service) Complete(ctx context.Context, input CompleteInput) (*CompleteResult, error) {
	input.ExternalID = strings.TrimSpace(input.ExternalID)
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.CourseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course id required")
	}
	if input.ExternalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external id required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase amount must be non-negative")
	}

	existing, err := s.repo.FindExisting(ctx, input.ExternalID, input.BuyerID, input.CourseID)
	if err == nil {
		s.logDuplicate(ctx, input, existing)
		return &CompleteResult{Purchase: *existing, Duplicate: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup purchase")
	}

	result := &CompleteResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		purchase := models.Purchase{
			BuyerID:    input.BuyerID,
			CourseID:   input.CourseID,
			Amount:     input.Amount,
			ExternalID: input.ExternalID,
		}
		if err := s.repo.WithTx(tx).Create(ctx, &purchase); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "purchase already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert purchase")
		}

		rows, err := s.ledger.WithTx(tx).RecordCommissions(ctx, commissions.RecordInput{
			BuyerID:    purchase.BuyerID,
			CourseID:   purchase.CourseID,
			PurchaseID: &purchase.ID,
			Amount:     purchase.Amount,
		})
		if err != nil {
			return err
		}
		result.Purchase = purchase
		result.Commissions = rows
		return nil
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeConflict) {
			// Lost a race with a concurrent delivery of the same event.
			if existing, findErr := s.repo.FindExisting(ctx, input.ExternalID, input.BuyerID, input.CourseID); findErr == nil {
				s.logDuplicate(ctx, input, existing)
				return &CompleteResult{Purchase: *existing, Duplicate: true}, nil
			}
		}
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"purchase_id": result.Purchase.ID,
			"buyer_id":    input.BuyerID,
			"course_id":   input.CourseID,
			"amount":      input.Amount.String(),
			"commissions": len(result.Commissions),
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "purchase.completed")
	}
	return result, nil
}

// RecalculateBuyer deletes every commission the buyer generated and records
// each historical purchase again, oldest first, under the current sponsor
// chain.
func (s *service) RecalculateBuyer(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (sponsors.Recalculation, error) {
	var out sponsors.Recalculation
	if buyerID == uuid.Nil {
		return out, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}

	history, err := s.repo.WithTx(tx).ListByBuyer(ctx, buyerID)
	if err != nil {
		return out, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer purchases")
	}

	ledger := s.ledger.WithTx(tx)
	deleted, err := ledger.DeleteForBuyer(ctx, buyerID)
	if err != nil {
		return out, err
	}
	out.CommissionsDeleted = deleted

	for _, purchase := range history {
		rows, err := ledger.RecordCommissions(ctx, commissions.RecordInput{
			BuyerID:    purchase.BuyerID,
			CourseID:   purchase.CourseID,
			PurchaseID: &purchase.ID,
			Amount:     purchase.Amount,
		})
		if err != nil {
			return out, err
		}
		out.CommissionsCreated += len(rows)
		out.PurchasesReplayed++
	}
	return out, nil
}

func (s *service) logDuplicate(ctx context.Context, input CompleteInput, existing *models.Purchase) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"purchase_id": existing.ID,
		"external_id": input.ExternalID,
		"buyer_id":    input.BuyerID,
		"course_id":   input.CourseID,
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "purchase.duplicate_ignored")
}
