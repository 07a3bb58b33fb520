package sponsors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/internal/users"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Recalculation summarizes a rebuild of one buyer's commissions.
type Recalculation struct {
	CommissionsDeleted int64 `json:"commissions_deleted"`
	CommissionsCreated int   `json:"commissions_created"`
	PurchasesReplayed  int   `json:"purchases_replayed"`
}

// Recalculator rebuilds a buyer's commissions from their purchase history
// inside the caller's transaction.
type Recalculator interface {
	RecalculateBuyer(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (Recalculation, error)
}

// Service exposes admin sponsor management.
type Service interface {
	Reassign(ctx context.Context, input ReassignInput) (*ReassignResult, error)
}

// ReassignInput describes an admin sponsor change. A nil NewSponsorID clears
// the sponsor.
type ReassignInput struct {
	UserID       uuid.UUID
	NewSponsorID *uuid.UUID
	Recalculate  bool
	ActorUserID  uuid.UUID
}

// ReassignResult reports the applied sponsor and any recalculation work.
type ReassignResult struct {
	UserID    uuid.UUID  `json:"user_id"`
	SponsorID *uuid.UUID `json:"sponsor_id"`
	Recalculation
}

type service struct {
	users        users.Repository
	tx           txRunner
	recalculator Recalculator
	logg         *logger.Logger
}

// NewService wires the sponsor service. recalculator may be nil, in which
// case reassignments requesting recalculation are rejected.
func NewService(repo users.Repository, tx txRunner, recalculator Recalculator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{users: repo, tx: tx, recalculator: recalculator, logg: logg}, nil
}

func (s *service) Reassign(ctx context.Context, input ReassignInput) (*ReassignResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.NewSponsorID != nil && *input.NewSponsorID == uuid.Nil {
		input.NewSponsorID = nil
	}
	if input.NewSponsorID != nil && *input.NewSponsorID == input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeSponsorCycle, "user cannot sponsor themselves").
			WithDetails(map[string]any{"user_id": input.UserID})
	}
	if input.Recalculate && s.recalculator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission recalculation unavailable")
	}

	result := &ReassignResult{UserID: input.UserID, SponsorID: input.NewSponsorID}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.users.WithTx(tx)

		if _, err := repo.FindByID(ctx, input.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}

		if input.NewSponsorID != nil {
			if _, err := repo.FindByID(ctx, *input.NewSponsorID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "sponsor not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sponsor")
			}

			resolver, err := NewResolver(repo)
			if err != nil {
				return err
			}
			cycle, err := resolver.WouldCreateCycle(ctx, input.UserID, *input.NewSponsorID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "walk sponsor chain")
			}
			if cycle {
				return pkgerrors.New(pkgerrors.CodeSponsorCycle, "user already sponsors the proposed sponsor").
					WithDetails(map[string]any{"user_id": input.UserID, "sponsor_id": *input.NewSponsorID})
			}
		}

		if err := repo.UpdateSponsor(ctx, input.UserID, input.NewSponsorID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sponsor")
		}

		if !input.Recalculate {
			return nil
		}
		recalc, err := s.recalculator.RecalculateBuyer(ctx, tx, input.UserID)
		if err != nil {
			if pkgerrors.As(err) != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recalculate commissions")
		}
		result.Recalculation = recalc
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"user_id":             input.UserID,
			"sponsor_id":          input.NewSponsorID,
			"actor_user_id":       input.ActorUserID,
			"recalculate":         input.Recalculate,
			"commissions_deleted": result.CommissionsDeleted,
			"commissions_created": result.CommissionsCreated,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "sponsor.reassigned")
	}
	return result, nil
}
