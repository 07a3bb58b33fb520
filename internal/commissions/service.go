package commissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/internal/sponsors"
	"github.com/angelmondragon/courseforge-backend/internal/users"
	"github.com/angelmondragon/courseforge-backend/pkg/db"
	"github.com/angelmondragon/courseforge-backend/pkg/db/models"
	"github.com/angelmondragon/courseforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
	"github.com/angelmondragon/courseforge-backend/pkg/metrics"
	"github.com/angelmondragon/courseforge-backend/pkg/pagination"
	"github.com/angelmondragon/courseforge-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RateProvider returns the current global commission fraction.
type RateProvider interface {
	CommissionRate(ctx context.Context) (decimal.Decimal, error)
}

// Locker serializes payouts per affiliate across API replicas.
type Locker interface {
	Lock(ctx context.Context, id string) (func(context.Context) error, error)
}

// Service is the commission ledger: creation, status changes, payouts and
// read projections.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordCommissions(ctx context.Context, input RecordInput) ([]models.Commission, error)
	DeleteForBuyer(ctx context.Context, buyerID uuid.UUID) (int64, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.CommissionStatus) (*Item, error)
	ProcessPayment(ctx context.Context, input PayoutInput) (*PayoutResult, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Totals(ctx context.Context, affiliateID uuid.UUID) (*Totals, error)
	FindPayment(ctx context.Context, id uuid.UUID) (*PaymentDetail, error)
}

// ServiceParams bundles the dependencies required to build the ledger.
type ServiceParams struct {
	Repo    Repository
	Users   users.Repository
	Rates   RateProvider
	TX      txRunner
	Locker  Locker
	Metrics *metrics.CommissionMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    Repository
	users   users.Repository
	rates   RateProvider
	tx      txRunner
	locker  Locker
	metrics *metrics.CommissionMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService constructs the ledger. Locker, Metrics and Logger are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("commissions repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Rates == nil {
		return nil, fmt.Errorf("rate provider required")
	}
	if params.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		users:   params.Users,
		rates:   params.Rates,
		tx:      params.TX,
		locker:  params.Locker,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// WithTx returns a ledger whose reads and writes join tx.
func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.repo = s.repo.WithTx(tx)
	clone.users = s.users.WithTx(tx)
	clone.tx = joinedTx{tx: tx}
	return &clone
}

// joinedTx runs callbacks on an already open transaction.
type joinedTx struct {
	tx *gorm.DB
}

func (j joinedTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(j.tx)
}

func (s *service) RecordCommissions(ctx context.Context, input RecordInput) ([]models.Commission, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.CourseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course id required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase amount must be non-negative").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}

	rate, err := s.rates.CommissionRate(ctx)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission rate")
	}

	resolver, err := sponsors.NewResolver(s.users)
	if err != nil {
		return nil, err
	}
	chain, err := resolver.ResolveChain(ctx, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve sponsor chain")
	}
	if len(chain) == 0 {
		return []models.Commission{}, nil
	}

	amount := commissionAmount(input.Amount, rate)
	rows := make([]models.Commission, 0, len(chain))
	for _, link := range chain {
		rows = append(rows, models.Commission{
			Amount:      amount,
			Level:       link.Level,
			AffiliateID: link.AffiliateID,
			BuyerID:     input.BuyerID,
			CourseID:    input.CourseID,
			PurchaseID:  input.PurchaseID,
			Status:      enums.CommissionStatusPending,
		})
	}

	if err := s.repo.CreateBatch(ctx, rows); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "commissions already recorded for purchase").
				WithDetails(map[string]any{"buyer_id": input.BuyerID, "course_id": input.CourseID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert commissions")
	}

	total := amount.Mul(decimal.NewFromInt(int64(len(rows))))
	s.metrics.ObserveRecorded(len(rows), total)
	if s.logg != nil {
		fields := map[string]any{
			"buyer_id":    input.BuyerID,
			"course_id":   input.CourseID,
			"rate":        rate.String(),
			"amount":      amount.String(),
			"commissions": len(rows),
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "commissions.recorded")
	}
	return rows, nil
}

func (s *service) DeleteForBuyer(ctx context.Context, buyerID uuid.UUID) (int64, error) {
	if buyerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	deleted, err := s.repo.DeleteByBuyer(ctx, buyerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete buyer commissions")
	}
	return deleted, nil
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.CommissionStatus) (*Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid commission status").
			WithDetails(map[string]any{"status": status, "allowed": enums.CommissionStatuses()})
	}
	if status == enums.CommissionStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "commissions are marked paid through a payout").
			WithDetails(map[string]any{"status": status})
	}

	var updated *models.Commission
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission")
		}
		if current.Status == status {
			updated = current
			return nil
		}
		if current.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "commission is in a terminal status").
				WithDetails(map[string]any{"from": current.Status, "to": status})
		}
		if !current.Status.CanSetManually(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "commission status transition not allowed").
				WithDetails(map[string]any{"from": current.Status, "to": status})
		}

		at := s.now()
		ok, err := repo.UpdateStatus(ctx, id, current.Status, status, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update commission status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "commission status changed concurrently").
				WithDetails(map[string]any{"from": current.Status, "to": status})
		}

		s.metrics.IncTransition(current.Status.String(), status.String())
		current.Status = status
		current.UpdatedAt = at
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	item := toItem(*updated)
	return &item, nil
}

func (s *service) ProcessPayment(ctx context.Context, input PayoutInput) (*PayoutResult, error) {
	result, err := s.processPayment(ctx, input)
	if err != nil {
		reason := string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			reason = string(typed.Code())
		}
		s.metrics.IncPayoutFailure(reason)
		return nil, err
	}
	s.metrics.ObservePayout(result.TotalAmount)
	if s.logg != nil {
		fields := map[string]any{
			"payment_id":    result.PaymentID,
			"affiliate_id":  result.AffiliateID,
			"total_amount":  result.TotalAmount.String(),
			"commissions":   result.CommissionsCount,
			"actor_user_id": input.ActorUserID,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "payout.processed")
	}
	return result, nil
}

func (s *service) processPayment(ctx context.Context, input PayoutInput) (*PayoutResult, error) {
	ids := uniqueIDs(input.CommissionIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission ids required")
	}
	if input.Method == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"method": input.Method})
	}

	var result *PayoutResult
	var release func(context.Context) error
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		rows, err := repo.ListApprovedByIDsForUpdate(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load approved commissions")
		}
		if len(rows) == 0 {
			return pkgerrors.New(pkgerrors.CodeNoPayableCommissions, "none of the selected commissions are approved").
				WithDetails(map[string]any{"requested": len(ids)})
		}
		affiliateID, err := singleAffiliate(rows)
		if err != nil {
			return err
		}

		if s.locker != nil {
			unlock, err := s.locker.Lock(ctx, affiliateID.String())
			if err != nil {
				if errors.Is(err, redis.ErrLockHeld) {
					return pkgerrors.New(pkgerrors.CodeConflict, "payout already in progress for affiliate").
						WithDetails(map[string]any{"affiliate_id": affiliateID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payout lock")
			}
			release = unlock
		}

		now := s.now()
		payment := &models.Payment{
			AffiliateID: affiliateID,
			Method:      input.Method,
			Notes:       input.Notes,
			PaymentDate: now,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		paidIDs := make([]uuid.UUID, len(rows))
		for i, row := range rows {
			paidIDs[i] = row.ID
		}
		changed, err := repo.MarkPaid(ctx, paidIDs, payment.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark commissions paid")
		}
		if changed != int64(len(paidIDs)) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "commission statuses changed during payout").
				WithDetails(map[string]any{"expected": len(paidIDs), "updated": changed})
		}

		result = &PayoutResult{
			PaymentID:        payment.ID,
			AffiliateID:      affiliateID,
			TotalAmount:      sumAmounts(rows, func(c models.Commission) decimal.Decimal { return c.Amount }),
			CommissionsCount: len(rows),
			PaymentDate:      now,
		}
		return nil
	})
	if release != nil {
		if relErr := release(ctx); relErr != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "payout.lock_release_failed")
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func singleAffiliate(rows []models.Commission) (uuid.UUID, error) {
	affiliateID := rows[0].AffiliateID
	seen := map[uuid.UUID]struct{}{affiliateID: {}}
	for _, row := range rows[1:] {
		seen[row.AffiliateID] = struct{}{}
	}
	if len(seen) > 1 {
		affiliates := make([]uuid.UUID, 0, len(seen))
		for id := range seen {
			affiliates = append(affiliates, id)
		}
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeMixedAffiliates, "payout batch must pay exactly one affiliate").
			WithDetails(map[string]any{"affiliate_ids": affiliates})
	}
	return affiliateID, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid commission status").
			WithDetails(map[string]any{"status": *params.Status})
	}

	query := listQuery{
		status:      params.Status,
		affiliateID: params.AffiliateID,
		buyerID:     params.BuyerID,
		limit:       pagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
	}

	rows, nextCursor := pagination.Page(rows, params.Limit, func(c models.Commission) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return &ListResult{Items: toItems(rows), Cursor: nextCursor}, nil
}

func (s *service) Totals(ctx context.Context, affiliateID uuid.UUID) (*Totals, error) {
	if affiliateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "affiliate id required")
	}
	rows, err := s.repo.TotalsByAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate commissions")
	}

	totals := &Totals{
		AffiliateID: affiliateID,
		ByStatus:    make(map[enums.CommissionStatus]StatusTotal, len(enums.CommissionStatuses())),
		Payable:     decimal.Zero,
		Paid:        decimal.Zero,
		Lifetime:    decimal.Zero,
	}
	for _, status := range enums.CommissionStatuses() {
		totals.ByStatus[status] = StatusTotal{Total: decimal.Zero}
	}
	for _, row := range rows {
		bucket := StatusTotal{Total: roundMoney(row.Total), Count: row.Count}
		totals.ByStatus[row.Status] = bucket
		if row.Status != enums.CommissionStatusDeclined {
			totals.Lifetime = totals.Lifetime.Add(bucket.Total)
		}
	}
	totals.Payable = totals.ByStatus[enums.CommissionStatusApproved].Total
	totals.Paid = totals.ByStatus[enums.CommissionStatusPaid].Total
	totals.Lifetime = roundMoney(totals.Lifetime)
	return totals, nil
}

func (s *service) FindPayment(ctx context.Context, id uuid.UUID) (*PaymentDetail, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindPayment(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	rows, err := s.repo.ListByPayment(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment commissions")
	}
	return &PaymentDetail{
		ID:          payment.ID,
		AffiliateID: payment.AffiliateID,
		Method:      payment.Method,
		Notes:       payment.Notes,
		PaymentDate: payment.PaymentDate,
		TotalAmount: sumAmounts(rows, func(c models.Commission) decimal.Decimal { return c.Amount }),
		Commissions: toItems(rows),
	}, nil
}
