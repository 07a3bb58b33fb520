package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/courseforge-backend/pkg/db/models"
	"github.com/angelmondragon/courseforge-backend/pkg/enums"
	"github.com/angelmondragon/courseforge-backend/pkg/pagination"
)

// Repository manages persistence for commissions and payout batches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, rows []models.Commission) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Commission, error)
	ListApprovedByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Commission, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CommissionStatus, at time.Time) (bool, error)
	MarkPaid(ctx context.Context, ids []uuid.UUID, paymentID uuid.UUID, at time.Time) (int64, error)
	DeleteByBuyer(ctx context.Context, buyerID uuid.UUID) (int64, error)
	List(ctx context.Context, query listQuery) ([]models.Commission, error)
	TotalsByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]statusTotal, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Commission, error)
}

type listQuery struct {
	status      *enums.CommissionStatus
	affiliateID *uuid.UUID
	buyerID     *uuid.UUID
	limit       int
	cursor      *pagination.Cursor
}

type statusTotal struct {
	Status enums.CommissionStatus
	Total  decimal.Decimal
	Count  int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commissions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateBatch inserts every row in a single statement.
func (r *repository) CreateBatch(ctx context.Context, rows []models.Commission) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	if err := r.db.WithContext(ctx).First(&commission, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &commission, nil
}

// ListApprovedByIDsForUpdate loads the APPROVED subset of ids and row-locks it
// for the surrounding transaction. Drivers without row locking ignore the
// clause.
func (r *repository) ListApprovedByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Commission, error) {
	var rows []models.Commission
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Where("status = ?", enums.CommissionStatusApproved).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus moves a commission from one status to another. It reports
// false when the row no longer holds the expected status.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CommissionStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaid links APPROVED commissions to a payment and returns how many rows
// changed.
func (r *repository) MarkPaid(ctx context.Context, ids []uuid.UUID, paymentID uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id IN ?", ids).
		Where("status = ?", enums.CommissionStatusApproved).
		Updates(map[string]any{
			"status":     enums.CommissionStatusPaid,
			"payment_id": paymentID,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteByBuyer(ctx context.Context, buyerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Delete(&models.Commission{})
	return res.RowsAffected, res.Error
}

// List returns commissions newest first using cursor pagination.
func (r *repository) List(ctx context.Context, opts listQuery) ([]models.Commission, error) {
	query := r.db.WithContext(ctx).Model(&models.Commission{})
	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.affiliateID != nil {
		query = query.Where("affiliate_id = ?", *opts.affiliateID)
	}
	if opts.buyerID != nil {
		query = query.Where("buyer_id = ?", *opts.buyerID)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if opts.limit > 0 {
		query = query.Limit(opts.limit)
	}

	var rows []models.Commission
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) TotalsByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]statusTotal, error) {
	var rows []statusTotal
	err := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Select("status, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("affiliate_id = ?", affiliateID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Commission, error) {
	var rows []models.Commission
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
