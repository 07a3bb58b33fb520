package commissions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/courseforge-backend/pkg/db/models"
	"github.com/angelmondragon/courseforge-backend/pkg/enums"
	"github.com/angelmondragon/courseforge-backend/pkg/pagination"
)

// RecordInput describes a completed purchase whose sponsor chain earns
// commissions. Amount is in major currency units.
type RecordInput struct {
	BuyerID    uuid.UUID
	CourseID   uuid.UUID
	PurchaseID *uuid.UUID
	Amount     decimal.Decimal
}

// PayoutInput selects commissions to settle in one payment batch.
type PayoutInput struct {
	CommissionIDs []uuid.UUID
	Method        enums.PayoutMethod
	Notes         string
	ActorUserID   uuid.UUID
}

// PayoutResult summarizes a committed payment batch.
type PayoutResult struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	AffiliateID      uuid.UUID       `json:"affiliate_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CommissionsCount int             `json:"commissions_count"`
	PaymentDate      time.Time       `json:"payment_date"`
}

// ListParams filters the commission audit listing.
type ListParams struct {
	Status      *enums.CommissionStatus
	AffiliateID *uuid.UUID
	BuyerID     *uuid.UUID
	pagination.Params
}

// ListResult is one page of commissions.
type ListResult struct {
	Items  []Item `json:"items"`
	Cursor string `json:"cursor"`
}

// Item is the API projection of a commission.
type Item struct {
	ID          uuid.UUID              `json:"id"`
	Amount      decimal.Decimal        `json:"amount"`
	Level       int                    `json:"level"`
	AffiliateID uuid.UUID              `json:"affiliate_id"`
	BuyerID     uuid.UUID              `json:"buyer_id"`
	CourseID    uuid.UUID              `json:"course_id"`
	PurchaseID  *uuid.UUID             `json:"purchase_id,omitempty"`
	Status      enums.CommissionStatus `json:"status"`
	PaymentID   *uuid.UUID             `json:"payment_id,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// StatusTotal aggregates one status bucket.
type StatusTotal struct {
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

// Totals aggregates an affiliate's commissions by status. Payable equals the
// APPROVED bucket.
type Totals struct {
	AffiliateID uuid.UUID                               `json:"affiliate_id"`
	ByStatus    map[enums.CommissionStatus]StatusTotal `json:"by_status"`
	Payable     decimal.Decimal                         `json:"payable"`
	Paid        decimal.Decimal                         `json:"paid"`
	Lifetime    decimal.Decimal                         `json:"lifetime"`
}

// PaymentDetail is a payment batch with the commissions it settled.
type PaymentDetail struct {
	ID          uuid.UUID          `json:"id"`
	AffiliateID uuid.UUID          `json:"affiliate_id"`
	Method      enums.PayoutMethod `json:"method"`
	Notes       string             `json:"notes"`
	PaymentDate time.Time          `json:"payment_date"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Commissions []Item             `json:"commissions"`
}

func toItem(m models.Commission) Item {
	return Item{
		ID:          m.ID,
		Amount:      roundMoney(m.Amount),
		Level:       m.Level,
		AffiliateID: m.AffiliateID,
		BuyerID:     m.BuyerID,
		CourseID:    m.CourseID,
		PurchaseID:  m.PurchaseID,
		Status:      m.Status,
		PaymentID:   m.PaymentID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toItems(rows []models.Commission) []Item {
	items := make([]Item, len(rows))
	for i, row := range rows {
		items[i] = toItem(row)
	}
	return items
}
