package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/pkg/enums"
)

// Payment is one payout batch to a single affiliate.
type Payment struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	AffiliateID uuid.UUID          `gorm:"column:affiliate_id;type:uuid;not null;index"`
	Method      enums.PayoutMethod `gorm:"column:method;type:varchar(32);not null"`
	Notes       string             `gorm:"column:notes;not null;default:''"`
	PaymentDate time.Time          `gorm:"column:payment_date;not null"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
