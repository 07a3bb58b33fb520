package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/pkg/enums"
)

// CommissionUniqueIndex guards against recording the same purchase level twice.
const CommissionUniqueIndex = "ux_commissions_buyer_course_affiliate_level"

// Commission is a credit owed to an affiliate for one level of a buyer's
// sponsor chain. Amount is fixed at creation; only Status, PaymentID and
// UpdatedAt change afterwards.
type Commission struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Amount      decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Level       int                    `gorm:"column:level;not null;uniqueIndex:ux_commissions_buyer_course_affiliate_level,priority:4"`
	AffiliateID uuid.UUID              `gorm:"column:affiliate_id;type:uuid;not null;index;uniqueIndex:ux_commissions_buyer_course_affiliate_level,priority:3"`
	BuyerID     uuid.UUID              `gorm:"column:buyer_id;type:uuid;not null;index;uniqueIndex:ux_commissions_buyer_course_affiliate_level,priority:1"`
	CourseID    uuid.UUID              `gorm:"column:course_id;type:uuid;not null;uniqueIndex:ux_commissions_buyer_course_affiliate_level,priority:2"`
	PurchaseID  *uuid.UUID             `gorm:"column:purchase_id;type:uuid;index"`
	Status      enums.CommissionStatus `gorm:"column:status;type:varchar(16);not null;index"`
	PaymentID   *uuid.UUID             `gorm:"column:payment_id;type:uuid;index"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Commission) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
