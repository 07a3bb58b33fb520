package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase records a completed checkout. ExternalID is the payment
// processor's session identifier. A buyer owns a course at most once.
type Purchase struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID    uuid.UUID       `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:ux_purchases_buyer_course,priority:1"`
	CourseID   uuid.UUID       `gorm:"column:course_id;type:uuid;not null;uniqueIndex:ux_purchases_buyer_course,priority:2"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	ExternalID string          `gorm:"column:external_id;not null;uniqueIndex"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
