package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/pkg/enums"
)

// User is owned by the auth collaborator; the commission engine only reads it
// and rewrites SponsorID.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email        string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name         string         `gorm:"column:name;not null;default:''"`
	UserType     enums.UserType `gorm:"column:user_type;type:varchar(16);not null;default:'student'"`
	SponsorID    *uuid.UUID     `gorm:"column:sponsor_id;type:uuid;index"`
	ReferralSlug *string        `gorm:"column:referral_slug;uniqueIndex"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
