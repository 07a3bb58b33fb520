package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/pkg/db/models"
)

// Repository exposes the user reads and sponsor writes the commission engine
// needs. Accounts themselves are created by the auth flow.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindSponsorID(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)
	UpdateSponsor(ctx context.Context, id uuid.UUID, sponsorID *uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID loads a user by their UUID.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindSponsorID returns the sponsor reference of the user, nil when the user
// has none, and gorm.ErrRecordNotFound when the user does not exist.
func (r *repository) FindSponsorID(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	var row struct {
		SponsorID *uuid.UUID
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("sponsor_id").
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return row.SponsorID, nil
}

// UpdateSponsor overwrites the user's sponsor reference. A nil sponsorID
// clears it.
func (r *repository) UpdateSponsor(ctx context.Context, id uuid.UUID, sponsorID *uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("sponsor_id", sponsorID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
