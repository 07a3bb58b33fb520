package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/courseforge-backend/pkg/db/models"
	"github.com/angelmondragon/courseforge-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.User{}))
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, sponsorID *uuid.UUID) models.User {
	t.Helper()
	user := models.User{
		Email:     uuid.NewString() + "@example.com",
		UserType:  enums.UserTypeStudent,
		SponsorID: sponsorID,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

func TestRepositoryFindSponsorID(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	sponsor := seedUser(t, conn, nil)
	buyer := seedUser(t, conn, &sponsor.ID)

	got, err := repo.FindSponsorID(ctx, buyer.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sponsor.ID, *got)

	got, err = repo.FindSponsorID(ctx, sponsor.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = repo.FindSponsorID(ctx, uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryUpdateSponsor(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	sponsor := seedUser(t, conn, nil)
	user := seedUser(t, conn, nil)

	require.NoError(t, repo.UpdateSponsor(ctx, user.ID, &sponsor.ID))
	loaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.SponsorID)
	assert.Equal(t, sponsor.ID, *loaded.SponsorID)

	require.NoError(t, repo.UpdateSponsor(ctx, user.ID, nil))
	loaded, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.SponsorID)

	err = repo.UpdateSponsor(ctx, uuid.New(), &sponsor.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryWithTxRollsBack(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	sponsor := seedUser(t, conn, nil)
	user := seedUser(t, conn, nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).UpdateSponsor(ctx, user.ID, &sponsor.ID); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	got, err := repo.FindSponsorID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
