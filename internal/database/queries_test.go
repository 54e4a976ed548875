package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SqlAgriTourRepository {
	repo, err := NewSqlAgriTourRepository("sqlite3://:memory:")
	require.NoError(t, err, "failed to open sqlite repository")
	require.NoError(t, repo.Migrate(), "failed to migrate sqlite repository")
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAccounts(t *testing.T) {
	repo := newTestRepository(t)

	created, err := repo.CreateAccount(CreateAccountParams{
		Name:         "Jane",
		EmailAddress: "jane@example.com",
		PasswordHash: "hash",
		Role:         "farmer",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Id, "expected generated account id")

	byId, err := repo.GetAccountById(created.Id)
	require.NoError(t, err)
	assert.Equal(t, "Jane", byId.Name)
	assert.Equal(t, "farmer", byId.Role)

	byEmail, err := repo.GetAccountByEmail("jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.Id, byEmail.Id)

	updated, err := repo.UpdateAccount(UpdateAccountParams{
		AccountId:    created.Id,
		Name:         "Jane Doe",
		EmailAddress: "jane.doe@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", updated.Name)
	assert.Equal(t, "jane.doe@example.com", updated.EmailAddress)
	assert.Equal(t, "farmer", updated.Role, "expected role to be unchanged")

	require.NoError(t, repo.UpdateAccountImage(created.Id, "http://localhost/api/blobs/1"))
	withImage, err := repo.GetAccountById(created.Id)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/api/blobs/1", withImage.ProfileImageUrl)

	_, err = repo.GetAccountById("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = repo.UpdateAccount(UpdateAccountParams{AccountId: "missing", Name: "x", EmailAddress: "x@example.com"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPasswordReset(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now().UTC()

	require.NoError(t, repo.CreatePasswordReset(CreatePasswordResetParams{
		Token:     "valid",
		AccountId: "account-1",
		ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, repo.CreatePasswordReset(CreatePasswordResetParams{
		Token:     "expired",
		AccountId: "account-1",
		ExpiresAt: now.Add(-time.Hour),
	}))

	accountId, err := repo.ConsumePasswordReset("valid", now)
	require.NoError(t, err)
	assert.Equal(t, "account-1", accountId)

	_, err = repo.ConsumePasswordReset("valid", now)
	assert.ErrorIs(t, err, ErrInvalidResetToken, "expected token to be single use")

	_, err = repo.ConsumePasswordReset("expired", now)
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	_, err = repo.ConsumePasswordReset("unknown", now)
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestFarms(t *testing.T) {
	repo := newTestRepository(t)

	f1, err := repo.CreateFarm(CreateFarmParams{OwnerId: "owner-1", Name: "Green Valley Gardens", Location: "Nairobi, Kenya", Price: 500, Type: "Vegetables"})
	require.NoError(t, err)
	_, err = repo.CreateFarm(CreateFarmParams{OwnerId: "owner-2", Name: "Highlands Coffee Estate", Location: "Limuru, Kenya", Price: 1200, Type: "Coffee"})
	require.NoError(t, err)

	all, err := repo.ListFarms()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := repo.ListFarmsByOwner("owner-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f1.Id, mine[0].Id)
	assert.Equal(t, 0.0, mine[0].Rating, "expected new farms to start unrated")

	none, err := repo.ListFarmsByOwner("owner-3")
	require.NoError(t, err)
	assert.NotNil(t, none, "expected empty list instead of nil")
	assert.Empty(t, none)

	got, err := repo.GetFarmById(f1.Id)
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.Price)

	_, err = repo.GetFarmById("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestBookings(t *testing.T) {
	repo := newTestRepository(t)

	b, err := repo.CreateBooking(CreateBookingParams{
		FarmId:        "farm-1",
		FarmName:      "Green Valley Gardens",
		UserId:        "visitor-1",
		FarmOwnerId:   "owner-1",
		Date:          "2026-11-01",
		Time:          "10:00",
		GroupSize:     4,
		TotalPrice:    2000,
		Status:        "Pending",
		PaymentMethod: "M-Pesa",
		CreatedMs:     1000,
	})
	require.NoError(t, err)

	byUser, err := repo.ListBookingsByUser("visitor-1")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, b.Id, byUser[0].Id)

	byOwner, err := repo.ListBookingsByOwner("owner-1")
	require.NoError(t, err)
	assert.Len(t, byOwner, 1)

	require.NoError(t, repo.UpdateBookingStatus(b.Id, "Cancelled"))
	require.NoError(t, repo.UpdateBookingStatus(b.Id, "Cancelled"), "expected repeated cancel to succeed")

	got, err := repo.GetBookingById(b.Id)
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", got.Status)
	assert.Equal(t, 4, got.GroupSize)

	assert.ErrorIs(t, repo.UpdateBookingStatus("missing", "Cancelled"), sql.ErrNoRows)
}
