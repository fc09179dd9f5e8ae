package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirkuy/internal/models"
)

func TestUserStoreCreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)

	u := mustCreateUser(t, s, "budi", false)
	assert.NotZero(t, u.ID)
	assert.False(t, u.IsAdmin)

	got, err := s.GetByUsername("budi")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = s.GetByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "budi", got.Username)

	_, err = s.GetByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStoreDuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)

	mustCreateUser(t, s, "budi", false)
	_, err := s.Create("budi", "hash", false)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// Exact match only: a different case is a different username.
	_, err = s.Create("Budi", "hash", false)
	assert.NoError(t, err)
}

func TestUserStoreListWithProductCounts(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	products := NewProductStore(db)

	a := mustCreateUser(t, users, "alice", true)
	mustCreateUser(t, users, "bob", false)

	require.NoError(t, products.Create(&models.Product{UserID: a.ID, Name: "Coffee", Price: 15000}))
	require.NoError(t, products.Create(&models.Product{UserID: a.ID, Name: "Tea", Price: 12000}))

	list, err := users.List()
	require.NoError(t, err)
	require.Len(t, list, 2)

	counts := map[string]int64{}
	for _, row := range list {
		counts[row.Username] = row.ProductsCount
	}
	assert.Equal(t, int64(2), counts["alice"])
	assert.Equal(t, int64(0), counts["bob"])
}

func TestUserStoreUpdate(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)

	u := mustCreateUser(t, s, "budi", false)
	mustCreateUser(t, s, "tono", false)

	newName := "budiman"
	isAdmin := true
	got, err := s.Update(u.ID, UserPatch{Username: &newName, IsAdmin: &isAdmin})
	require.NoError(t, err)
	assert.Equal(t, "budiman", got.Username)
	assert.True(t, got.IsAdmin)

	// Renaming onto an existing username conflicts.
	taken := "tono"
	_, err = s.Update(u.ID, UserPatch{Username: &taken})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = s.Update(9999, UserPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStoreLastAdminGuard(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)

	solo := mustCreateUser(t, s, "root", true)
	assert.ErrorIs(t, s.Delete(solo.ID), ErrLastAdmin)

	second := mustCreateUser(t, s, "backup", true)
	require.NoError(t, s.Delete(second.ID))

	// Back to one admin, protected again.
	assert.ErrorIs(t, s.Delete(solo.ID), ErrLastAdmin)

	// Non-admins are never protected.
	plain := mustCreateUser(t, s, "plain", false)
	require.NoError(t, s.Delete(plain.ID))
}

func TestUserStoreDeviceCap(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)

	ip := "198.51.100.7"
	for _, name := range []string{"user_one", "user_two", "user_three"} {
		_, err := s.CreateWithDevice(name, "hash", ip+"_ua", ip)
		require.NoError(t, err)
	}
	_, err := s.CreateWithDevice("user_four", "hash", ip+"_other", ip)
	assert.ErrorIs(t, err, ErrDeviceLimit)

	// The rejected registration must leave no user row behind.
	_, err = s.GetByUsername("user_four")
	assert.ErrorIs(t, err, ErrNotFound)

	cnt, err := s.CountByIP(ip)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cnt)

	// A different address is unaffected.
	_, err = s.CreateWithDevice("user_four", "hash", "203.0.113.9_ua", "203.0.113.9")
	assert.NoError(t, err)
}

func TestUserStoreCreateWithDeviceDuplicate(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)

	ip := "198.51.100.7"
	_, err := s.CreateWithDevice("budi", "hash", ip+"_ua", ip)
	require.NoError(t, err)

	_, err = s.CreateWithDevice("budi", "hash", ip+"_ua", ip)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// Only the successful registration holds a device slot.
	cnt, err := s.CountByIP(ip)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
}

func TestUserStoreDeleteReleasesDeviceSlots(t *testing.T) {
	db := newTestDB(t)
	s := NewUserStore(db)

	ip := "198.51.100.7"
	var first *models.User
	for i, name := range []string{"user_one", "user_two", "user_three"} {
		u, err := s.CreateWithDevice(name, "hash", ip+"_ua", ip)
		require.NoError(t, err)
		if i == 0 {
			first = u
		}
	}
	_, err := s.CreateWithDevice("user_four", "hash", ip+"_ua", ip)
	require.ErrorIs(t, err, ErrDeviceLimit)

	// Deleting an account frees its slot for new registrations.
	require.NoError(t, s.Delete(first.ID))

	cnt, err := s.CountByIP(ip)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cnt)

	_, err = s.CreateWithDevice("user_four", "hash", ip+"_ua", ip)
	assert.NoError(t, err)
}
