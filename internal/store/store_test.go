package store

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kasirkuy/internal/models"
)

// newTestDB opens a private in-memory database per test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductVariant{},
		&models.DeviceRegistration{},
	))
	return gdb
}

func mustCreateUser(t *testing.T, s *UserStore, username string, isAdmin bool) *models.User {
	t.Helper()
	u, err := s.Create(username, "pbkdf2-sha256$1$c2FsdA$aGFzaA", isAdmin)
	require.NoError(t, err)
	return u
}
