package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"sqlite-user-service/pkg/database"
)

// setupTestDB opens a fresh database file with the users table created and seeded
func setupTestDB(t *testing.T) *gorm.DB {
	db := openTestDB(t)
	_, err := InitSchema(context.Background(), db, zaptest.NewLogger(t))
	require.NoError(t, err)
	return db
}

func openTestDB(t *testing.T) *gorm.DB {
	path := filepath.Join(t.TempDir(), "users.db")
	db, err := database.Open(database.Options{DSN: "file:" + path + "?_pragma=busy_timeout(5000)", MaxOpenConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
