package testutil

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dicomlite/dicomlite/infra"
)

// OpenTestDB migrates the schema into a throwaway sqlite file and returns the
// handle plus the file path. The file lives in the test's temp dir so a test
// can close and reopen it to simulate a process restart.
func OpenTestDB(t testing.TB) (*gorm.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	return OpenTestDBAt(t, path), path
}

func OpenTestDBAt(t testing.TB, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, infra.AutoMigrate(db))
	return db
}

// CloseDB releases the underlying sqlite handle so the file can be reopened.
func CloseDB(t testing.TB, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
