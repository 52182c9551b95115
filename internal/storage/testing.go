package storage

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

// NewTestService opens a migrated database in a temporary directory and
// returns a service over it. The database is closed when the test ends.
// It is exported for use in other package tests.
func NewTestService(t testing.TB) *Service {
	t.Helper()

	config := DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	config.AutoMigrate = true

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewService(db, zaptest.NewLogger(t))
}
