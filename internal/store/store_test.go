// ABOUTME: Shared test helpers for store tests
// ABOUTME: Provides temp-dir SQLite stores and principal fixtures

package store

import (
	"fmt"
	"path/filepath"
	"testing"
)

// setupTestStore creates a SQLite store in a temp directory, closed on cleanup.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// makePrincipal builds a distinct principal fixture for index i.
func makePrincipal(i int) *Principal {
	return &Principal{
		IdentityKey: fmt.Sprintf("user_%d", i),
		Username:    fmt.Sprintf("builder%d", i),
		Email:       fmt.Sprintf("builder%d@example.com", i),
		FirstName:   "Test",
		Role:        RoleUser,
		Verified:    true,
	}
}
