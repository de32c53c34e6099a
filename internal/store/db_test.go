package store

import (
	"errors"
	"testing"
)

// newTestStore creates an in-memory store with the schema applied and
// registers cleanup with t.Cleanup.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	if err := s.CreateSchema(); err != nil {
		s.Close()
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	if s.db == nil {
		t.Error("Store.db should not be nil")
	}
}

func TestCreateSchema(t *testing.T) {
	s := newTestStore(t)

	tables := []string{"restricted_apps", "snoozes", "followup_responses"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	indexes := []string{"idx_apps_package", "idx_snoozes_app", "idx_snoozes_active", "idx_followups_app", "idx_followups_created"}
	for _, index := range indexes {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("Index %s not found: %v", index, err)
		}
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

// TestListApps_NoSchema_ReturnsErrNotInitialized verifies that querying a
// fresh DB (no CreateSchema) returns ErrNotInitialized rather than a raw
// driver error.
func TestListApps_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	_, err = s.ListApps()
	if err == nil {
		t.Fatal("ListApps() should return an error on uninitialized DB")
	}
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListApps() error = %v; want errors.Is(err, ErrNotInitialized)", err)
	}
}

func TestGetAppByPackage_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	_, err = s.GetAppByPackage("com.shop.app")
	if err == nil {
		t.Fatal("GetAppByPackage() should return an error on uninitialized DB")
	}
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetAppByPackage() error = %v; want errors.Is(err, ErrNotInitialized)", err)
	}
}
