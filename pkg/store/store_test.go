package store

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/veridian/hvs/pkg/flavor"
)

// newTestStore opens a store backed by a temp file that is cleaned up with
// the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "hvs_store_test_*.db")
	if err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := Open(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testFlavor(t *testing.T, s *Store, c flavor.Category, label string) *flavor.Flavor {
	t.Helper()

	f := &flavor.Flavor{
		Category: c,
		Label:    label,
		Content:  json.RawMessage(`{"measurements":{"pcr0":"aa"}}`),
	}
	if err := s.AddFlavor(f); err != nil {
		t.Fatalf("AddFlavor failed: %v", err)
	}
	return f
}

func TestGenerateID(t *testing.T) {
	id := generateID("fl")
	if len(id) != 11 { // "fl_" + 8 chars
		t.Errorf("ID length should be 11, got %d: %q", len(id), id)
	}
	if id[:3] != "fl_" {
		t.Errorf("ID should start with 'fl_', got %q", id)
	}
	if generateID("fl") == id {
		t.Error("consecutive IDs should differ")
	}
}
