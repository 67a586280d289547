package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/synthnet/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSpec returns const -> amp -> sink with one property set.
func createTestSpec(name string, volume float64) ir.NetworkSpec {
	return ir.NetworkSpec{
		Name: name,
		Sources: []ir.SourceSpec{
			{Name: "c", Type: "const"},
			{Name: "amp", Type: "amp", Properties: ir.Object{"volume": ir.Real(volume)}},
			{Name: "out", Type: "sink"},
		},
		Connections: []ir.ConnectionSpec{
			{From: "c", FromChannel: "out", To: "amp", ToChannel: "in"},
			{From: "amp", FromChannel: "out", To: "out", ToChannel: "left"},
		},
	}
}
