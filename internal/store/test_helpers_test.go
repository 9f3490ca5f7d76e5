package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/statfetch/internal/fingerprint"
	"github.com/roach88/statfetch/internal/parser"
)

// createTestStore creates a new store in a temporary directory.
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

// createTestTable builds a table for dataset D with one row per value.
func createTestTable(a, b string, values ...string) *parser.Table {
	params := map[string]string{"A": a, "B": b}
	table := &parser.Table{
		Dataset:     "D",
		Fingerprint: fingerprint.Must("D", params),
		Request:     "D{A=" + a + ",B=" + b + "}",
		Params:      params,
	}
	for i, v := range values {
		table.Rows = append(table.Rows, parser.Observation{
			Record: i,
			Fields: map[string]string{"A": a, "B": b, "period": "202" + string(rune('0'+i)), "value": v},
		})
	}
	return table
}
