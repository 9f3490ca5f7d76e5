package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/statfetch/internal/catalog"
)

// TwoByTwoYAML declares dataset D with A in {1,2} and B in {x,y}.
const TwoByTwoYAML = `datasets:
  - name: D
    description: two by two fixture
    path: stats/d
    params:
      - name: A
        values: ["1", "2"]
      - name: B
        values: [x, y]
    fields: [period, value]
`

// TwoByTwo returns dataset D with A in {1,2} and B in {x,y}.
func TwoByTwo() *catalog.Dataset {
	return &catalog.Dataset{
		Name:        "D",
		Description: "two by two fixture",
		Path:        "stats/d",
		Params: []catalog.Dimension{
			{Name: "A", Values: []catalog.Value{{Code: "1"}, {Code: "2"}}},
			{Name: "B", Values: []catalog.Value{{Code: "x"}, {Code: "y"}}},
		},
		Fields: []string{"period", "value"},
	}
}

// TwoByTwoCatalog returns a catalog holding only TwoByTwo.
func TwoByTwoCatalog(t testing.TB) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(TwoByTwo())
	require.NoError(t, err)
	return c
}

// WriteCatalogDir writes files (name to content) into a fresh directory and
// returns it.
func WriteCatalogDir(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// Inactive returns a pointer to false, for catalog.Value.Active.
func Inactive() *bool {
	f := false
	return &f
}
