package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const yamlCatalog = `
datasets:
  - name: qwi
    path: timeseries/qwi/sa
    params:
      - name: state
        values:
          - "06"
          - code: "72"
            label: Puerto Rico
            active: false
      - name: industry
        source: naics_sectors
    forbid:
      - state: "72"
        industry: "11"
    fields: [value, period]
`

const cueCatalog = `
datasets: [{
	name: "ces"
	path: "timeseries/ces"
	params: [
		{name: "series", values: ["CES0000000001", {code: "CES0500000003", label: "Avg hourly earnings"}]},
		{name: "period", source: "months"},
	]
}]
`

func TestLoad_YAMLAndCUE(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "10-qwi.yaml"), yamlCatalog)
	writeFile(t, filepath.Join(dir, "20-ces.cue"), cueCatalog)
	writeFile(t, filepath.Join(dir, ValuesDir, "naics_sectors.yaml"), "- \"11\"\n- code: \"31-33\"\n  label: Manufacturing\n")
	writeFile(t, filepath.Join(dir, "README.txt"), "ignored")

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"ces", "qwi"}, c.Names())

	qwi, err := c.Dataset("qwi")
	require.NoError(t, err)
	assert.Equal(t, "timeseries/qwi/sa", qwi.Route())
	assert.Equal(t, []string{"value", "period"}, qwi.Fields)

	state, ok := qwi.Dimension("state")
	require.True(t, ok)
	require.Len(t, state.Values, 2)
	assert.True(t, state.Values[0].IsActive())
	assert.False(t, state.Values[1].IsActive())
	assert.Equal(t, "Puerto Rico", state.Values[1].Label)

	industry, ok := qwi.Dimension("industry")
	require.True(t, ok)
	require.Len(t, industry.Values, 2)
	assert.Equal(t, "31-33", industry.Values[1].Code)
	assert.True(t, qwi.Forbidden(map[string]string{"state": "72", "industry": "11"}))

	ces, err := c.Dataset("ces")
	require.NoError(t, err)
	series, ok := ces.Dimension("series")
	require.True(t, ok)
	require.Len(t, series.Values, 2)
	assert.Equal(t, "CES0000000001", series.Values[0].Code)
	assert.Equal(t, "Avg hourly earnings", series.Values[1].Label)

	// months.yaml was never downloaded.
	var ue *UnavailableDimensionError
	require.ErrorAs(t, ces.CheckEnumerable(), &ue)
	assert.Equal(t, "period", ue.Dimension)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	var le *LoadError
	assert.ErrorAs(t, err, &le)

	empty := t.TempDir()
	_, err = Load(empty)
	assert.ErrorContains(t, err, "no catalog files")

	bad := t.TempDir()
	writeFile(t, filepath.Join(bad, "bad.yaml"), "datasets: [unterminated")
	_, err = Load(bad)
	assert.ErrorAs(t, err, &le)
	assert.Equal(t, filepath.Join(bad, "bad.yaml"), le.Path)

	badCUE := t.TempDir()
	writeFile(t, filepath.Join(badCUE, "bad.cue"), "datasets: [{name: string}]")
	_, err = Load(badCUE)
	assert.ErrorContains(t, err, "cue")

	dup := t.TempDir()
	writeFile(t, filepath.Join(dup, "a.yaml"), "datasets: [{name: d, params: [{name: a, values: [\"1\"]}]}]")
	writeFile(t, filepath.Join(dup, "b.yaml"), "datasets: [{name: d, params: [{name: a, values: [\"1\"]}]}]")
	_, err = Load(dup)
	assert.ErrorContains(t, err, "duplicate dataset")
}
