package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, Config{
		DataDir:    "data",
		CatalogDir: "catalog",
		Workers:    4,
		RPS:        2,
		Timeout:    30 * time.Second,
		Matcher:    "indexed",
	}, cfg)
	assert.Equal(t, filepath.Join("data", "observations.db"), cfg.Database())
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		EnvAPIURL:  "https://api.example.gov/v2",
		EnvAPIKey:  "k",
		EnvDataDir: "/srv/stats",
		EnvCatalog: "/etc/statfetch",
		EnvWorkers: "16",
		EnvRPS:     "0.5",
		EnvTimeout: "2m",
		EnvMatcher: "parallel",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.gov/v2", cfg.APIURL)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, 0.5, cfg.RPS)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Empty(t, cfg.DBPath)
	assert.Equal(t, filepath.Join("/srv/stats", "observations.db"), cfg.Database())
	assert.Equal(t, "parallel", cfg.Matcher)
}

func TestConfig_DatabaseFollowsDataDir(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	// A data directory set after loading, as a CLI flag does, moves the
	// default database with it.
	cfg.DataDir = "/x"
	assert.Equal(t, filepath.Join("/x", "observations.db"), cfg.Database())

	cfg, err = FromLookup(lookupFrom(map[string]string{EnvDB: "/var/lib/obs.db"}))
	require.NoError(t, err)
	cfg.DataDir = "/x"
	assert.Equal(t, "/var/lib/obs.db", cfg.Database())
}

func TestFromLookup_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{EnvAPIURL, "api.example.gov"},
		{EnvAPIURL, "ftp://api.example.gov"},
		{EnvWorkers, "four"},
		{EnvWorkers, "0"},
		{EnvRPS, "fast"},
		{EnvRPS, "-1"},
		{EnvTimeout, "30"},
		{EnvTimeout, "-5s"},
		{EnvMatcher, "hash"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			_, err := FromLookup(lookupFrom(map[string]string{tt.key: tt.value}))
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_EnvFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STATFETCH_API_KEY=from-file\nSTATFETCH_WORKERS=2\n"), 0o644))
	t.Setenv(EnvWorkers, "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, 9, cfg.Workers, "environment wins over the file")
}

func TestLoad_MissingFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("")
	assert.NoError(t, err, "missing default .env is fine")

	_, err = Load("nope.env")
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}
