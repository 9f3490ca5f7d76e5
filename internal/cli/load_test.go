package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statfetch/internal/config"
	"github.com/roach88/statfetch/internal/store"
)

// driftBody answers A=1&B=y with a code the catalog does not know.
const driftBody = `{"data":[{"A":"1","B":"z","period":"2024","value":"7"}]}`

func storedCount(t *testing.T, db string) int {
	t.Helper()
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	n, err := st.Count(context.Background(), "D")
	require.NoError(t, err)
	return n
}

func TestLoadStoresObservations(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)

	out, _, err := env.run(NewLoadCommand, "D")
	require.NoError(t, err)
	assert.Equal(t, `D load (run run-2)
  queued:    4
  attempted: 4
  succeeded: 4
  failed:    0
  skipped:   0
  stored:    4
`, out)
	assert.Equal(t, 4, storedCount(t, env.db))

	// Loaded requests are not parsed again.
	out, _, err = env.run(NewLoadCommand, "D")
	require.NoError(t, err)
	assert.Contains(t, out, "queued:    0")
	assert.Equal(t, 4, storedCount(t, env.db))
}

func TestLoadOnlyDownloadedRequests(t *testing.T) {
	env := newCLIEnv(t)
	env.api.FailWith("A=2&B=x", 500)
	env.api.FailWith("A=2&B=y", 500)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.Error(t, err)

	out, _, err := env.run(NewLoadCommand, "D")
	require.NoError(t, err)
	assert.Contains(t, out, "queued:    2")
	assert.Contains(t, out, "stored:    2")
}

func TestLoadBeforeDownloadIsEmpty(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(NewLoadCommand, "D")
	require.NoError(t, err)
	assert.Contains(t, out, "queued:    0")
	assert.Contains(t, out, "stored:    0")
}

func TestLoadSchemaDriftFailsRequest(t *testing.T) {
	env := newCLIEnv(t)
	env.api.RespondWith("A=1&B=y", driftBody)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)

	out, _, err := env.run(NewLoadCommand, "D", "--workers", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "failed:    1")
	assert.Contains(t, out, "stored:    3")
	assert.Contains(t, out, "Error [E102]")
	assert.Equal(t, 3, storedCount(t, env.db))
}

func TestLoadDatabaseFollowsDataDir(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)
	_, _, err = env.run(NewLoadCommand, "D")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(env.data, "observations.db"))
	_, err = os.Stat(filepath.Join(config.DefaultDataDir, config.DefaultDBFile))
	assert.True(t, os.IsNotExist(err), "nothing is written under the default data directory")
}

func TestLoadDatabaseSetting(t *testing.T) {
	env := newCLIEnv(t)
	db := filepath.Join(t.TempDir(), "elsewhere", "obs.db")
	env.setenv(t, config.EnvDB, db)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)
	_, _, err = env.run(NewLoadCommand, "D")
	require.NoError(t, err)

	assert.Equal(t, 4, storedCount(t, db))
	assert.NoFileExists(t, env.db)
}
