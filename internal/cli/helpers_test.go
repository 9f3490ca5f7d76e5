package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statfetch/internal/config"
	"github.com/roach88/statfetch/internal/engine"
	"github.com/roach88/statfetch/internal/testutil"
)

var epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// cliEnv is a catalog holding the two-by-two dataset D, a fake API serving
// it and a fresh data directory.
type cliEnv struct {
	api      *testutil.FakeAPI
	opts     *RootOptions
	data     string
	db       string
	settings map[string]string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	api := testutil.NewFakeAPI(t)
	catalogDir := testutil.WriteCatalogDir(t, map[string]string{"d.yaml": testutil.TwoByTwoYAML})
	data := t.TempDir()
	db := filepath.Join(data, "observations.db")

	envFile := filepath.Join(t.TempDir(), "test.env")
	settings := map[string]string{
		config.EnvAPIURL:  api.URL,
		config.EnvAPIKey:  "secret",
		config.EnvRPS:     "0",
		config.EnvWorkers: "1",
		config.EnvTimeout: "5s",
		config.EnvMatcher: "indexed",
	}
	require.NoError(t, godotenv.Write(settings, envFile))

	return &cliEnv{
		api:      api,
		data:     data,
		db:       db,
		settings: settings,
		opts: &RootOptions{
			Format:     "text",
			EnvFile:    envFile,
			CatalogDir: catalogDir,
			DataDir:    data,
			RunIDs:     engine.NewFixedGenerator("run-1", "run-2", "run-3", "run-4", "run-5"),
			Clock:      testutil.NewFixedClock(epoch, time.Second),
		},
	}
}

// setenv rewrites the env file with key set to value.
func (e *cliEnv) setenv(t *testing.T, key, value string) {
	t.Helper()
	e.settings[key] = value
	require.NoError(t, godotenv.Write(e.settings, e.opts.EnvFile))
}

// run executes a command built by newCmd and returns its stdout and stderr.
func (e *cliEnv) run(newCmd func(*RootOptions) *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newCmd(e.opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
