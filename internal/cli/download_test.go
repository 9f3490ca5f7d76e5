package cli

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statfetch/internal/journal"
)

func payloads(t *testing.T, data string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(data, "D", "download", "*.json"))
	require.NoError(t, err)
	return files
}

func TestDownloadFetchesEveryRequest(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)

	assert.Equal(t, `D download (run run-1)
  queued:    4
  attempted: 4
  succeeded: 4
  failed:    0
  skipped:   0
`, out)
	assert.Equal(t, 4, env.api.Total())
	assert.Equal(t, "secret", env.api.LastKey())
	assert.Len(t, payloads(t, env.data), 4)
}

func TestDownloadSecondRunSendsNothing(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)

	out, _, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)
	assert.Contains(t, out, "queued:    0")
	assert.Equal(t, 4, env.api.Total())
}

func TestDownloadFailuresExitOne(t *testing.T) {
	env := newCLIEnv(t)
	env.api.FailWith("A=2&B=y", http.StatusServiceUnavailable)

	out, _, err := env.run(NewDownloadCommand, "D")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "succeeded: 3")
	assert.Contains(t, out, "failed:    1")
	assert.Contains(t, out, "Error [E102]: 1 of 4 requests failed")
	assert.Len(t, payloads(t, env.data), 3)

	// Only the failed request is queued again.
	out, _, err = env.run(NewDownloadCommand, "D")
	require.Error(t, err)
	assert.Contains(t, out, "queued:    1")
	assert.Equal(t, 1, env.api.Hits("A=1&B=x"))
	assert.Equal(t, 2, env.api.Hits("A=2&B=y"))
}

func TestDownloadStopsOnRateLimit(t *testing.T) {
	env := newCLIEnv(t)
	env.api.FailWith("A=1&B=y", http.StatusTooManyRequests)

	out, _, err := env.run(NewDownloadCommand, "D")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "stopped early: remote service is rate limiting")
	assert.Contains(t, out, "Error [E101]")
	assert.Equal(t, 0, env.api.Hits("A=2&B=x"))
	assert.Equal(t, 0, env.api.Hits("A=2&B=y"))

	h, err := journal.Open(journal.Path(env.data, "D", journal.ModeDownload), journal.ModeDownload)
	require.NoError(t, err)
	st := h.Stats()
	assert.Equal(t, 1, st.Requests, "the rate-limited request is not journaled")
	assert.Equal(t, 1, st.Succeeded)

	// The next run resumes with the three requests that never completed.
	env.api.Reset("A=1&B=y")
	out, _, err = env.run(NewDownloadCommand, "D")
	require.NoError(t, err)
	assert.Contains(t, out, "queued:    3")
	assert.Contains(t, out, "succeeded: 3")
	assert.Equal(t, 1, env.api.Hits("A=1&B=x"))
}

func TestDownloadMaxRequests(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(NewDownloadCommand, "D", "--max-requests", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "attempted: 2")
	assert.Contains(t, out, "stopped early: request quota reached")
	assert.Equal(t, 2, env.api.Total())

	out, _, err = env.run(NewDownloadCommand, "D", "--max-requests", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "queued:    2")
	assert.NotContains(t, out, "stopped early")
	assert.Equal(t, 1, env.api.Hits("A=2&B=y"))
}

func TestDownloadRetryErrors(t *testing.T) {
	env := newCLIEnv(t)
	env.api.FailWith("A=2&B=y", http.StatusBadGateway)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.Error(t, err)

	env.api.Reset("A=2&B=y")
	out, _, err := env.run(NewDownloadCommand, "D", "--retry-errors", "--scope", "last")
	require.NoError(t, err)
	assert.Contains(t, out, "queued:    1")
	assert.Contains(t, out, "succeeded: 1")
	assert.Len(t, payloads(t, env.data), 4)

	// Nothing is left to retry.
	out, _, err = env.run(NewDownloadCommand, "D", "--retry-errors")
	require.NoError(t, err)
	assert.Contains(t, out, "queued:    0")
}

func TestDownloadOverwriteRefetches(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)

	out, _, err := env.run(NewDownloadCommand, "D", "--overwrite")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded: 4")
	assert.Equal(t, 8, env.api.Total())
}

func TestDownloadJSONOutput(t *testing.T) {
	env := newCLIEnv(t)
	env.opts.Format = "json"

	out, _, err := env.run(NewDownloadCommand, "D", "--workers", "3")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, "download", resp.Data.Mode)
	assert.Equal(t, 4, resp.Data.Succeeded)
}

func TestDownloadJSONFailureCarriesSummary(t *testing.T) {
	env := newCLIEnv(t)
	env.opts.Format = "json"
	env.api.FailWith("A=1&B=x", http.StatusNotFound)

	out, _, err := env.run(NewDownloadCommand, "D")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFailures, resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, details["failed"])
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1, "one JSON document")
}

func TestDownloadVerboseLogsToStderr(t *testing.T) {
	env := newCLIEnv(t)
	env.opts.Verbose = true

	out, errOut, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)
	assert.NotContains(t, out, "level=")
	assert.Contains(t, errOut, "run started")
	assert.Contains(t, errOut, "run_id=run-1")
	assert.Contains(t, errOut, "Skipping 0 completed request(s)")
}

func TestDownloadCommandErrors(t *testing.T) {
	t.Run("unknown_dataset", func(t *testing.T) {
		env := newCLIEnv(t)
		out, _, err := env.run(NewDownloadCommand, "nope")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E003]")
	})

	t.Run("invalid_scope", func(t *testing.T) {
		env := newCLIEnv(t)
		out, _, err := env.run(NewDownloadCommand, "D", "--retry-errors", "--scope", "yesterday")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "invalid scope")
	})

	t.Run("missing_api_url", func(t *testing.T) {
		env := newCLIEnv(t)
		envFile := filepath.Join(t.TempDir(), "empty.env")
		require.NoError(t, os.WriteFile(envFile, []byte("STATFETCH_RPS=0\n"), 0o644))
		env.opts.EnvFile = envFile

		out, _, err := env.run(NewDownloadCommand, "D")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E002]")
		assert.Equal(t, 0, env.api.Total())
	})

	t.Run("missing_env_file", func(t *testing.T) {
		env := newCLIEnv(t)
		env.opts.EnvFile = filepath.Join(t.TempDir(), "absent.env")

		out, _, err := env.run(NewDownloadCommand, "D")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E002]")
	})

	t.Run("unreadable_journal", func(t *testing.T) {
		env := newCLIEnv(t)
		path := journal.Path(env.data, "D", journal.ModeDownload)
		require.NoError(t, os.MkdirAll(path, 0o755))

		out, _, err := env.run(NewDownloadCommand, "D")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E006]")
	})
}
