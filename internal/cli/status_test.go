package cli

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statfetch/internal/journal"
)

func TestStatusText(t *testing.T) {
	env := newCLIEnv(t)
	env.api.FailWith("A=2&B=y", http.StatusServiceUnavailable)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.Error(t, err)

	// A line torn by a crash is skipped and counted.
	f, err := os.OpenFile(journal.Path(env.data, "D", journal.ModeDownload), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"fingerprint\":\"9f\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, _, err := env.run(NewStatusCommand, "D")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "status_text", []byte(out))
}

func TestStatusJSON(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(NewDownloadCommand, "D")
	require.NoError(t, err)
	_, _, err = env.run(NewLoadCommand, "D")
	require.NoError(t, err)

	env.opts.Format = "json"
	out, _, err := env.run(NewStatusCommand, "D")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   StatusResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []ModeStatus{
		{Mode: "download", Requests: 4, Succeeded: 4, LastRun: "run-1"},
		{Mode: "load", Requests: 4, Succeeded: 4, LastRun: "run-2"},
	}, resp.Data.Modes)
}

func TestStatusEmptyJournals(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(NewStatusCommand, "D")
	require.NoError(t, err)
	assert.Contains(t, out, "  download  0")
	assert.Contains(t, out, "  load      0")
}
