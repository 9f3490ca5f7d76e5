package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/statfetch/internal/journal"
)

// ModeStatus summarises one journal.
type ModeStatus struct {
	Mode      string `json:"mode"`
	Requests  int    `json:"requests"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Unknown   int    `json:"unknown"`
	Skipped   int    `json:"skipped_lines"`
	LastRun   string `json:"last_run,omitempty"`
}

// StatusResult is the output of the status command.
type StatusResult struct {
	Dataset string       `json:"dataset"`
	Modes   []ModeStatus `json:"modes"`
}

func (r StatusResult) String() string {
	var b strings.Builder
	fmt.Fprintln(&b, r.Dataset)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  mode\trequests\tsucceeded\tfailed\tunknown\tskipped lines\tlast run")
	for _, m := range r.Modes {
		last := m.LastRun
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			m.Mode, m.Requests, m.Succeeded, m.Failed, m.Unknown, m.Skipped, last)
	}
	_ = tw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <dataset>",
		Short: "Show journal counts for a dataset",
		Long: `Show, for the download and load journals of a dataset, how many
requests were recorded and how their latest outcomes split.

Example:
  statfetch status population`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runStatus(opts *RootOptions, dataset string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd, dataset)
	if err != nil {
		return err
	}

	res := StatusResult{Dataset: dataset}
	for _, mode := range []journal.Mode{journal.ModeDownload, journal.ModeLoad} {
		h, err := s.layout.OpenHistory(dataset, mode)
		if err != nil {
			return s.out.Fail("failed to open journal", err, nil)
		}
		st := h.Stats()
		res.Modes = append(res.Modes, ModeStatus{
			Mode:      string(mode),
			Requests:  st.Requests,
			Succeeded: st.Succeeded,
			Failed:    st.Failed,
			Unknown:   st.Unknown,
			Skipped:   st.Skipped,
			LastRun:   st.LastRun,
		})
	}
	return s.out.Success(res)
}
