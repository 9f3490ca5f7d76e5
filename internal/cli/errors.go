package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/statfetch/internal/fingerprint"
)

// ErrorsOptions holds flags for the errors command.
type ErrorsOptions struct {
	*RootOptions
	Mode  string
	Scope string
}

// FailedRequest is one entry of the errors listing.
type FailedRequest struct {
	Fingerprint string    `json:"fingerprint"`
	Request     string    `json:"request"`
	Detail      string    `json:"detail"`
	RunID       string    `json:"run_id,omitempty"`
	At          time.Time `json:"at"`
}

// ErrorList is the output of the errors command.
type ErrorList struct {
	Dataset string          `json:"dataset"`
	Mode    string          `json:"mode"`
	Scope   string          `json:"scope"`
	Errors  []FailedRequest `json:"errors"`
}

func (l ErrorList) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s error(s) for %s (scope %s)", len(l.Errors), l.Mode, l.Dataset, l.Scope)
	for _, e := range l.Errors {
		fmt.Fprintf(&b, "\n  %s  %s  %s", fingerprint.Fingerprint(e.Fingerprint).Short(), e.Request, e.Detail)
	}
	return b.String()
}

// NewErrorsCommand creates the errors command.
func NewErrorsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ErrorsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "errors <dataset>",
		Short: "List requests whose latest outcome is an error",
		Long: `List, in enumeration order, every request of a dataset whose latest
journal outcome is an error, with the recorded detail.

Example:
  statfetch errors population
  statfetch errors population --scope since:2024-01-01T00:00:00Z --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runErrors(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "download", "journal to read (download|load)")
	cmd.Flags().StringVar(&opts.Scope, "scope", "history", "errors to list (history|last|run:ID|since:RFC3339)")

	return cmd
}

func runErrors(opts *ErrorsOptions, dataset string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, dataset)
	if err != nil {
		return err
	}

	mode, scope, err := parseModeScope(opts.Mode, opts.Scope)
	if err != nil {
		return s.out.FailWith(ErrCodeConfiguration, ExitCommandError, "invalid flags", err)
	}

	q, err := s.queue(false)
	if err != nil {
		return s.out.Fail("failed to build queue", err, nil)
	}
	h, err := s.layout.OpenHistory(dataset, mode)
	if err != nil {
		return s.out.Fail("failed to open journal", err, nil)
	}

	list := ErrorList{
		Dataset: dataset,
		Mode:    string(mode),
		Scope:   scope.String(),
		Errors:  []FailedRequest{},
	}
	for _, req := range q.ErrorsWith(h, scope, s.matcher).All() {
		ev, _ := h.Lookup(req.Fingerprint())
		list.Errors = append(list.Errors, FailedRequest{
			Fingerprint: req.Fingerprint().String(),
			Request:     req.String(),
			Detail:      ev.Outcome.Detail,
			RunID:       ev.RunID,
			At:          ev.At,
		})
	}
	return s.out.Success(list)
}
