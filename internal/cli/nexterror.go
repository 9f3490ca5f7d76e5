package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/statfetch/internal/engine"
	"github.com/roach88/statfetch/internal/journal"
	"github.com/roach88/statfetch/internal/parser"
	"github.com/roach88/statfetch/internal/transport"
)

// NextErrorOptions holds flags for the next-error command.
type NextErrorOptions struct {
	*RootOptions
	Mode  string
	Scope string
}

// NextErrorResult is the output of next-error.
type NextErrorResult struct {
	Dataset     string `json:"dataset"`
	Mode        string `json:"mode"`
	Scope       string `json:"scope"`
	Remaining   int    `json:"remaining"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Request     string `json:"request,omitempty"`
	Recorded    string `json:"recorded,omitempty"`
	Outcome     string `json:"outcome,omitempty"` // "ok" | "error"
	Size        int    `json:"size,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (r NextErrorResult) String() string {
	if r.Remaining == 0 {
		return fmt.Sprintf("no %s errors for %s (scope %s)", r.Mode, r.Dataset, r.Scope)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s error 1 of %d\n", r.Dataset, r.Mode, r.Remaining)
	fmt.Fprintf(&b, "  request:     %s\n", r.Request)
	fmt.Fprintf(&b, "  fingerprint: %s\n", r.Fingerprint)
	fmt.Fprintf(&b, "  recorded:    %s\n", r.Recorded)
	if r.Outcome == "ok" {
		fmt.Fprintf(&b, "  retry:       ok")
		if r.Size > 0 {
			fmt.Fprintf(&b, " (%d bytes)", r.Size)
		}
	} else {
		fmt.Fprintf(&b, "  retry:       %s", r.Error)
	}
	return b.String()
}

// NewNextErrorCommand creates the next-error command.
func NewNextErrorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NextErrorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "next-error <dataset>",
		Short: "Retry the first failed request and show the outcome",
		Long: `Take the first request, in enumeration order, whose latest journal
outcome is an error and run it once more. Nothing is written: neither the
payload nor the journal changes.

By default the load journal is read and the stored payload is parsed again.
With --mode download the request is sent to the remote service instead.

Example:
  statfetch next-error population
  statfetch next-error population --scope last
  statfetch next-error population --mode download`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNextError(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", string(journal.ModeLoad), "journal to read (load|download)")
	cmd.Flags().StringVar(&opts.Scope, "scope", "history", "errors to consider (history|last|run:ID|since:RFC3339)")

	return cmd
}

func runNextError(opts *NextErrorOptions, dataset string, cmd *cobra.Command) error {
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

	failed := q.ErrorsWith(h, scope, s.matcher)
	res := NextErrorResult{
		Dataset:   dataset,
		Mode:      string(mode),
		Scope:     scope.String(),
		Remaining: failed.Len(),
	}
	req, ok := failed.First()
	if !ok {
		return s.out.Success(res)
	}

	res.Fingerprint = req.Fingerprint().String()
	res.Request = req.String()
	if ev, ok := h.Lookup(req.Fingerprint()); ok {
		res.Recorded = ev.Outcome.Detail
	}

	var runErr error
	switch mode {
	case journal.ModeLoad:
		_, runErr = req.Load(parser.New(s.catalog))
	default:
		tr, err := transport.New(transport.Config{
			BaseURL: s.cfg.APIURL,
			APIKey:  s.cfg.APIKey,
			RPS:     s.cfg.RPS,
			Timeout: s.cfg.Timeout,
			Logger:  s.logger,
		}, s.catalog)
		if err != nil {
			return s.out.Fail("invalid configuration", err, nil)
		}
		eng := engine.New(s.layout, append(s.engineOptions(1), engine.WithTransport(tr))...)

		ctx, stop := signalContext(cmd, s.logger)
		defer stop()
		var body []byte
		body, runErr = eng.Fetch(ctx, req)
		res.Size = len(body)
	}

	if runErr == nil {
		res.Outcome = "ok"
		return s.out.Success(res)
	}

	s.logger.Debug("retry failed", "dataset", dataset, "fingerprint", req.Fingerprint().Short(), "error", runErr)
	res.Outcome = "error"
	res.Error = runErr.Error()
	if s.out.Format == "json" {
		_ = s.out.Error(ErrCodeFailures, "request still failing", res)
	} else {
		fmt.Fprintln(s.out.Writer, res)
	}
	return WrapExitError(ExitFailure, "request still failing", runErr)
}

func parseModeScope(m, sc string) (journal.Mode, journal.Scope, error) {
	mode, err := journal.ParseMode(m)
	if err != nil {
		return "", journal.Scope{}, err
	}
	scope, err := journal.ParseScope(sc)
	if err != nil {
		return "", journal.Scope{}, err
	}
	return mode, scope, nil
}
