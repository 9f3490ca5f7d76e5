package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/statfetch/internal/engine"
	"github.com/roach88/statfetch/internal/journal"
	"github.com/roach88/statfetch/internal/transport"
)

// DownloadOptions holds flags for the download command.
type DownloadOptions struct {
	*RootOptions
	Overwrite   bool
	Strict      bool
	RetryErrors bool
	Scope       string
	Workers     int
	MaxRequests int
}

// NewDownloadCommand creates the download command.
func NewDownloadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DownloadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "download <dataset>",
		Short: "Fetch every pending request of a dataset",
		Long: `Fetch every request of a dataset that the download journal does not
record as completed, storing one payload file per request.

A rate-limited run stops dispatching, lets in-flight requests finish and
exits with status 1. Running the command again resumes from the journal.

Example:
  statfetch download population
  statfetch download population --retry-errors --scope last
  statfetch download population --overwrite --workers 8
  statfetch download population --max-requests 500`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "refetch requests whose payload already exists")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on parameter values no longer in the catalog")
	cmd.Flags().BoolVar(&opts.RetryErrors, "retry-errors", false, "only refetch requests whose latest outcome is an error")
	cmd.Flags().StringVar(&opts.Scope, "scope", "history", "errors to retry (history|last|run:ID|since:RFC3339)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "concurrent requests (default from configuration)")
	cmd.Flags().IntVar(&opts.MaxRequests, "max-requests", 0, "stop after this many requests (0 means no cap)")

	return cmd
}

func runDownload(opts *DownloadOptions, dataset string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, dataset)
	if err != nil {
		return err
	}

	scope, err := journal.ParseScope(opts.Scope)
	if err != nil {
		return s.out.FailWith(ErrCodeConfiguration, ExitCommandError, "invalid flags", err)
	}

	q, err := s.queue(opts.Strict)
	if err != nil {
		return s.out.Fail("failed to build queue", err, nil)
	}

	h, err := s.layout.OpenHistory(dataset, journal.ModeDownload)
	if err != nil {
		return s.out.Fail("failed to open journal", err, nil)
	}
	defer h.Close()

	switch {
	case opts.RetryErrors:
		q = q.ErrorsWith(h, scope, s.matcher)
		s.out.VerboseLog("Retrying %d failed request(s) (scope %s)", q.Len(), scope)
	case !opts.Overwrite:
		n := q.ExcludeWith(h, s.matcher)
		s.out.VerboseLog("Skipping %d completed request(s)", n)
	}

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

	eng := engine.New(s.layout, append(s.engineOptions(opts.Workers),
		engine.WithTransport(tr),
		engine.WithOverwrite(opts.Overwrite),
		engine.WithMaxRequests(opts.MaxRequests),
	)...)

	ctx, stop := signalContext(cmd, s.logger)
	defer stop()

	rep, err := eng.Download(ctx, q, h)
	return s.finish(newRunSummary(rep), err)
}
