package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/statfetch/internal/engine"
	"github.com/roach88/statfetch/internal/journal"
	"github.com/roach88/statfetch/internal/parser"
	"github.com/roach88/statfetch/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Workers int
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <dataset>",
		Short: "Parse downloaded payloads into the observation store",
		Long: `Parse every downloaded payload of a dataset that the load journal does
not record as completed, and write the observations to the SQLite store.

Only requests the download journal records as completed are loaded.

Example:
  statfetch load population
  statfetch load population --workers 8`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "concurrent parsers (default from configuration)")

	return cmd
}

func runLoad(opts *LoadOptions, dataset string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, dataset)
	if err != nil {
		return err
	}

	q, err := s.queue(false)
	if err != nil {
		return s.out.Fail("failed to build queue", err, nil)
	}

	loaded, err := s.layout.OpenHistory(dataset, journal.ModeLoad)
	if err != nil {
		return s.out.Fail("failed to open journal", err, nil)
	}
	defer loaded.Close()
	downloaded, err := s.layout.OpenHistory(dataset, journal.ModeDownload)
	if err != nil {
		return s.out.Fail("failed to open journal", err, nil)
	}
	defer downloaded.Close()

	n := q.ExcludeWith(loaded, s.matcher)
	s.out.VerboseLog("Skipping %d loaded request(s)", n)
	n = q.KeepCompletedWith(downloaded, s.matcher)
	s.out.VerboseLog("Skipping %d request(s) not yet downloaded", n)

	st, err := store.Open(s.cfg.Database())
	if err != nil {
		return s.out.FailWith(ErrCodeStore, ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			s.logger.Error("error closing store", "error", closeErr)
		}
	}()

	eng := engine.New(s.layout, append(s.engineOptions(opts.Workers),
		engine.WithParser(parser.New(s.catalog)),
		engine.WithSink(st),
	)...)

	ctx, stop := signalContext(cmd, s.logger)
	defer stop()

	rep, _, err := eng.Load(ctx, q, loaded)
	return s.finish(newRunSummary(rep), err)
}
