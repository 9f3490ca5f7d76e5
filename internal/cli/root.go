package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/statfetch/internal/catalog"
	"github.com/roach88/statfetch/internal/config"
	"github.com/roach88/statfetch/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	EnvFile    string
	CatalogDir string
	DataDir    string

	// RunIDs overrides the run ID generator (for testing).
	// If nil, the engine uses UUIDv7.
	RunIDs engine.RunIDGenerator

	// Clock overrides the engine clock (for testing).
	Clock engine.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the statfetch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "statfetch",
		Short: "statfetch - resumable statistics downloader",
		Long: `Download and load government statistical datasets.

Every request is identified by a fingerprint of its dataset and parameters.
Outcomes are appended to a per-dataset journal, so an interrupted or
rate-limited run resumes where it stopped.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "settings file (default .env)")
	cmd.PersistentFlags().StringVar(&opts.CatalogDir, "catalog", "", "catalog directory (overrides "+config.EnvCatalog+")")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "data directory (overrides "+config.EnvDataDir+")")

	cmd.AddCommand(NewEnumerateCommand(opts))
	cmd.AddCommand(NewDownloadCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewNextErrorCommand(opts))
	cmd.AddCommand(NewErrorsCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// session is the state shared by the dataset commands.
type session struct {
	opts    *RootOptions
	out     *OutputFormatter
	cfg     config.Config
	logger  *slog.Logger
	catalog *catalog.Catalog
	dataset *catalog.Dataset
	layout  engine.Layout
	matcher engine.Matcher
}

// openSession resolves configuration, the catalog and the named dataset.
// Failures are reported on the formatter and returned as ExitErrors.
func openSession(opts *RootOptions, cmd *cobra.Command, dataset string) (*session, error) {
	s := &session{
		opts: opts,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}
	if !isValidFormat(opts.Format) {
		return nil, s.out.FailWith(ErrCodeConfiguration, ExitCommandError, "invalid flags",
			fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, s.out.Fail("invalid configuration", err, nil)
	}
	if opts.CatalogDir != "" {
		cfg.CatalogDir = opts.CatalogDir
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	s.cfg = cfg
	s.logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)

	strategy, err := engine.ParseMatchStrategy(cfg.Matcher)
	if err != nil {
		return nil, s.out.FailWith(ErrCodeConfiguration, ExitCommandError, "invalid configuration", err)
	}
	s.matcher = engine.NewMatcher(strategy)
	s.layout = engine.Layout{Root: cfg.DataDir}

	s.out.VerboseLog("Loading catalog from %s", cfg.CatalogDir)
	s.catalog, err = catalog.Load(cfg.CatalogDir)
	if err != nil {
		return nil, s.out.FailWith(ErrCodeCatalog, ExitCommandError, "failed to load catalog", err)
	}
	s.dataset, err = s.catalog.Dataset(dataset)
	if err != nil {
		return nil, s.out.FailWith(ErrCodeCatalog, ExitCommandError, "failed to resolve dataset", err)
	}
	return s, nil
}

// newLogger builds the text handler every command logs through. Debug
// records are emitted only with --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// engineOptions returns the options every engine built by a command shares.
func (s *session) engineOptions(workers int) []engine.Option {
	if workers <= 0 {
		workers = s.cfg.Workers
	}
	opts := []engine.Option{
		engine.WithWorkers(workers),
		engine.WithMatcher(s.matcher),
		engine.WithLogger(s.logger),
	}
	if s.opts.RunIDs != nil {
		opts = append(opts, engine.WithRunIDGenerator(s.opts.RunIDs))
	}
	if s.opts.Clock != nil {
		opts = append(opts, engine.WithClock(s.opts.Clock))
	}
	return opts
}

// queue enumerates the dataset, drops duplicates and applies the active
// subset.
func (s *session) queue(strict bool) (*engine.Queue, error) {
	q, err := engine.Enumerate(s.dataset, s.layout)
	if err != nil {
		return nil, err
	}
	if n := q.Dedup(); n > 0 {
		s.logger.Debug("duplicate requests dropped", "dataset", s.dataset.Name, "count", n)
	}
	n, err := q.ActiveSubset(strict)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		s.logger.Debug("inactive requests dropped", "dataset", s.dataset.Name, "count", n)
	}
	return q, nil
}
