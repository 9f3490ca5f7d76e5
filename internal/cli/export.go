package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/statfetch/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Out string
}

// ExportResult is the output of the export command.
type ExportResult struct {
	Dataset string `json:"dataset"`
	Path    string `json:"path"`
	Records int    `json:"records"`
}

func (r ExportResult) String() string {
	return fmt.Sprintf("exported %d %s record(s) to %s", r.Records, r.Dataset, r.Path)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <dataset>",
		Short: "Write stored observations to a spreadsheet",
		Long: `Write every stored observation of a dataset to an XLSX workbook, one
row per record, with a column per parameter and field.

Example:
  statfetch export population --out population.xlsx`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "workbook path (required)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(opts *ExportOptions, dataset string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, dataset)
	if err != nil {
		return err
	}

	if _, err := os.Stat(s.cfg.Database()); errors.Is(err, fs.ErrNotExist) {
		return s.out.FailWith(ErrCodeStore, ExitCommandError, "no observations stored", err)
	}
	st, err := store.Open(s.cfg.Database())
	if err != nil {
		return s.out.FailWith(ErrCodeStore, ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	n, err := st.ExportXLSX(cmd.Context(), s.dataset, opts.Out)
	if err != nil {
		return s.out.FailWith(ErrCodeStore, ExitCommandError, "failed to export", err)
	}
	s.logger.Debug("workbook written", "dataset", dataset, "path", opts.Out, "records", n)
	return s.out.Success(ExportResult{Dataset: dataset, Path: opts.Out, Records: n})
}
