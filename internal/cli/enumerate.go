package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/statfetch/internal/engine"
	"github.com/roach88/statfetch/internal/journal"
)

// EnumerateOptions holds flags for the enumerate command.
type EnumerateOptions struct {
	*RootOptions
	Strict bool
}

// EnumerateResult is the output of the enumerate command.
type EnumerateResult struct {
	Dataset    string `json:"dataset"`
	Enumerated int    `json:"enumerated"`
	Duplicates int    `json:"duplicates"`
	Inactive   int    `json:"inactive"`
	Completed  int    `json:"completed"`
	Pending    int    `json:"pending"`
}

func (r EnumerateResult) String() string {
	return fmt.Sprintf("%s: %d enumerated, %d duplicate, %d inactive, %d completed, %d pending",
		r.Dataset, r.Enumerated, r.Duplicates, r.Inactive, r.Completed, r.Pending)
}

// NewEnumerateCommand creates the enumerate command.
func NewEnumerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnumerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enumerate <dataset>",
		Short: "Count the requests a download would send",
		Long: `Enumerate every parameter combination of a dataset and report how many
remain after dropping duplicates, inactive values and requests the
download journal already records as completed.

Example:
  statfetch enumerate population --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnumerate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on parameter values no longer in the catalog")

	return cmd
}

func runEnumerate(opts *EnumerateOptions, dataset string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, dataset)
	if err != nil {
		return err
	}

	q, err := engine.Enumerate(s.dataset, s.layout)
	if err != nil {
		return s.out.Fail("failed to enumerate", err, nil)
	}
	res := EnumerateResult{Dataset: dataset, Enumerated: q.Len()}
	res.Duplicates = q.Dedup()
	res.Inactive, err = q.ActiveSubset(opts.Strict)
	if err != nil {
		return s.out.Fail("failed to enumerate", err, nil)
	}

	h, err := s.layout.OpenHistory(dataset, journal.ModeDownload)
	if err != nil {
		return s.out.Fail("failed to open journal", err, nil)
	}
	res.Completed = q.ExcludeWith(h, s.matcher)
	res.Pending = q.Len()

	return s.out.Success(res)
}
