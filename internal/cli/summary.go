package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/statfetch/internal/engine"
)

// RunSummary is the output of download and load.
type RunSummary struct {
	RunID       string `json:"run_id"`
	Dataset     string `json:"dataset"`
	Mode        string `json:"mode"`
	Queued      int    `json:"queued"`
	Attempted   int    `json:"attempted"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	RateLimited bool   `json:"rate_limited,omitempty"`
	QuotaHit    bool   `json:"quota_reached,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	Stored      int    `json:"stored,omitempty"`
}

func newRunSummary(rep engine.Report) RunSummary {
	return RunSummary{
		RunID:       rep.RunID,
		Dataset:     rep.Dataset,
		Mode:        string(rep.Mode),
		Queued:      rep.Queued,
		Attempted:   rep.Attempted,
		Succeeded:   rep.Succeeded,
		Failed:      rep.Failed,
		Skipped:     rep.Skipped,
		RateLimited: rep.RateLimited,
		QuotaHit:    rep.QuotaReached,
		DurationMS:  rep.Duration.Milliseconds(),
		Stored:      rep.Stored,
	}
}

func (r RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (run %s)\n", r.Dataset, r.Mode, r.RunID)
	fmt.Fprintf(&b, "  queued:    %d\n", r.Queued)
	fmt.Fprintf(&b, "  attempted: %d\n", r.Attempted)
	fmt.Fprintf(&b, "  succeeded: %d\n", r.Succeeded)
	fmt.Fprintf(&b, "  failed:    %d\n", r.Failed)
	fmt.Fprintf(&b, "  skipped:   %d", r.Skipped)
	if r.Mode == "load" {
		fmt.Fprintf(&b, "\n  stored:    %d", r.Stored)
	}
	if r.QuotaHit {
		b.WriteString("\n  stopped early: request quota reached")
	}
	if r.RateLimited {
		b.WriteString("\n  stopped early: remote service is rate limiting")
	}
	return b.String()
}

// finish prints the summary of a run and turns the run's error, or any
// failed request, into the command's exit status.
func (s *session) finish(sum RunSummary, err error) error {
	if err == nil && sum.Failed == 0 {
		return s.out.Success(sum)
	}

	var details any = sum
	if s.out.Format != "json" {
		fmt.Fprintln(s.out.Writer, sum)
		details = nil
	}

	if err != nil {
		return s.out.Fail(sum.Mode+" stopped", err, details)
	}
	failed := fmt.Errorf("%d of %d requests failed", sum.Failed, sum.Attempted)
	_ = s.out.Error(ErrCodeFailures, failed.Error(), details)
	return WrapExitError(ExitFailure, sum.Mode+" finished with failures", failed)
}
