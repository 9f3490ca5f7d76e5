package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/statfetch/internal/journal"
)

type status int

const (
	statusSucceeded status = iota
	statusFailed
	statusSkipped
	// statusRateLimited stops dispatch; the request is not journaled.
	statusRateLimited
	// statusInterrupted means the context ended mid-request; not journaled.
	statusInterrupted
)

func (s status) String() string {
	switch s {
	case statusSucceeded:
		return "succeeded"
	case statusFailed:
		return "failed"
	case statusSkipped:
		return "skipped"
	case statusRateLimited:
		return "rate_limited"
	default:
		return "interrupted"
	}
}

// stepResult is the outcome of one request. err carries the cause of a
// failed or rate-limited request.
type stepResult struct {
	status status
	err    error
	stored int
}

// stepFunc processes one request. A returned error is fatal to the run.
type stepFunc func(ctx context.Context, runID string, i int, req Request) (stepResult, error)

// Download fetches every request in q, stores each payload and appends one
// download event per completed request to h.
//
// Per-request failures are journaled and the run continues. A rate-limit
// signal from the transport stops dispatch: requests already in flight
// finish, nothing new starts, and the partial Report is returned together
// with a RATE_LIMITED error. A journal write failure aborts the run.
func (e *Engine) Download(ctx context.Context, q *Queue, h *journal.History) (Report, error) {
	if e.transport == nil {
		return Report{}, NewConfigurationError("download requires a transport")
	}
	if h.Mode() != journal.ModeDownload {
		return Report{}, NewConfigurationError(fmt.Sprintf("download needs a download journal, got %q", h.Mode()))
	}
	return e.run(ctx, q, h, e.downloadStep(h))
}

// Load parses the stored payload of every request in q and appends one load
// event per request to h. Parsed values are returned in queue order.
//
// With a Sink configured, each value is stored before its event is
// appended; a value the sink rejects is journaled as an error.
func (e *Engine) Load(ctx context.Context, q *Queue, h *journal.History) (Report, []Result, error) {
	if e.parser == nil {
		return Report{}, nil, NewConfigurationError("load requires a parser")
	}
	if h.Mode() != journal.ModeLoad {
		return Report{}, nil, NewConfigurationError(fmt.Sprintf("load needs a load journal, got %q", h.Mode()))
	}

	c := &collector{}
	rep, err := e.run(ctx, q, h, e.loadStep(h, c))
	return rep, c.sorted(), err
}

// Fetch sends a single request without storing or journaling the result.
func (e *Engine) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if e.transport == nil {
		return nil, NewConfigurationError("fetch requires a transport")
	}
	return e.transport.Send(ctx, req)
}

func (e *Engine) run(ctx context.Context, q *Queue, h *journal.History, step stepFunc) (Report, error) {
	runID := e.runIDs.Generate()
	start := e.clock.Now()
	rep := Report{
		RunID:   runID,
		Dataset: q.Dataset().Name,
		Mode:    h.Mode(),
		Queued:  q.Len(),
	}
	log := e.logger.With("dataset", rep.Dataset, "mode", rep.Mode, "run_id", runID)
	log.Info("run started", "queued", rep.Queued, "workers", max(e.workers, 1))

	quota := NewQuota(e.maxReqs)
	var (
		mu       sync.Mutex
		stopped  atomic.Bool
		limitErr error
	)

	do := func(ctx context.Context, i int, req Request) error {
		if stopped.Load() {
			return nil
		}
		if err := quota.Take(); err != nil {
			return nil
		}
		mu.Lock()
		rep.Attempted++
		mu.Unlock()

		res, err := step(ctx, runID, i, req)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		switch res.status {
		case statusSucceeded:
			rep.Succeeded++
			rep.Stored += res.stored
		case statusSkipped:
			rep.Skipped++
		case statusFailed:
			rep.Failed++
			log.Warn("request failed", "request", req.String(), "fingerprint", req.fp.Short(), "error", res.err)
		case statusRateLimited:
			if !stopped.Swap(true) {
				limitErr = NewRateLimitedError(rep.Dataset, string(req.fp), res.err)
				log.Warn("rate limited, stopping dispatch", "fingerprint", req.fp.Short(), "error", res.err)
			}
		}
		log.Debug("request done", "fingerprint", req.fp.Short(), "status", res.status)
		return nil
	}

	var fatal error
	if e.workers <= 1 {
		for i, req := range q.All() {
			if stopped.Load() || quota.Exhausted() || ctx.Err() != nil {
				break
			}
			if err := do(ctx, i, req); err != nil {
				fatal = err
				break
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for i, req := range q.All() {
			if stopped.Load() || quota.Exhausted() || gctx.Err() != nil {
				break
			}
			g.Go(func() error { return do(gctx, i, req) })
		}
		fatal = g.Wait()
	}

	rep.Duration = e.clock.Now().Sub(start)
	rep.RateLimited = stopped.Load()
	rep.QuotaReached = quota.Exhausted() && rep.Attempted < rep.Queued
	if rep.QuotaReached {
		log.Info("request quota reached, stopping dispatch", "limit", quota.Limit())
	}
	log.Info("run finished",
		"attempted", rep.Attempted,
		"succeeded", rep.Succeeded,
		"failed", rep.Failed,
		"skipped", rep.Skipped,
		"stored", rep.Stored,
		"rate_limited", rep.RateLimited,
		"duration", rep.Duration,
	)

	switch {
	case fatal != nil:
		return rep, fatal
	case limitErr != nil:
		return rep, limitErr
	case ctx.Err() != nil:
		return rep, ctx.Err()
	}
	return rep, nil
}

func (e *Engine) downloadStep(h *journal.History) stepFunc {
	return func(ctx context.Context, runID string, _ int, req Request) (stepResult, error) {
		if !e.overwrite {
			if info, err := os.Stat(req.path); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
				// Already on disk: record it so the journal agrees with the
				// data directory, without a network call.
				res := stepResult{status: statusSkipped}
				return res, e.record(h, runID, req, journal.Success(info.Size(), 0))
			}
		}

		start := e.clock.Now()
		body, err := e.transport.Send(ctx, req)
		elapsed := e.clock.Now().Sub(start)
		if err != nil {
			switch {
			case isRateLimitSignal(err):
				return stepResult{status: statusRateLimited, err: err}, nil
			case ctx.Err() != nil:
				return stepResult{status: statusInterrupted, err: err}, nil
			}
			return stepResult{status: statusFailed, err: err}, e.record(h, runID, req, journal.Failure(err.Error()))
		}

		if err := writePayload(req.path, body); err != nil {
			return stepResult{status: statusFailed, err: err}, e.record(h, runID, req, journal.Failure(err.Error()))
		}
		return stepResult{status: statusSucceeded}, e.record(h, runID, req, journal.Success(int64(len(body)), elapsed))
	}
}

func (e *Engine) loadStep(h *journal.History, c *collector) stepFunc {
	return func(ctx context.Context, runID string, i int, req Request) (stepResult, error) {
		if ctx.Err() != nil {
			return stepResult{status: statusInterrupted, err: ctx.Err()}, nil
		}

		start := e.clock.Now()
		body, err := req.read()
		if err != nil {
			return stepResult{status: statusFailed, err: err}, e.record(h, runID, req, journal.Failure(err.Error()))
		}
		v, err := e.parser.Parse(req, body)
		elapsed := e.clock.Now().Sub(start)
		if err != nil {
			return stepResult{status: statusFailed, err: err}, e.record(h, runID, req, journal.Failure(err.Error()))
		}

		res := Result{Request: req, Value: v}
		stored := 0
		if e.sink != nil {
			// An interrupt must not abandon a half-written value.
			stored, err = e.sink.Store(context.WithoutCancel(ctx), res, runID, start)
			if err != nil {
				err = fmt.Errorf("store: %w", err)
				return stepResult{status: statusFailed, err: err}, e.record(h, runID, req, journal.Failure(err.Error()))
			}
		}

		c.add(i, res)
		return stepResult{status: statusSucceeded, stored: stored}, e.record(h, runID, req, journal.Success(int64(len(body)), elapsed))
	}
}

// record appends one event. Failure to write the journal is fatal.
func (e *Engine) record(h *journal.History, runID string, req Request, o journal.Outcome) error {
	err := h.Append(journal.Event{
		Fingerprint: req.fp,
		Mode:        h.Mode(),
		Outcome:     o,
		RunID:       runID,
		At:          e.clock.Now(),
	})
	if err != nil {
		return NewJournalError(req.dataset, string(req.fp), err)
	}
	return nil
}

// collector accumulates load results from concurrent workers.
type collector struct {
	mu      sync.Mutex
	results []indexedResult
}

type indexedResult struct {
	pos int
	res Result
}

func (c *collector) add(pos int, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, indexedResult{pos: pos, res: r})
}

func (c *collector) sorted() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	slices.SortFunc(c.results, func(a, b indexedResult) int { return a.pos - b.pos })
	out := make([]Result, len(c.results))
	for i, r := range c.results {
		out[i] = r.res
	}
	return out
}

// writePayload replaces path with body atomically, so an interrupted write
// never leaves a partial payload that a later run would skip.
func writePayload(path string, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".payload-*")
	if err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}
