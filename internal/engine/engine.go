package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/statfetch/internal/journal"
)

// Transport sends one request to the remote API. It returns the raw body or
// an error; errors implementing RateLimited() bool that report true stop the
// run instead of being recorded.
type Transport interface {
	Send(ctx context.Context, req Request) ([]byte, error)
}

// Parser turns a stored payload into a domain value.
type Parser interface {
	Parse(req Request, body []byte) (any, error)
}

// Sink persists one parsed payload and returns the number of records it
// wrote. Load calls it before journaling the request, so the load journal
// never records a request whose records were not stored.
type Sink interface {
	Store(ctx context.Context, res Result, runID string, at time.Time) (int, error)
}

// Engine executes queues against a transport or parser, journaling every
// outcome.
type Engine struct {
	layout    Layout
	transport Transport
	parser    Parser
	sink      Sink
	workers   int
	matcher   Matcher
	logger    *slog.Logger
	clock     Clock
	runIDs    RunIDGenerator
	overwrite bool
	maxReqs   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithTransport sets the collaborator used by Download.
func WithTransport(t Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithParser sets the collaborator used by Load.
func WithParser(p Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithSink sets where Load stores each parsed payload.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithWorkers sets the worker pool size. Values below 2 run sequentially.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithMatcher sets the strategy used by the engine's queue filters.
func WithMatcher(m Matcher) Option {
	return func(e *Engine) { e.matcher = m }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock used for event timestamps and durations.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRunID makes every run use id instead of a fresh UUIDv7.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runIDs = staticRunID(id) }
}

// WithRunIDGenerator sets the source of run IDs.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithOverwrite makes Download re-fetch requests whose payload is already
// on disk.
func WithOverwrite(overwrite bool) Option {
	return func(e *Engine) { e.overwrite = overwrite }
}

// WithMaxRequests caps how many requests each run dispatches. Zero or less
// means no cap.
func WithMaxRequests(n int) Option {
	return func(e *Engine) { e.maxReqs = n }
}

// New creates an Engine rooted at layout.
func New(layout Layout, opts ...Option) *Engine {
	e := &Engine{
		layout:  layout,
		workers: 1,
		matcher: IndexedMatcher{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:   SystemClock{},
		runIDs:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Layout returns the data directory layout.
func (e *Engine) Layout() Layout { return e.layout }

// Matcher returns the configured matching strategy.
func (e *Engine) Matcher() Matcher { return e.matcher }

// Report summarises one run. Attempted counts dispatched requests; each of
// them ends up Succeeded, Failed or Skipped unless the run was interrupted.
type Report struct {
	RunID       string
	Dataset     string
	Mode        journal.Mode
	Queued      int
	Attempted   int
	Succeeded   int
	Failed      int
	Skipped     int
	RateLimited bool

	// Stored counts the records the sink wrote during a Load run.
	Stored int

	// QuotaReached is set when the run stopped at its request cap.
	QuotaReached bool
	Duration     time.Duration
}

// Result is one parsed payload from a Load run.
type Result struct {
	Request Request
	Value   any
}
