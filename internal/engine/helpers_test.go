package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/statfetch/internal/catalog"
	"github.com/roach88/statfetch/internal/fingerprint"
	"github.com/roach88/statfetch/internal/journal"
	"github.com/roach88/statfetch/internal/testutil"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// rateLimitedError mimics a transport error that asks the run to stop.
type rateLimitedError struct{}

func (rateLimitedError) Error() string     { return "429 too many requests" }
func (rateLimitedError) RateLimited() bool { return true }

// fakeTransport answers requests from a script keyed by fingerprint.
type fakeTransport struct {
	mu    sync.Mutex
	fail  map[fingerprint.Fingerprint]error
	calls []fingerprint.Fingerprint

	// limitAfter, when positive, rate-limits every call after the first
	// limitAfter calls.
	limitAfter int64
	count      atomic.Int64

	delay    time.Duration
	inflight atomic.Int64
	peak     atomic.Int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{fail: make(map[fingerprint.Fingerprint]error)}
}

func (f *fakeTransport) Send(ctx context.Context, req Request) ([]byte, error) {
	n := f.count.Add(1)

	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, req.Fingerprint())
	err := f.fail[req.Fingerprint()]
	f.mu.Unlock()

	if f.limitAfter > 0 && n > f.limitAfter {
		return nil, rateLimitedError{}
	}
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"request":%q}`, req.String())), nil
}

func (f *fakeTransport) Calls() []fingerprint.Fingerprint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fingerprint.Fingerprint(nil), f.calls...)
}

// fakeParser returns the request string, or an error for scripted requests.
type fakeParser struct {
	fail map[fingerprint.Fingerprint]error
}

func (p fakeParser) Parse(req Request, body []byte) (any, error) {
	if err := p.fail[req.Fingerprint()]; err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty payload")
	}
	return req.String(), nil
}

// fakeSink records stored values and rejects scripted requests.
type fakeSink struct {
	mu     sync.Mutex
	fail   map[fingerprint.Fingerprint]error
	stored []string
}

func (s *fakeSink) Store(_ context.Context, res Result, _ string, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[res.Request.Fingerprint()]; err != nil {
		return 0, err
	}
	s.stored = append(s.stored, res.Value.(string))
	return 1, nil
}

func testLayout(t *testing.T) Layout {
	t.Helper()
	return Layout{Root: t.TempDir()}
}

func mustRequest(t *testing.T, ds *catalog.Dataset, layout Layout, params map[string]string) Request {
	t.Helper()
	r, err := NewRequest(ds, params, layout)
	require.NoError(t, err)
	return r
}

func ab(a, b string) map[string]string {
	return map[string]string{"A": a, "B": b}
}

func enumerateTwoByTwo(t *testing.T, layout Layout) *Queue {
	t.Helper()
	q, err := Enumerate(testutil.TwoByTwo(), layout)
	require.NoError(t, err)
	return q
}

func openHistory(t *testing.T, layout Layout, mode journal.Mode) *journal.History {
	t.Helper()
	h, err := layout.OpenHistory("D", mode)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

// reopen closes h and reads its file again, as a fresh process would.
func reopen(t *testing.T, h *journal.History) *journal.History {
	t.Helper()
	require.NoError(t, h.Close())
	again, err := journal.Open(h.Path(), h.Mode())
	require.NoError(t, err)
	return again
}

// bigDataset returns a dataset with dims[i] values in dimension i.
func bigDataset(dims ...int) *catalog.Dataset {
	ds := &catalog.Dataset{Name: "big"}
	for i, n := range dims {
		dim := catalog.Dimension{Name: fmt.Sprintf("p%d", i)}
		for v := range n {
			dim.Values = append(dim.Values, catalog.Value{Code: fmt.Sprintf("v%03d", v)})
		}
		ds.Params = append(ds.Params, dim)
	}
	return ds
}

func fps(q *Queue) []fingerprint.Fingerprint { return q.Fingerprints() }

func fpsOf(reqs ...Request) []fingerprint.Fingerprint {
	out := make([]fingerprint.Fingerprint, len(reqs))
	for i, r := range reqs {
		out[i] = r.Fingerprint()
	}
	return out
}
