package engine

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/statfetch/internal/fingerprint"
)

// Matcher correlates journal fingerprints with queue entries. Mark returns
// one flag per request, true when the request's fingerprint is among fps.
//
// Every Matcher must return the same flags for the same input; they differ
// only in cost.
type Matcher interface {
	Mark(reqs []Request, fps []fingerprint.Fingerprint) []bool
}

// MatchStrategy names a Matcher.
type MatchStrategy string

const (
	// MatchSerial walks the queue once per fingerprint: O(n*m).
	MatchSerial MatchStrategy = "serial"
	// MatchIndexed builds a fingerprint index over the queue once: O(n+m).
	MatchIndexed MatchStrategy = "indexed"
	// MatchParallel partitions the queue across goroutines.
	MatchParallel MatchStrategy = "parallel"
)

// ParseMatchStrategy validates a strategy name. Empty means indexed.
func ParseMatchStrategy(s string) (MatchStrategy, error) {
	switch MatchStrategy(s) {
	case "":
		return MatchIndexed, nil
	case MatchSerial, MatchIndexed, MatchParallel:
		return MatchStrategy(s), nil
	default:
		return "", fmt.Errorf("invalid match strategy %q: must be serial, indexed or parallel", s)
	}
}

// NewMatcher returns the Matcher for a strategy.
func NewMatcher(s MatchStrategy) Matcher {
	switch s {
	case MatchSerial:
		return SerialMatcher{}
	case MatchParallel:
		return ParallelMatcher{}
	default:
		return IndexedMatcher{}
	}
}

// SerialMatcher compares fingerprints one at a time.
type SerialMatcher struct{}

func (SerialMatcher) Mark(reqs []Request, fps []fingerprint.Fingerprint) []bool {
	marks := make([]bool, len(reqs))
	for _, fp := range fps {
		for i := range reqs {
			if reqs[i].fp == fp {
				marks[i] = true
			}
		}
	}
	return marks
}

// IndexedMatcher builds a fingerprint to positions index over the queue and
// resolves each fingerprint with one lookup. It is the default.
type IndexedMatcher struct{}

func (IndexedMatcher) Mark(reqs []Request, fps []fingerprint.Fingerprint) []bool {
	marks := make([]bool, len(reqs))
	index := make(map[fingerprint.Fingerprint][]int, len(reqs))
	for i := range reqs {
		index[reqs[i].fp] = append(index[reqs[i].fp], i)
	}
	for _, fp := range fps {
		for _, i := range index[fp] {
			marks[i] = true
		}
	}
	return marks
}

// ParallelMatcher splits the queue into contiguous chunks and marks each
// chunk in its own goroutine. Chunks write disjoint ranges of the result, so
// merging is positional and the outcome equals the serial one.
type ParallelMatcher struct {
	// Workers bounds the number of chunks. Zero means GOMAXPROCS.
	Workers int
}

// minChunk keeps tiny queues from paying goroutine overhead per element.
const minChunk = 256

func (m ParallelMatcher) Mark(reqs []Request, fps []fingerprint.Fingerprint) []bool {
	marks := make([]bool, len(reqs))
	if len(reqs) == 0 || len(fps) == 0 {
		return marks
	}

	set := make(map[fingerprint.Fingerprint]struct{}, len(fps))
	for _, fp := range fps {
		set[fp] = struct{}{}
	}

	workers := m.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := max((len(reqs)+workers-1)/workers, minChunk)

	var g errgroup.Group
	for lo := 0; lo < len(reqs); lo += chunk {
		hi := min(lo+chunk, len(reqs))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				_, marks[i] = set[reqs[i].fp]
			}
			return nil
		})
	}
	_ = g.Wait() // chunk workers never fail
	return marks
}
