package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFixedClock_AdvancesByStep(t *testing.T) {
	clock := NewFixedClock(epoch, time.Second)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch.Add(time.Second), clock.Now())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Peek())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Peek(), "peek must not advance")
}

func TestFixedClock_ZeroStepFreezes(t *testing.T) {
	clock := NewFixedClock(epoch, 0)
	assert.Equal(t, clock.Now(), clock.Now())
}

func TestFixedClock_Set(t *testing.T) {
	clock := NewFixedClock(epoch, time.Second)
	later := epoch.Add(time.Hour)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestFixedClock_ConcurrentReadsAreDistinct(t *testing.T) {
	clock := NewFixedClock(epoch, time.Millisecond)

	const n = 100
	var (
		mu   sync.Mutex
		seen = make(map[time.Time]bool)
		wg   sync.WaitGroup
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := clock.Now()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	assert.Equal(t, epoch.Add(n*time.Millisecond), clock.Peek())
}
