package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioFiredSet(t *testing.T) {
	s := newRatioFiredSet()

	assert.False(t, s.Fired("p1", "t1"))
	s.MarkFired("p1", "t1")
	assert.True(t, s.Fired("p1", "t1"))
	assert.False(t, s.Fired("p1", "t2"))
	assert.False(t, s.Fired("p2", "t1"))

	s.Reset()
	assert.False(t, s.Fired("p1", "t1"))
}

func TestDropSuppressor_CountsConcurrentDrops(t *testing.T) {
	var d dropSuppressor

	assert.False(t, d.Consume(), "nothing armed yet")

	// Two manual drops in flight: each suppresses exactly one dispatch.
	d.Arm()
	d.Arm()
	assert.True(t, d.Consume())
	assert.True(t, d.Consume())
	assert.False(t, d.Consume())
}

func TestDropSuppressor_DisarmReturnsTheArm(t *testing.T) {
	var d dropSuppressor

	// A manual add that failed never produces the event it armed for.
	d.Arm()
	d.Disarm()
	assert.False(t, d.Consume(), "disarmed count must not suppress a later dispatch")

	// Disarm floors at zero instead of going negative.
	d.Disarm()
	d.Arm()
	assert.True(t, d.Consume())
	assert.False(t, d.Consume())
}

func TestCommandGuard_DeduplicatesInFlight(t *testing.T) {
	g := NewCommandGuard()

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.Do("pause", "torrent-1", func() error {
				if calls.Add(1) == 1 {
					close(started)
				}
				<-release
				return nil
			})
		}(i)
	}

	<-started
	// Let the remaining goroutines reach Do and join the in-flight call;
	// on a single-CPU scheduler they otherwise only get scheduled after
	// release closes and each would run its own execution.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load(), "concurrent calls for the same key share one execution")
	for _, err := range results {
		assert.NoError(t, err)
	}

	// A later call for the same key runs again once the first resolved.
	err := g.Do("pause", "torrent-1", func() error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCommandGuard_DistinctKeysDoNotShare(t *testing.T) {
	g := NewCommandGuard()

	var calls atomic.Int32
	require.NoError(t, g.Do("pause", "a", func() error { calls.Add(1); return nil }))
	require.NoError(t, g.Do("pause", "b", func() error { calls.Add(1); return nil }))
	require.NoError(t, g.Do("resume", "a", func() error { calls.Add(1); return nil }))
	assert.Equal(t, int32(3), calls.Load())
}
