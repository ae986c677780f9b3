package mexc

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollerStartStopLifecycle(t *testing.T) {
	var ticks int64
	p := newPoller(5*time.Millisecond, func() {
		atomic.AddInt64(&ticks, 1)
	})
	assert.False(t, p.Running())

	p.Start()
	p.Start() // repeated start is a no-op
	assert.True(t, p.Running())

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&ticks) >= 2
	}, time.Second, time.Millisecond)

	p.Stop()
	p.Stop() // repeated stop is a no-op
	assert.False(t, p.Running())

	seen := atomic.LoadInt64(&ticks)
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, seen, atomic.LoadInt64(&ticks), "no ticks after stop")
}

func TestPollerSkipsTickWhilePreviousInFlight(t *testing.T) {
	var started int64
	release := make(chan struct{})
	p := newPoller(5*time.Millisecond, func() {
		atomic.AddInt64(&started, 1)
		<-release
	})
	p.Start()
	defer func() {
		close(release)
		p.Stop()
	}()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&started) == 1
	}, time.Second, time.Millisecond)

	// Several intervals pass while the first tick is blocked; none stack up.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&started))
}

func TestPollerRestartsAfterStop(t *testing.T) {
	var ticks int64
	p := newPoller(5*time.Millisecond, func() {
		atomic.AddInt64(&ticks, 1)
	})
	p.Start()
	assert.Eventually(t, func() bool { return atomic.LoadInt64(&ticks) >= 1 }, time.Second, time.Millisecond)
	p.Stop()

	base := atomic.LoadInt64(&ticks)
	p.Start()
	defer p.Stop()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&ticks) > base
	}, time.Second, time.Millisecond)
}
