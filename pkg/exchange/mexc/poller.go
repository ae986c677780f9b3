package mexc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/threading"
)

// poller is an explicit lifecycle object around one interval timer. Each
// tick is guarded by a re-entrancy flag: a slow cycle causes the next
// scheduled tick to be skipped, not queued, so exchange latency spikes
// never build an unbounded backlog.
type poller struct {
	interval time.Duration
	tick     func()

	mu       sync.Mutex
	stop     chan struct{}
	wg       sync.WaitGroup
	inFlight atomic.Bool
}

func newPoller(interval time.Duration, tick func()) *poller {
	return &poller{interval: interval, tick: tick}
}

// Start launches the timer loop. Safe to call repeatedly.
func (p *poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	p.wg.Add(1)
	threading.GoSafe(func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.runTick()
			}
		}
	})
}

// Stop halts the timer and waits for the loop goroutine to exit. In-flight
// work is not aborted; its results are discarded by the owner. Safe to call
// repeatedly.
func (p *poller) Stop() {
	p.mu.Lock()
	if p.stop == nil {
		p.mu.Unlock()
		return
	}
	close(p.stop)
	p.stop = nil
	p.mu.Unlock()
	p.wg.Wait()
}

// Running reports whether the timer loop is active.
func (p *poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

func (p *poller) runTick() {
	if !p.inFlight.CompareAndSwap(false, true) {
		return // Previous cycle still running, skip this tick.
	}
	defer p.inFlight.Store(false)
	threading.RunSafe(p.tick)
}
