package controller

import (
	"sync"
	"time"
)

// Timer is a handle on an armed callback.
type Timer interface {
	Stop()
}

// Scheduler arms repeating and one-shot callbacks. Callbacks run on their
// own goroutine. Once Stop returns the callback is neither running nor
// scheduled, so fn must not stop its own timer.
type Scheduler interface {
	Every(d time.Duration, fn func()) Timer
	After(d time.Duration, fn func()) Timer
}

// Clock is the wall-clock Scheduler.
type Clock struct{}

// Every calls fn every d until stopped.
func (Clock) Every(d time.Duration, fn func()) Timer {
	t := &tickerTimer{done: make(chan struct{})}
	tk := time.NewTicker(d)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-tk.C:
				t.run(fn)
			}
		}
	}()
	return t
}

// After calls fn once after d unless stopped first.
func (Clock) After(d time.Duration, fn func()) Timer {
	a := &afterTimer{}
	a.t = time.AfterFunc(d, func() { a.run(fn) })
	return a
}

// guard serialises a callback against Stop.
type guard struct {
	mu      sync.Mutex
	stopped bool
}

func (g *guard) run(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.stopped {
		fn()
	}
}

// stop reports whether this call was the one that stopped g.
func (g *guard) stop() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	first := !g.stopped
	g.stopped = true
	return first
}

type tickerTimer struct {
	guard
	done chan struct{}
}

func (t *tickerTimer) Stop() {
	if t.stop() {
		close(t.done)
	}
}

type afterTimer struct {
	guard
	t *time.Timer
}

func (a *afterTimer) Stop() {
	a.stop()
	a.t.Stop()
}
