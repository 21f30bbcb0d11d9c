package controller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/dmitli/emitter"
	"github.com/hazyhaar/dmitli/settings"
)

// fakeScheduler runs timers on a manual clock.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	s      *fakeScheduler
	due    time.Duration
	period time.Duration // 0 for one-shot
	fn     func()
	done   bool
}

func (t *fakeTimer) Stop() {
	t.s.mu.Lock()
	t.done = true
	t.s.mu.Unlock()
}

func (s *fakeScheduler) arm(d, period time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, due: s.now + d, period: period, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Every(d time.Duration, fn func()) Timer { return s.arm(d, d, fn) }
func (s *fakeScheduler) After(d time.Duration, fn func()) Timer { return s.arm(d, 0, fn) }

// Live counts timers that can still fire.
func (s *fakeScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing due timers in order.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	end := s.now + d
	s.mu.Unlock()
	for {
		s.mu.Lock()
		var next *fakeTimer
		live := make([]*fakeTimer, 0, len(s.timers))
		for _, t := range s.timers {
			if !t.done {
				live = append(live, t)
			}
		}
		sort.SliceStable(live, func(i, j int) bool { return live[i].due < live[j].due })
		if len(live) > 0 && live[0].due <= end {
			next = live[0]
		}
		if next == nil {
			s.now = end
			s.mu.Unlock()
			return
		}
		s.now = next.due
		if next.period > 0 {
			next.due += next.period
		} else {
			next.done = true
		}
		fn := next.fn
		s.mu.Unlock()
		fn()
	}
}

// recordingQueue records pushes and clears.
type recordingQueue struct {
	mu        sync.Mutex
	pushed    []string
	clears    []bool
	listeners map[int]func()
	nextID    int
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{listeners: make(map[int]func())}
}

func (q *recordingQueue) Push(id string) {
	q.mu.Lock()
	q.pushed = append(q.pushed, id)
	q.mu.Unlock()
}

func (q *recordingQueue) Clear(immediate bool) {
	q.mu.Lock()
	q.clears = append(q.clears, immediate)
	fns := make([]func(), 0, len(q.listeners))
	for _, fn := range q.listeners {
		fns = append(fns, fn)
	}
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (q *recordingQueue) OnCleared(fn func()) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = fn
	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

func (q *recordingQueue) Pushed() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.pushed...)
}

func (q *recordingQueue) Count(id string) int {
	n := 0
	for _, p := range q.Pushed() {
		if p == id {
			n++
		}
	}
	return n
}

func (q *recordingQueue) Reset() {
	q.mu.Lock()
	q.pushed = nil
	q.clears = nil
	q.mu.Unlock()
}

// fakeHost answers the game-over predicate and container text.
type fakeHost struct {
	mu   sync.Mutex
	over bool
	text string
	err  error
}

func (h *fakeHost) set(over bool, text string) {
	h.mu.Lock()
	h.over, h.text = over, text
	h.mu.Unlock()
}

func (h *fakeHost) IsGameOver(context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.over, h.err
}

func (h *fakeHost) Text(context.Context, string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text, nil
}

// staticOptions always loads the same snapshot, or a per-call func.
type staticOptions struct {
	mu    sync.Mutex
	opts  settings.Options
	load  func(ctx context.Context) (settings.Options, error)
	calls int
}

func (s *staticOptions) Load(ctx context.Context) (settings.Options, error) {
	s.mu.Lock()
	s.calls++
	load, opts := s.load, s.opts
	s.mu.Unlock()
	if load != nil {
		return load(ctx)
	}
	return opts, nil
}

func (s *staticOptions) setOpts(o settings.Options) {
	s.mu.Lock()
	s.opts = o
	s.mu.Unlock()
}

type recordingSink struct {
	mu    sync.Mutex
	kinds []emitter.Kind
}

func (s *recordingSink) Send(_ context.Context, n emitter.Notification) error {
	s.mu.Lock()
	s.kinds = append(s.kinds, n.Kind)
	s.mu.Unlock()
	return nil
}
