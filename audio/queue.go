package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Queue plays pushed ids one after another. Push and Clear are safe from any
// goroutine; Run owns playback.
type Queue struct {
	resolver Resolver
	player   Player
	logger   *slog.Logger

	mu        sync.Mutex
	items     []string
	cancelCur context.CancelFunc
	current   string
	listeners map[uint64]func()
	nextID    uint64
	played    uint64
	skipped   uint64

	wake chan struct{}
}

// NewQueue builds a queue. Nothing plays until Run.
func NewQueue(r Resolver, p Player, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		resolver:  r,
		player:    p,
		logger:    logger,
		listeners: make(map[uint64]func()),
		wake:      make(chan struct{}, 1),
	}
}

// Push appends id.
func (q *Queue) Push(id string) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Clear drops every pending id. When immediate is set the sound playing now
// is cut as well. Cleared listeners run synchronously on the caller's
// goroutine, outside the queue lock.
func (q *Queue) Clear(immediate bool) {
	q.mu.Lock()
	q.items = nil
	if immediate && q.cancelCur != nil {
		q.cancelCur()
	}
	fns := make([]func(), 0, len(q.listeners))
	for _, fn := range q.listeners {
		fns = append(fns, fn)
	}
	q.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// OnCleared registers fn for the cleared signal and returns its unsubscribe.
func (q *Queue) OnCleared(fn func()) func() {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = fn
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.listeners, id)
			q.mu.Unlock()
		})
	}
}

// Len is the number of pending ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a copy of the pending ids.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.items...)
}

// QueueStats are point-in-time counters.
type QueueStats struct {
	Pending int    `json:"pending"`
	Current string `json:"current,omitempty"`
	Played  uint64 `json:"played"`
	Skipped uint64 `json:"skipped"`
}

// Stats returns the current counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{Pending: len(q.items), Current: q.current, Played: q.played, Skipped: q.skipped}
}

// Run plays ids until ctx is cancelled. Unknown ids and player errors are
// logged and skipped.
func (q *Queue) Run(ctx context.Context) error {
	for {
		id, pctx, ok := q.pop(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			q.finish()
			return nil
		}
		q.play(pctx, id)
	}
}

// pop takes the next id and makes it current in the same critical section,
// so a Clear(true) that lands before playback starts still cuts it.
func (q *Queue) pop(ctx context.Context) (string, context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", nil, false
	}
	id := q.items[0]
	q.items = q.items[1:]
	pctx, cancel := context.WithCancel(ctx)
	q.cancelCur = cancel
	q.current = id
	return id, pctx, true
}

// finish releases the current slot.
func (q *Queue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelCur != nil {
		q.cancelCur()
		q.cancelCur = nil
	}
	q.current = ""
}

func (q *Queue) play(ctx context.Context, id string) {
	s, ok := q.resolver.Resolve(id)
	if !ok || ctx.Err() != nil {
		q.finish()
		q.mu.Lock()
		q.skipped++
		q.mu.Unlock()
		q.logger.Debug("audio: skipped", "id", id, "resolved", ok)
		return
	}

	err := q.player.Play(ctx, s)

	q.finish()
	q.mu.Lock()
	q.played++
	q.mu.Unlock()

	switch {
	case err == nil:
		q.logger.Debug("audio: played", "id", id, "key", s.Key)
	case errors.Is(err, context.Canceled):
		q.logger.Debug("audio: playback cut", "id", id)
	default:
		q.logger.Warn("audio: playback failed", "id", id, "error", err)
	}
}
