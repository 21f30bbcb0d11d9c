package sink

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/hazyhaar/dmitli/emitter"
)

// Async decouples a slow sink from the emitting goroutine. Notifications
// are dropped when the buffer is full.
type Async struct {
	next    Sink
	ch      chan emitter.Notification
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewAsync buffers up to size notifications in front of next.
func NewAsync(next Sink, size int, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 64
	}
	return &Async{next: next, ch: make(chan emitter.Notification, size), logger: logger}
}

// Send enqueues n without blocking. It never fails; a full buffer drops n.
func (a *Async) Send(_ context.Context, n emitter.Notification) error {
	select {
	case a.ch <- n:
	default:
		a.dropped.Add(1)
		a.logger.Warn("sink: buffer full, dropping", "kind", n.Kind, "id", n.ID)
	}
	return nil
}

// Dropped counts notifications lost to a full buffer.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Run forwards buffered notifications until ctx is cancelled, then drains
// what is left.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case n := <-a.ch:
			a.forward(ctx, n)
		case <-ctx.Done():
			for {
				select {
				case n := <-a.ch:
					a.forward(context.WithoutCancel(ctx), n)
				default:
					return nil
				}
			}
		}
	}
}

func (a *Async) forward(ctx context.Context, n emitter.Notification) {
	if err := a.next.Send(ctx, n); err != nil {
		a.logger.Warn("sink: async send failed", "kind", n.Kind, "error", err)
	}
}

// Close closes the wrapped sink. Call it after Run has returned.
func (a *Async) Close() error { return a.next.Close() }
