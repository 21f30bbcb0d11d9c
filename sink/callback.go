package sink

import (
	"context"

	"github.com/hazyhaar/dmitli/emitter"
)

// Func is called for each notification, in-process.
type Func func(ctx context.Context, n emitter.Notification) error

// Callback delivers notifications via a Go function call.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn Func) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, n emitter.Notification) error {
	if c.fn != nil {
		return c.fn(ctx, n)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
