// Package sink defines output backends for game notifications: a JSON-lines
// event log, a webhook, and in-process callbacks.
package sink

import (
	"context"

	"github.com/hazyhaar/dmitli/emitter"
)

// Sink delivers notifications to one backend.
type Sink interface {
	Send(ctx context.Context, n emitter.Notification) error
	Close() error
}

type envelope struct {
	Type string               `json:"type"`
	Data emitter.Notification `json:"data"`
}
