// Package emitter turns DOM mutation batches from the move list into typed
// game notifications: move, capture, check, start and state.
package emitter

import (
	"context"
	"sync"
	"time"
)

// Kind tags a Notification.
type Kind string

const (
	KindMove    Kind = "move"
	KindCapture Kind = "capture"
	KindCheck   Kind = "check"
	KindStart   Kind = "start"
	KindState   Kind = "state"
)

// Terminal-state labels, in match priority order.
const (
	StateCheckmate     = "checkmate"
	StateDraw          = "draw"
	StateTimeOut       = "time out"
	StateWhiteResigned = "white resigned"
	StateBlackResigned = "black resigned"
)

// TerminalStates is the ordered label list the game-state emitter scans for.
var TerminalStates = []string{
	StateCheckmate,
	StateDraw,
	StateTimeOut,
	StateWhiteResigned,
	StateBlackResigned,
}

// Notification is one game event.
type Notification struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Notation string    `json:"notation,omitempty"` // move, capture, check
	State    string    `json:"state,omitempty"`    // state; "" when no label matched
	Ply      int       `json:"ply,omitempty"`
	FEN      string    `json:"fen,omitempty"`
	At       time.Time `json:"at"`
}

// Listener handles one notification.
type Listener func(ctx context.Context, n Notification)

// Bus is a per-kind listener registry. Listeners run synchronously on the
// emitting goroutine, in subscription order.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[Kind][]subscription
}

type subscription struct {
	id int
	fn Listener
}

// Subscribe registers fn for kind and returns a func that removes it.
// Calling the returned func more than once is harmless.
func (b *Bus) Subscribe(kind Kind, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[Kind][]subscription)
	}
	b.nextID++
	id := b.nextID
	b.listeners[kind] = append(b.listeners[kind], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.listeners[kind]
			for i, s := range subs {
				if s.id == id {
					b.listeners[kind] = append(subs[:i:i], subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit delivers n to the listeners of n.Kind.
func (b *Bus) Emit(ctx context.Context, n Notification) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.listeners[n.Kind]...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(ctx, n)
	}
}
