package sink

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"github.com/hazyhaar/dmitli/emitter"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
	c   io.Closer
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w, enc: json.NewEncoder(w)}
}

// OpenFile appends JSON lines to path.
func OpenFile(path string) (*Stdout, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	s := NewStdout(f)
	s.c = f
	return s, nil
}

func (s *Stdout) Send(_ context.Context, n emitter.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: string(n.Kind), Data: n})
}

func (s *Stdout) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}
