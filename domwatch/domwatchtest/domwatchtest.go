// Package domwatchtest provides an in-memory domwatch.Source for tests:
// batches are injected by hand instead of coming from a browser.
package domwatchtest

import (
	"context"
	"sync"

	"github.com/hazyhaar/dmitli/domwatch"
	"github.com/hazyhaar/dmitli/domwatch/mutation"
)

// Source records every Watcher it hands out.
type Source struct {
	mu       sync.Mutex
	watchers []*Watcher
	// Missing lists selectors for which Observe fails with domwatch.ErrNotFound.
	Missing map[string]bool
}

// NewWatcher implements domwatch.Source.
func (s *Source) NewWatcher(h domwatch.Handler) domwatch.Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &Watcher{handler: h, missing: s.Missing}
	s.watchers = append(s.watchers, w)
	return w
}

// Watchers returns the watchers created so far.
func (s *Source) Watchers() []*Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Watcher(nil), s.watchers...)
}

// Active counts watchers currently observing.
func (s *Source) Active() int {
	n := 0
	for _, w := range s.Watchers() {
		if w.Observing() {
			n++
		}
	}
	return n
}

// Fire delivers batch to every observing watcher whose selector matches.
func (s *Source) Fire(ctx context.Context, selector string, batch mutation.Batch) {
	for _, w := range s.Watchers() {
		if w.Observing() && w.Selector() == selector {
			w.Fire(ctx, batch)
		}
	}
}

// Watcher is a fake domwatch.Watcher.
type Watcher struct {
	handler domwatch.Handler
	missing map[string]bool

	mu          sync.Mutex
	observing   bool
	selector    string
	opts        domwatch.Options
	observes    int
	disconnects int
	seq         uint64
}

// Observe implements domwatch.Watcher.
func (w *Watcher) Observe(_ context.Context, selector string, opts domwatch.Options) error {
	if w.missing[selector] {
		return domwatch.ErrNotFound
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observing = true
	w.selector = selector
	w.opts = opts
	w.observes++
	return nil
}

// Disconnect implements domwatch.Watcher.
func (w *Watcher) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.observing {
		w.disconnects++
	}
	w.observing = false
	return nil
}

// Fire hands batch to the handler when observing; it is dropped otherwise,
// like a disconnected MutationObserver.
func (w *Watcher) Fire(ctx context.Context, batch mutation.Batch) {
	w.mu.Lock()
	if !w.observing {
		w.mu.Unlock()
		return
	}
	w.seq++
	batch.Seq = w.seq
	batch.Selector = w.selector
	w.mu.Unlock()
	w.handler(ctx, batch)
}

// Observing reports whether the watcher is active.
func (w *Watcher) Observing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.observing
}

// Selector returns the last observed selector.
func (w *Watcher) Selector() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selector
}

// Options returns the last observe options.
func (w *Watcher) Options() domwatch.Options {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opts
}

// Counts returns how many times Observe and an effective Disconnect ran.
func (w *Watcher) Counts() (observes, disconnects int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.observes, w.disconnects
}

// InsertMoves builds a batch inserting one <move> element per ply.
func InsertMoves(plies ...string) mutation.Batch {
	var b mutation.Batch
	for _, p := range plies {
		b.Records = append(b.Records, mutation.Record{
			Op:       mutation.OpInsert,
			NodeType: 1,
			Tag:      "move",
			HTML:     "<move>" + p + "</move>",
		})
	}
	return b
}

// RemoveMoves builds a batch removing one <move> element per ply.
func RemoveMoves(plies ...string) mutation.Batch {
	var b mutation.Batch
	for _, p := range plies {
		b.Records = append(b.Records, mutation.Record{
			Op:       mutation.OpRemove,
			NodeType: 1,
			Tag:      "move",
			HTML:     "<move>" + p + "</move>",
		})
	}
	return b
}

// ClockTick builds a batch that only changes clock text.
func ClockTick(value string) mutation.Batch {
	return mutation.Batch{Records: []mutation.Record{{
		Op:       mutation.OpText,
		XPath:    "/div[1]/div[2]/time[1]/text()",
		NodeType: 3,
		Value:    value,
	}}}
}

var _ domwatch.Source = (*Source)(nil)
