// Package observer attaches a MutationObserver to one subtree of a page and
// relays its batches to Go through a Runtime binding.
package observer

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/goccy/go-json"

	"github.com/hazyhaar/dmitli/domwatch/internal/browser"
	"github.com/hazyhaar/dmitli/domwatch/mutation"
	"github.com/hazyhaar/dmitli/idgen"
)

//go:embed observer.js
var observerJS string

const disconnectJS = `(binding) => {
	const registry = window.__dmitli_observers || {};
	if (registry[binding]) {
		registry[binding].disconnect();
		delete registry[binding];
	}
}`

// ErrRootNotFound is returned by Observe when the selector matches nothing.
var ErrRootNotFound = errors.New("observer: root element not found")

// Options selects which mutation types the observer reports.
type Options struct {
	ChildList     bool `json:"child_list"`
	Subtree       bool `json:"subtree"`
	Attributes    bool `json:"attributes"`
	CharacterData bool `json:"character_data"`
}

// Handler receives batches in the order the browser produced them.
type Handler func(ctx context.Context, batch mutation.Batch)

var bindingSeq atomic.Uint64

// Observer manages one MutationObserver on a tab. Observe and Disconnect may
// be called any number of times; at most one scope is active at once.
type Observer struct {
	tab     *browser.Tab
	handler Handler
	logger  *slog.Logger
	newID   idgen.Generator
	binding string

	mu       sync.Mutex
	cancel   context.CancelFunc // non-nil while observing
	selector string
	bound    bool

	seq atomic.Uint64
}

// Config for creating an Observer.
type Config struct {
	Tab     *browser.Tab
	Handler Handler
	Logger  *slog.Logger
	IDGen   idgen.Generator
}

// New creates an Observer. Nothing is injected until Observe.
func New(cfg Config) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IDGen == nil {
		cfg.IDGen = idgen.Prefixed("bat_", idgen.Default)
	}
	return &Observer{
		tab:     cfg.Tab,
		handler: cfg.Handler,
		logger:  cfg.Logger,
		newID:   cfg.IDGen,
		binding: "__dmitli_binding_" + strconv.FormatUint(bindingSeq.Add(1), 10),
	}
}

// Observe starts watching the first element matching selector. A previous
// scope is replaced.
func (o *Observer) Observe(ctx context.Context, selector string, opts Options) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.disconnectLocked()

	if !o.bound {
		if err := o.tab.AddBinding(o.binding); err != nil {
			return fmt.Errorf("observer: add binding: %w", err)
		}
		o.bound = true
	}

	lctx, cancel := context.WithCancel(ctx)

	// Subscribe before injecting so the first batch cannot be missed.
	wait := o.tab.Page.Context(lctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != o.binding {
			return
		}
		o.deliver(lctx, selector, e.Payload)
	})
	go wait()

	res, err := o.tab.Page.Context(lctx).Eval(observerJS, o.binding, selector, opts)
	if err != nil {
		cancel()
		return fmt.Errorf("observer: inject: %w", err)
	}
	if !res.Value.Bool() {
		cancel()
		return fmt.Errorf("%w: %s", ErrRootNotFound, selector)
	}

	o.cancel = cancel
	o.selector = selector
	o.logger.Debug("observer: observing", "selector", selector, "binding", o.binding)
	return nil
}

// Disconnect stops watching. It is a no-op when not observing.
func (o *Observer) Disconnect() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disconnectLocked()
}

func (o *Observer) disconnectLocked() error {
	if o.cancel == nil {
		return nil
	}
	o.cancel()
	o.cancel = nil

	_, err := o.tab.Page.Eval(disconnectJS, o.binding)
	if err != nil {
		o.logger.Warn("observer: disconnect script failed", "selector", o.selector, "error", err)
		return fmt.Errorf("observer: disconnect: %w", err)
	}
	o.logger.Debug("observer: disconnected", "selector", o.selector)
	return nil
}

func (o *Observer) deliver(ctx context.Context, selector, payload string) {
	records, err := decodeRecords(payload)
	if err != nil {
		o.logger.Warn("observer: parse binding payload", "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	batch := mutation.Batch{
		ID:        o.newID(),
		Selector:  selector,
		Seq:       o.seq.Add(1),
		Records:   records,
		Timestamp: time.Now().UnixMilli(),
	}
	o.handler(ctx, batch)
}

// decodeRecords parses the JSON array posted by observer.js, drops inserts
// nested in another insert and folds redundant attr/text churn.
func decodeRecords(payload string) ([]mutation.Record, error) {
	var records []mutation.Record
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, err
	}
	return compress(dropNested(records)), nil
}
