package emitter

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hazyhaar/dmitli/domwatch"
	"github.com/hazyhaar/dmitli/domwatch/mutation"
	"github.com/hazyhaar/dmitli/idgen"
	"github.com/hazyhaar/dmitli/notation"
)

// DefaultMoveTags are the elements a move list renders one ply into.
var DefaultMoveTags = []string{"move", "san", "kwdb"}

// MovesConfig configures a Moves emitter.
type MovesConfig struct {
	Source   domwatch.Source
	Selector string   // move-list container
	Tags     []string // default DefaultMoveTags
	Logger   *slog.Logger
	IDGen    idgen.Generator
	Now      func() time.Time
}

// Moves watches the move list and emits move/capture/check notifications,
// plus start before the first ply seen after Init.
type Moves struct {
	bus     Bus
	cfg     MovesConfig
	tags    map[string]bool
	watcher domwatch.Watcher

	mu      sync.Mutex
	seen    []string
	tracker *notation.Tracker
	started bool
}

// NewMoves creates the emitter and its (idle) watcher.
func NewMoves(cfg MovesConfig) *Moves {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IDGen == nil {
		cfg.IDGen = idgen.Prefixed("ntf_", idgen.Default)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Tags) == 0 {
		cfg.Tags = DefaultMoveTags
	}
	m := &Moves{
		cfg:     cfg,
		tags:    make(map[string]bool, len(cfg.Tags)),
		tracker: notation.NewTracker(),
	}
	for _, t := range cfg.Tags {
		m.tags[t] = true
	}
	m.watcher = cfg.Source.NewWatcher(m.handle)
	return m
}

// Subscribe registers fn for kind; see Bus.Subscribe.
func (m *Moves) Subscribe(kind Kind, fn Listener) func() {
	return m.bus.Subscribe(kind, fn)
}

// Init starts observing the move list. The next ply raises start.
func (m *Moves) Init(ctx context.Context) error {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()

	return m.watcher.Observe(ctx, m.cfg.Selector, domwatch.Options{ChildList: true, Subtree: true})
}

// Disconnect stops observing.
func (m *Moves) Disconnect() error {
	return m.watcher.Disconnect()
}

// Plies returns a copy of the plies seen so far.
func (m *Moves) Plies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.seen)
}

func (m *Moves) handle(ctx context.Context, batch mutation.Batch) {
	var found []string
	removed := 0
	for _, r := range batch.Records {
		if !r.IsElement() {
			continue
		}
		switch r.Op {
		case mutation.OpInsert:
			found = append(found, m.extract(r.HTML)...)
		case mutation.OpRemove:
			removed += len(m.extract(r.HTML))
		}
	}
	if len(found) == 0 && removed == 0 {
		return
	}

	out := m.apply(found, removed)
	for _, n := range out {
		m.bus.Emit(ctx, n)
	}
}

// extract returns the plies in an inserted or removed fragment. A fragment
// that does not parse carries no plies.
func (m *Moves) extract(fragment string) []string {
	plies, err := notation.Extract(fragment, m.tags)
	if err != nil {
		m.cfg.Logger.Debug("emitter: skip fragment", "error", err)
		return nil
	}
	return plies
}

// apply folds one batch into the seen list and returns the notifications for
// the plies that are new.
func (m *Moves) apply(found []string, removed int) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.nextList(found, removed)

	k := commonPrefix(m.seen, next)
	for m.tracker.Len() > k {
		m.tracker.Pop()
	}
	if len(m.seen) > k {
		m.cfg.Logger.Debug("emitter: plies withdrawn", "count", len(m.seen)-k)
	}
	m.seen = next

	var out []Notification
	for _, san := range next[k:] {
		if !m.started {
			m.started = true
			out = append(out, m.notification(KindStart, ""))
		}
		ply, fen := m.tracker.Push(san)
		n := m.notification(kindOf(notation.Classify(san)), san)
		n.Ply, n.FEN = ply, fen
		out = append(out, n)
	}
	return out
}

// nextList is the move list after the batch. A batch that re-inserts the
// whole list without removals is recognised by its prefix.
func (m *Moves) nextList(found []string, removed int) []string {
	if removed == 0 && len(m.seen) > 0 && len(found) > len(m.seen) &&
		slices.Equal(found[:len(m.seen)], m.seen) {
		return slices.Clone(found)
	}
	keep := max(len(m.seen)-removed, 0)
	next := make([]string, 0, keep+len(found))
	next = append(next, m.seen[:keep]...)
	return append(next, found...)
}

func (m *Moves) notification(kind Kind, san string) Notification {
	return Notification{
		ID:       m.cfg.IDGen(),
		Kind:     kind,
		Notation: san,
		At:       m.cfg.Now(),
	}
}

func kindOf(c notation.Class) Kind {
	switch c {
	case notation.Capture:
		return KindCapture
	case notation.Check:
		return KindCheck
	default:
		return KindMove
	}
}

func commonPrefix(a, b []string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
