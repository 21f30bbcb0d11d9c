package emitter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/dmitli/domwatch"
	"github.com/hazyhaar/dmitli/domwatch/mutation"
	"github.com/hazyhaar/dmitli/idgen"
)

// GameStateConfig configures a GameState emitter.
type GameStateConfig struct {
	Source   domwatch.Source
	Host     Host
	Selector string // game container, scanned for terminal labels
	Logger   *slog.Logger
	IDGen    idgen.Generator
	Now      func() time.Time
}

// GameState emits one state notification when the host reports the game as
// over. Further mutations are ignored until the host reports a live game
// again (rematch) or Init is called.
type GameState struct {
	bus      Bus
	cfg      GameStateConfig
	watchers []domwatch.Watcher

	mu       sync.Mutex
	reported bool
}

// NewGameState creates the emitter and its (idle) watcher.
func NewGameState(cfg GameStateConfig) *GameState {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IDGen == nil {
		cfg.IDGen = idgen.Prefixed("ntf_", idgen.Default)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	g := &GameState{cfg: cfg}
	g.watchers = append(g.watchers, cfg.Source.NewWatcher(g.handle))
	return g
}

// Subscribe registers fn for kind; see Bus.Subscribe.
func (g *GameState) Subscribe(kind Kind, fn Listener) func() {
	return g.bus.Subscribe(kind, fn)
}

// Init starts observing the container.
func (g *GameState) Init(ctx context.Context) error {
	g.mu.Lock()
	g.reported = false
	g.mu.Unlock()

	var errs []error
	for _, w := range g.watchers {
		if err := w.Observe(ctx, g.cfg.Selector, domwatch.Options{ChildList: true, Subtree: true}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Disconnect tears down every owned watcher.
func (g *GameState) Disconnect() error {
	var errs []error
	for _, w := range g.watchers {
		if err := w.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *GameState) handle(ctx context.Context, _ mutation.Batch) {
	over, err := g.cfg.Host.IsGameOver(ctx)
	if err != nil {
		g.cfg.Logger.Debug("emitter: game-over check failed", "error", err)
		return
	}

	g.mu.Lock()
	if !over {
		g.reported = false
		g.mu.Unlock()
		return
	}
	if g.reported {
		g.mu.Unlock()
		return
	}
	g.reported = true
	g.mu.Unlock()

	text, err := g.cfg.Host.Text(ctx, g.cfg.Selector)
	if err != nil {
		g.cfg.Logger.Warn("emitter: read game text failed", "error", err)
	}
	state := MatchState(text)
	g.cfg.Logger.Info("emitter: game over", "state", state)

	g.bus.Emit(ctx, Notification{
		ID:    g.cfg.IDGen(),
		Kind:  KindState,
		State: state,
		At:    g.cfg.Now(),
	})
}

// MatchState returns the first TerminalStates label found in text
// (case-insensitive), or "" when none is present.
func MatchState(text string) string {
	lower := strings.ToLower(text)
	for _, s := range TerminalStates {
		if strings.Contains(lower, s) {
			return s
		}
	}
	return ""
}
