// Package controller wires the move and game-state emitters to the audio
// queue and runs the ambient misc/fill/long timers while a game is live.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hazyhaar/dmitli/domwatch"
	"github.com/hazyhaar/dmitli/emitter"
	"github.com/hazyhaar/dmitli/idgen"
	"github.com/hazyhaar/dmitli/settings"
)

// ErrNoMovesElement is returned when the move list cannot be found.
var ErrNoMovesElement = errors.New("controller: moves element not found")

// Sound ids pushed by the controller itself.
const (
	SoundMisc    = "misc"
	SoundFill    = "fill"
	SoundLong    = "long"
	SoundCheck   = "check"
	SoundStart   = "start"
	SoundSignoff = "signoff"
	SoundResign  = "resign"
)

// Queue is the playback side.
type Queue interface {
	Push(id string)
	Clear(immediate bool)
	OnCleared(fn func()) (unsubscribe func())
}

// OptionsLoader returns the current options snapshot.
type OptionsLoader interface {
	Load(ctx context.Context) (settings.Options, error)
}

// Sink receives every notification the controller handles.
type Sink interface {
	Send(ctx context.Context, n emitter.Notification) error
}

// Phase is the controller lifecycle state.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseStopped       Phase = "stopped"
	PhaseRunning       Phase = "running"
)

// Config wires a Controller.
type Config struct {
	Source        domwatch.Source
	Host          emitter.Host
	MovesSelector string
	StateSelector string // defaults to MovesSelector
	MoveTags      []string
	Options       OptionsLoader
	Queue         Queue
	Scheduler     Scheduler       // default Clock
	Rand          func(n int) int // uniform in [0,n); default math/rand
	Sink          Sink            // optional
	Logger        *slog.Logger
	IDGen         idgen.Generator
}

type timerSet struct {
	misc, fill, long Timer
}

// Controller is the playback state machine:
// uninitialized → stopped → running ⇄ stopped.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	moves  *emitter.Moves
	states *emitter.GameState

	mu        sync.Mutex
	phase     Phase
	baseCtx   context.Context
	opts      settings.Options
	timers    timerSet
	unsubs    []func()
	lastState string
	gameOvers int

	reloadGen    uint64
	reloadCancel context.CancelFunc
}

// New validates cfg and builds both emitters. Nothing is observed until Init.
func New(cfg Config) (*Controller, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("controller: nil source")
	case cfg.Host == nil:
		return nil, errors.New("controller: nil host")
	case cfg.Options == nil:
		return nil, errors.New("controller: nil options loader")
	case cfg.Queue == nil:
		return nil, errors.New("controller: nil queue")
	case cfg.MovesSelector == "":
		return nil, fmt.Errorf("%w: empty selector", ErrNoMovesElement)
	}
	if cfg.StateSelector == "" {
		cfg.StateSelector = cfg.MovesSelector
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = Clock{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.IntN
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IDGen == nil {
		cfg.IDGen = idgen.Prefixed("ntf_", idgen.Default)
	}

	c := &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		phase:  PhaseUninitialized,
		opts:   settings.Defaults(),
	}
	c.moves = emitter.NewMoves(emitter.MovesConfig{
		Source:   cfg.Source,
		Selector: cfg.MovesSelector,
		Tags:     cfg.MoveTags,
		Logger:   cfg.Logger,
		IDGen:    cfg.IDGen,
	})
	c.states = emitter.NewGameState(emitter.GameStateConfig{
		Source:   cfg.Source,
		Host:     cfg.Host,
		Selector: cfg.StateSelector,
		Logger:   cfg.Logger,
		IDGen:    cfg.IDGen,
	})
	return c, nil
}

// Init loads options, subscribes to the emitters and the queue, then starts
// if enabled and the game is not already over. ctx bounds the observation
// lifetime.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseUninitialized {
		return errors.New("controller: already initialized")
	}

	opts, err := c.cfg.Options.Load(ctx)
	if err != nil {
		return fmt.Errorf("controller: load options: %w", err)
	}
	c.opts = opts
	c.baseCtx = ctx
	c.subscribeLocked()
	c.phase = PhaseStopped

	over, err := c.cfg.Host.IsGameOver(ctx)
	if err != nil {
		c.logger.Warn("controller: game-over check failed", "error", err)
		over = false
	}
	if opts.Enabled && !over {
		return c.startLocked()
	}
	c.stopLocked()
	c.logger.Info("controller: idle", "enabled", opts.Enabled, "game_over", over)
	return nil
}

func (c *Controller) subscribeLocked() {
	push := func(ctx context.Context, n emitter.Notification) {
		c.record(ctx, n)
		c.cfg.Queue.Push(n.Notation)
	}
	c.unsubs = append(c.unsubs,
		c.cfg.Queue.OnCleared(c.resetMiscInterval),
		c.moves.Subscribe(emitter.KindMove, push),
		c.moves.Subscribe(emitter.KindCapture, push),
		c.moves.Subscribe(emitter.KindCheck, func(ctx context.Context, n emitter.Notification) {
			c.record(ctx, n)
			c.cfg.Queue.Push(SoundCheck)
		}),
		c.moves.Subscribe(emitter.KindStart, func(ctx context.Context, n emitter.Notification) {
			c.record(ctx, n)
			c.cfg.Queue.Push(SoundStart)
		}),
		c.states.Subscribe(emitter.KindState, func(ctx context.Context, n emitter.Notification) {
			c.record(ctx, n)
			c.GameOver(n.State)
		}),
	)
}

func (c *Controller) record(ctx context.Context, n emitter.Notification) {
	if c.cfg.Sink == nil {
		return
	}
	if err := c.cfg.Sink.Send(ctx, n); err != nil {
		c.logger.Debug("controller: sink send failed", "kind", n.Kind, "error", err)
	}
}

// Start activates both emitters and arms the timers. Calling it while
// running re-arms instead of stacking a second set.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseUninitialized {
		return errors.New("controller: start before init")
	}
	return c.startLocked()
}

func (c *Controller) startLocked() error {
	c.disarmLocked()

	ctx := c.baseCtx
	if err := c.moves.Init(ctx); err != nil {
		c.stopLocked()
		if errors.Is(err, domwatch.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNoMovesElement, c.cfg.MovesSelector)
		}
		return fmt.Errorf("controller: observe moves: %w", err)
	}
	if err := c.states.Init(ctx); err != nil {
		c.stopLocked()
		return fmt.Errorf("controller: observe game state: %w", err)
	}

	q := c.cfg.Queue
	c.timers.misc = c.cfg.Scheduler.Every(c.opts.MiscInterval, func() { q.Push(SoundMisc) })
	c.timers.fill = c.cfg.Scheduler.Every(c.opts.FillInterval, func() { q.Push(SoundFill) })
	c.timers.long = c.cfg.Scheduler.After(c.longDelay(), func() { q.Push(SoundLong) })

	c.opts.Enabled = true
	c.phase = PhaseRunning
	c.logger.Info("controller: started",
		"misc_interval", c.opts.MiscInterval, "fill_interval", c.opts.FillInterval)
	return nil
}

// longDelay is (rand[0,longTimeout) + 1) seconds.
func (c *Controller) longDelay() time.Duration {
	n := c.opts.LongTimeout
	if n <= 0 {
		n = 1
	}
	return time.Duration(c.cfg.Rand(n)+1) * time.Second
}

// Stop disconnects both emitters and disarms every timer.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if err := c.moves.Disconnect(); err != nil {
		c.logger.Warn("controller: disconnect moves", "error", err)
	}
	if err := c.states.Disconnect(); err != nil {
		c.logger.Warn("controller: disconnect game state", "error", err)
	}
	c.disarmLocked()
	c.opts.Enabled = false
	if c.phase != PhaseUninitialized {
		c.phase = PhaseStopped
	}
}

func (c *Controller) disarmLocked() {
	for _, t := range []*Timer{&c.timers.misc, &c.timers.fill, &c.timers.long} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

// GameOver stops, cuts the queue and plays the state stinger followed by
// signoff. An empty state plays the resign stinger.
func (c *Controller) GameOver(state string) {
	c.mu.Lock()
	c.stopLocked()
	c.lastState = state
	c.gameOvers++
	c.mu.Unlock()

	if state == "" {
		state = SoundResign
	}
	c.logger.Info("controller: game over", "state", state)

	// Clear fires the cleared listeners synchronously; the lock is released.
	c.cfg.Queue.Clear(true)
	c.cfg.Queue.Push(state)
	c.cfg.Queue.Push(SoundSignoff)
}

// resetMiscInterval restarts the misc timer after the queue was cleared so
// a misc sound does not follow the cut immediately.
func (c *Controller) resetMiscInterval() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timers.misc == nil {
		return
	}
	c.timers.misc.Stop()
	c.timers.misc = nil
	if c.opts.Enabled {
		q := c.cfg.Queue
		c.timers.misc = c.cfg.Scheduler.Every(c.opts.MiscInterval, func() { q.Push(SoundMisc) })
	}
}

// HandleMessage reacts to cross-context signals. On optionsSaved it stops,
// reloads options and starts again if enabled. A newer signal supersedes a
// reload still in flight.
func (c *Controller) HandleMessage(ctx context.Context, msg settings.Message) error {
	if msg.Message != settings.OptionsSaved {
		c.logger.Debug("controller: ignoring message", "message", msg.Message)
		return nil
	}

	c.mu.Lock()
	if c.phase == PhaseUninitialized {
		c.mu.Unlock()
		return nil
	}
	c.stopLocked()
	if c.reloadCancel != nil {
		c.reloadCancel()
	}
	c.reloadGen++
	gen := c.reloadGen
	lctx, cancel := context.WithCancel(ctx)
	c.reloadCancel = cancel
	c.mu.Unlock()

	opts, err := c.cfg.Options.Load(lctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	cancel()
	if gen != c.reloadGen {
		c.logger.Debug("controller: reload superseded", "generation", gen)
		return nil
	}
	c.reloadCancel = nil
	if err != nil {
		return fmt.Errorf("controller: reload options: %w", err)
	}

	c.opts = opts
	if opts.Enabled {
		return c.startLocked()
	}
	c.stopLocked()
	c.logger.Info("controller: disabled by options")
	return nil
}

// Status is a point-in-time view for the API.
type Status struct {
	Phase     Phase         `json:"phase"`
	Options   settings.Wire `json:"options"`
	Plies     []string      `json:"plies"`
	LastState string        `json:"last_state,omitempty"`
	GameOvers int           `json:"game_overs"`
	Timers    []string      `json:"timers"`
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		Phase:     c.phase,
		Options:   c.opts.ToWire(),
		Plies:     c.moves.Plies(),
		LastState: c.lastState,
		GameOvers: c.gameOvers,
		Timers:    []string{},
	}
	if c.timers.misc != nil {
		s.Timers = append(s.Timers, SoundMisc)
	}
	if c.timers.fill != nil {
		s.Timers = append(s.Timers, SoundFill)
	}
	if c.timers.long != nil {
		s.Timers = append(s.Timers, SoundLong)
	}
	return s
}

// Close stops the controller and drops every subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	if c.reloadCancel != nil {
		c.reloadCancel()
		c.reloadCancel = nil
	}
	for _, u := range c.unsubs {
		u()
	}
	c.unsubs = nil
}

// WaitMoves blocks until the move list exists on the page.
func WaitMoves(ctx context.Context, w ElementWaiter, selector string, timeout time.Duration) error {
	if err := w.WaitElement(ctx, selector, timeout); err != nil {
		if errors.Is(err, domwatch.ErrNotFound) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrNoMovesElement, selector, timeout)
		}
		return fmt.Errorf("controller: wait moves: %w", err)
	}
	return nil
}

// ElementWaiter is satisfied by *domwatch.Page.
type ElementWaiter interface {
	WaitElement(ctx context.Context, selector string, timeout time.Duration) error
}
