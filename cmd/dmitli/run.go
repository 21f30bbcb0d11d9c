package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/dmitli/api"
	"github.com/hazyhaar/dmitli/audio"
	"github.com/hazyhaar/dmitli/controller"
	"github.com/hazyhaar/dmitli/dbopen"
	"github.com/hazyhaar/dmitli/domwatch"
	"github.com/hazyhaar/dmitli/internal/config"
	"github.com/hazyhaar/dmitli/settings"
	"github.com/hazyhaar/dmitli/sink"
	"github.com/hazyhaar/dmitli/watch"
)

// RunCmd is the daemon.
type RunCmd struct {
	URL    string `arg:"" optional:"" help:"Game page URL (overrides page.url)."`
	Sounds string `help:"Sounds directory (overrides sounds.dir)." type:"path"`
	Player string `help:"Playback backend, exec or beep (overrides sounds.player)."`
	Addr   string `help:"HTTP API address (overrides api.addr)."`
}

func (r *RunCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	r.apply(cfg)
	if p := cfg.Sounds.Player; p != "exec" && p != "beep" {
		return fmt.Errorf("run: unknown player %q", p)
	}
	if cfg.Page.URL == "" {
		return errors.New("run: no page url (argument or page.url)")
	}
	return runDaemon(cli.ctx, cli.logger, cfg)
}

func (r *RunCmd) apply(cfg *config.Config) {
	if r.URL != "" {
		cfg.Page.URL = r.URL
	}
	if r.Sounds != "" {
		cfg.Sounds.Dir = r.Sounds
	}
	if r.Player != "" {
		cfg.Sounds.Player = r.Player
	}
	if r.Addr != "" {
		cfg.API.Addr = r.Addr
	}
}

func runDaemon(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	resolver, player, err := buildAudio(cfg.Sounds, logger)
	if err != nil {
		return err
	}
	queue := audio.NewQueue(resolver, player, logger)

	db, err := dbopen.Open(cfg.Store.Path,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(settings.Schema),
		dbopen.WithSchema(sink.EventsSchema))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	store := settings.NewStore(db, logger)

	browser := domwatch.NewBrowser(cfg.Browser, logger)
	if err := browser.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Open(ctx, cfg.Page.URL)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if err := controller.WaitMoves(ctx, page, cfg.Page.MovesSelector, cfg.Page.WaitTimeout); err != nil {
		return err
	}

	events, err := buildSinks(cfg.Sinks, db, logger)
	if err != nil {
		return err
	}
	defer events.Close()

	ctl, err := controller.New(controller.Config{
		Source:        page,
		Host:          pageHost{page: page, gameOverExpr: cfg.Page.GameOverExpr},
		MovesSelector: cfg.Page.MovesSelector,
		StateSelector: cfg.Page.StateSelector,
		MoveTags:      cfg.Page.MoveTags,
		Options:       store,
		Queue:         queue,
		Sink:          events,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := ctl.Init(gctx); err != nil {
		return err
	}
	g.Go(func() error { return queue.Run(gctx) })
	g.Go(func() error { return events.Run(gctx) })
	logger.Info("dmitli: attached", "url", page.URL(), "selector", cfg.Page.MovesSelector)

	reload := func(ctx context.Context) error {
		return ctl.HandleMessage(ctx, settings.Message{Message: settings.OptionsSaved})
	}
	watcher := settings.Watch(db, cfg.Watch.Interval, cfg.Watch.Debounce, logger)
	g.Go(func() error {
		watcher.OnChange(gctx, reload)
		return nil
	})

	if cfg.API.Addr != "" {
		acfg := optionsAPI(cfg.API.Addr, store, watcher, db, logger)
		acfg.Controller = ctl
		acfg.Queue = queue
		srv := api.New(acfg)
		g.Go(func() error { return srv.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		ctl.Close()
		return nil
	})

	return g.Wait()
}

// optionsAPI configures the HTTP API over the options store. Notify is left
// unset: a PUT bumps options.updated_at, and watcher delivers optionsSaved for
// it like for any other writer.
func optionsAPI(addr string, store *settings.Store, watcher *watch.Watcher, db *sql.DB, logger *slog.Logger) api.Config {
	return api.Config{
		Addr:   addr,
		Store:  store,
		Watch:  watcher,
		Events: sink.NewSQLite(db),
		Logger: logger,
	}
}

func buildAudio(sc config.SoundsConfig, logger *slog.Logger) (audio.Resolver, audio.Player, error) {
	if sc.Player == "beep" {
		return audio.Tones{}, audio.NewBeepPlayer(), nil
	}
	lib, err := audio.LoadLibrary(sc.Dir, logger)
	if err != nil {
		return nil, nil, err
	}
	return lib, audio.NewExecPlayer(sc.Command, sc.Args...), nil
}

// buildSinks returns an async fan-out over the configured sinks so a slow
// webhook never holds up the emitters.
func buildSinks(scs []config.SinkConfig, db *sql.DB, logger *slog.Logger) (*sink.Async, error) {
	var sinks []sink.Sink
	for _, sc := range scs {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, sink.NewStdout(nil))
		case "file":
			f, err := sink.OpenFile(sc.Path)
			if err != nil {
				return nil, fmt.Errorf("open event log: %w", err)
			}
			sinks = append(sinks, f)
		case "webhook":
			sinks = append(sinks, sink.NewWebhook(sc.URL, sink.WithWebhookLogger(logger)))
		case "sqlite":
			sinks = append(sinks, sink.NewSQLite(db))
		}
	}
	return sink.NewAsync(sink.NewRouter(logger, sinks...), 256, logger), nil
}
