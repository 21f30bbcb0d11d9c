// Command dmitli attaches to a live chess game page and plays audio cues for
// moves, captures, checks and the end of the game.
//
// Usage:
//
//	dmitli run https://lichess.org/abcd1234     # watch one game
//	dmitli -c dmitli.yaml run                   # page and stack from config
//	dmitli options show                         # print playback options
//	dmitli options set enabled=false            # change options; a running daemon restarts
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/dmitli/internal/config"
)

// CLI is the command-line interface.
type CLI struct {
	Config   string `help:"Path to dmitli.yaml." short:"c" type:"path" env:"DMITLI_CONFIG"`
	LogLevel string `help:"Log level." enum:"debug,info,warn,error" default:"info" env:"DMITLI_LOG_LEVEL"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Attach to a game page and play cues."`
	Options OptionsCmd `cmd:"" help:"Show or change playback options."`

	ctx    context.Context `kong:"-"`
	logger *slog.Logger    `kong:"-"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("dmitli"),
		kong.Description("Audio cues for live chess games."),
		kong.UsageOnError(),
	)

	cli.logger = newLogger(cli.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cli.ctx = ctx

	if err := kctx.Run(&cli); err != nil {
		cli.logger.Error("dmitli: fatal", "error", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(name string) *slog.Logger {
	var level slog.Level
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config, or returns defaults when none is given.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.Config == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFile(c.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
