package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hazyhaar/dmitli/dbopen"
	"github.com/hazyhaar/dmitli/settings"
)

// OptionsCmd groups the options subcommands.
type OptionsCmd struct {
	Show OptionsShowCmd `cmd:"" default:"1" help:"Print the stored options as JSON."`
	Set  OptionsSetCmd  `cmd:"" help:"Change options (key=value). A running daemon picks the change up."`
}

// OptionsShowCmd prints the options.
type OptionsShowCmd struct{}

// OptionsSetCmd writes options.
type OptionsSetCmd struct {
	Pairs []string `arg:"" help:"key=value pairs: enabled, miscInterval (ms), fillInterval (ms), longTimeout (s)."`
}

func (c *CLI) openStore() (*settings.Store, *sql.DB, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := dbopen.Open(cfg.Store.Path, dbopen.WithMkdirAll(), dbopen.WithSchema(settings.Schema))
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return settings.NewStore(db, c.logger), db, nil
}

func (o *OptionsShowCmd) Run(cli *CLI) error {
	store, db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	opts, err := store.Load(cli.ctx)
	if err != nil {
		return err
	}
	return printOptions(opts)
}

func (o *OptionsSetCmd) Run(cli *CLI) error {
	store, db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	var opts settings.Options
	for _, pair := range o.Pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("options: %q is not key=value", pair)
		}
		opts, err = store.Set(cli.ctx, strings.TrimSpace(key), strings.TrimSpace(value))
		if err != nil {
			return err
		}
	}
	return printOptions(opts)
}

func printOptions(o settings.Options) error {
	data, err := json.MarshalIndent(o.ToWire(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
