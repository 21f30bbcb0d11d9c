// Package config loads the dmitli YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/dmitli/domwatch"
)

// Defaults for the lichess board page.
const (
	DefaultMovesSelector = "#lichess .moves"
	DefaultGameOverExpr  = "window.lichess && lichess.isGameOver && lichess.isGameOver()"
)

// Config is the top-level configuration.
type Config struct {
	Browser domwatch.BrowserConfig `yaml:"browser"`
	Page    PageConfig             `yaml:"page"`
	Store   StoreConfig            `yaml:"store"`
	Sounds  SoundsConfig           `yaml:"sounds"`
	API     APIConfig              `yaml:"api"`
	Watch   WatchConfig            `yaml:"watch"`
	Sinks   []SinkConfig           `yaml:"sinks"`
}

// PageConfig describes the game page.
type PageConfig struct {
	URL           string        `yaml:"url"`
	MovesSelector string        `yaml:"moves_selector"`
	StateSelector string        `yaml:"state_selector"` // defaults to moves_selector
	GameOverExpr  string        `yaml:"game_over_expr"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
	MoveTags      []string      `yaml:"move_tags"`
}

// StoreConfig locates the options database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SoundsConfig selects the playback backend.
type SoundsConfig struct {
	Dir     string   `yaml:"dir"`
	Player  string   `yaml:"player"` // exec | beep
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// APIConfig controls the HTTP options/status API.
type APIConfig struct {
	Addr string `yaml:"addr"` // empty disables the API
}

// WatchConfig controls polling of the options table.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// SinkConfig defines a notification output.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | file | webhook | sqlite
	Path string `yaml:"path"` // for file
	URL  string `yaml:"url"`  // for webhook
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Page.MovesSelector == "" {
		c.Page.MovesSelector = DefaultMovesSelector
	}
	if c.Page.StateSelector == "" {
		c.Page.StateSelector = c.Page.MovesSelector
	}
	if c.Page.GameOverExpr == "" {
		c.Page.GameOverExpr = DefaultGameOverExpr
	}
	if c.Page.WaitTimeout <= 0 {
		c.Page.WaitTimeout = 30 * time.Second
	}
	if c.Store.Path == "" {
		c.Store.Path = "dmitli.db"
	}
	if c.Sounds.Dir == "" {
		c.Sounds.Dir = "sounds"
	}
	if c.Sounds.Player == "" {
		c.Sounds.Player = "exec"
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 200 * time.Millisecond
	}
	if c.Watch.Debounce < 0 {
		c.Watch.Debounce = 0
	}
}

func (c *Config) validate() error {
	switch c.Sounds.Player {
	case "exec", "beep":
	default:
		return fmt.Errorf("config: unknown sounds.player %q", c.Sounds.Player)
	}
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: unknown browser.stealth %q", c.Browser.Stealth)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout", "sqlite":
		case "file":
			if s.Path == "" {
				return fmt.Errorf("config: sinks[%d]: file sink needs path", i)
			}
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook sink needs url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}
