package domwatch

import (
	"github.com/hazyhaar/dmitli/domwatch/internal/browser"
)

// BrowserConfig controls the Chrome instance hosting the game page.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	ResourceBlocking []string `yaml:"resource_blocking"`
	Stealth          string   `yaml:"stealth"` // headless | headful
	XvfbDisplay      string   `yaml:"xvfb_display"`
}

func (c BrowserConfig) toInternal() browser.Config {
	level := browser.LevelHeadless
	if c.Stealth == "headful" {
		level = browser.LevelHeadful
	}
	return browser.Config{
		RemoteURL:        c.Remote,
		ResourceBlocking: c.ResourceBlocking,
		Stealth:          level,
		XvfbDisplay:      c.XvfbDisplay,
	}
}
