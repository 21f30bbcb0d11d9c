// Package settings holds the playback options snapshot, its SQLite store,
// and the "optionsSaved" signal raised when the stored options change.
package settings

import (
	"fmt"
	"time"
)

// Option keys as stored and as exchanged over the API.
const (
	KeyEnabled      = "enabled"
	KeyMiscInterval = "miscInterval" // milliseconds
	KeyFillInterval = "fillInterval" // milliseconds
	KeyLongTimeout  = "longTimeout"  // seconds
)

// Options is one snapshot of the playback settings.
type Options struct {
	Enabled      bool
	MiscInterval time.Duration
	FillInterval time.Duration
	// LongTimeout bounds the random delay, in whole seconds, before the
	// one-shot "long" sound.
	LongTimeout int
}

// Defaults are used for every key the store does not hold.
func Defaults() Options {
	return Options{
		Enabled:      true,
		MiscInterval: 20 * time.Second,
		FillInterval: 7 * time.Second,
		LongTimeout:  60,
	}
}

// Validate rejects values the timers cannot run with.
func (o Options) Validate() error {
	if o.MiscInterval <= 0 {
		return fmt.Errorf("settings: %s must be positive", KeyMiscInterval)
	}
	if o.FillInterval <= 0 {
		return fmt.Errorf("settings: %s must be positive", KeyFillInterval)
	}
	if o.LongTimeout <= 0 {
		return fmt.Errorf("settings: %s must be positive", KeyLongTimeout)
	}
	return nil
}

// Wire is the JSON shape of Options, with the historical key names and units.
type Wire struct {
	Enabled      *bool  `json:"enabled,omitempty"`
	MiscInterval *int64 `json:"miscInterval,omitempty"`
	FillInterval *int64 `json:"fillInterval,omitempty"`
	LongTimeout  *int   `json:"longTimeout,omitempty"`
}

// ToWire converts o to its JSON shape with every field set.
func (o Options) ToWire() Wire {
	misc := o.MiscInterval.Milliseconds()
	fill := o.FillInterval.Milliseconds()
	long := o.LongTimeout
	enabled := o.Enabled
	return Wire{Enabled: &enabled, MiscInterval: &misc, FillInterval: &fill, LongTimeout: &long}
}

// Apply overlays the fields present in w onto o.
func (w Wire) Apply(o Options) Options {
	if w.Enabled != nil {
		o.Enabled = *w.Enabled
	}
	if w.MiscInterval != nil {
		o.MiscInterval = time.Duration(*w.MiscInterval) * time.Millisecond
	}
	if w.FillInterval != nil {
		o.FillInterval = time.Duration(*w.FillInterval) * time.Millisecond
	}
	if w.LongTimeout != nil {
		o.LongTimeout = *w.LongTimeout
	}
	return o
}

// OptionsSaved is the message the controller restarts on.
const OptionsSaved = "optionsSaved"

// Message is a cross-context signal.
type Message struct {
	Message string `json:"message"`
}
