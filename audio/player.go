package audio

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/gen2brain/beeep"
)

// Player plays one sound and returns when it has finished or ctx is done.
type Player interface {
	Play(ctx context.Context, s Sound) error
}

// ExecPlayer runs an external command with the file path as last argument.
type ExecPlayer struct {
	Command string
	Args    []string
}

// DefaultCommand picks a command line player for the host OS.
func DefaultCommand() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "afplay", nil
	case "windows":
		return "ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
	}
	if path, err := exec.LookPath("paplay"); err == nil {
		return path, nil
	}
	return "ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
}

// NewExecPlayer uses command, or DefaultCommand when empty.
func NewExecPlayer(command string, args ...string) *ExecPlayer {
	if command == "" {
		command, args = DefaultCommand()
	}
	return &ExecPlayer{Command: command, Args: args}
}

// Play implements Player. Cancelling ctx kills the process.
func (p *ExecPlayer) Play(ctx context.Context, s Sound) error {
	if s.Path == "" {
		return fmt.Errorf("audio: %s: no file", s.ID)
	}
	args := append(append([]string(nil), p.Args...), s.Path)
	cmd := exec.CommandContext(ctx, p.Command, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio: %s %s: %w", p.Command, s.Key, err)
	}
	return nil
}

// Tone is one beep.
type Tone struct {
	Freq     float64
	Duration time.Duration
}

// DefaultTones maps categories to short beep sequences.
var DefaultTones = map[string][]Tone{
	CategoryMove:    {{Freq: 600, Duration: 80 * time.Millisecond}},
	CategoryCapture: {{Freq: 500, Duration: 80 * time.Millisecond}, {Freq: 700, Duration: 80 * time.Millisecond}},
	CategoryCheck:   {{Freq: 900, Duration: 200 * time.Millisecond}},
	"start":         {{Freq: 600, Duration: 150 * time.Millisecond}, {Freq: 800, Duration: 150 * time.Millisecond}},
	"signoff":       {{Freq: 800, Duration: 150 * time.Millisecond}, {Freq: 600, Duration: 150 * time.Millisecond}},
	"checkmate":     {{Freq: 400, Duration: 400 * time.Millisecond}},
	"resign":        {{Freq: 400, Duration: 300 * time.Millisecond}},
}

// BeepPlayer plays tones through the system speaker. Categories without a
// tone are silent.
type BeepPlayer struct {
	Tones map[string][]Tone
	Gap   time.Duration
	beep  func(freq float64, ms int) error
}

// NewBeepPlayer uses DefaultTones.
func NewBeepPlayer() *BeepPlayer {
	return &BeepPlayer{Tones: DefaultTones, Gap: 50 * time.Millisecond, beep: beeep.Beep}
}

// Play implements Player.
func (p *BeepPlayer) Play(ctx context.Context, s Sound) error {
	seq := p.Tones[s.Category]
	for i, t := range seq {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.beep(t.Freq, int(t.Duration.Milliseconds())); err != nil {
			return fmt.Errorf("audio: beep %s: %w", s.ID, err)
		}
		if i < len(seq)-1 && p.Gap > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Gap):
			}
		}
	}
	return nil
}
