package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeSounds(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		p := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoadLibrary_NoSounds(t *testing.T) {
	dir := writeSounds(t, "misc/readme.txt", "loose.ogg")
	_, err := LoadLibrary(dir, nil)
	if !errors.Is(err, ErrNoSounds) {
		t.Fatalf("expected ErrNoSounds, got %v", err)
	}
}

func TestLoadLibrary_MissingDir(t *testing.T) {
	if _, err := LoadLibrary(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestLibraryResolve(t *testing.T) {
	dir := writeSounds(t,
		"Nf3/a.ogg",
		"exd5/a.mp3",
		"capture/c.wav",
		"move/m.ogg",
		"check/k.ogg",
		"misc/1.ogg", "misc/2.OGG",
	)
	lib, err := LoadLibrary(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	lib.Seed(1, 2)

	tests := []struct {
		id      string
		key     string
		cat     string
		missing bool
	}{
		{id: "Nf3", key: "Nf3", cat: "move"},
		{id: "exd5+", key: "exd5", cat: "check"},
		{id: "Bxc6", key: "capture", cat: "capture"},
		{id: "O-O", key: "move", cat: "move"},
		{id: "e4!?", key: "move", cat: "move"},
		{id: "check", key: "check", cat: "check"},
		{id: "misc", key: "misc", cat: "misc"},
		{id: "signoff", missing: true},
		{id: "", missing: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			s, ok := lib.Resolve(tt.id)
			if tt.missing {
				if ok {
					t.Fatalf("expected miss, got %+v", s)
				}
				return
			}
			if !ok {
				t.Fatal("expected hit")
			}
			if s.Key != tt.key || s.Category != tt.cat {
				t.Fatalf("got key=%q cat=%q, want key=%q cat=%q", s.Key, s.Category, tt.key, tt.cat)
			}
			if filepath.Base(filepath.Dir(s.Path)) != tt.key {
				t.Fatalf("path %s not under %s", s.Path, tt.key)
			}
		})
	}

	if got := lib.IDs(); len(got) != 6 {
		t.Fatalf("IDs = %v", got)
	}
}

func TestCategorize(t *testing.T) {
	for id, want := range map[string]string{
		"e4": "move", "Qxf7#": "check", "dxe5": "capture", "O-O-O": "move",
		"misc": "misc", "draw": "draw", "black resigned": "black resigned", "check": "check",
	} {
		if got := Categorize(id); got != want {
			t.Errorf("Categorize(%q) = %q, want %q", id, got, want)
		}
	}
}

// recordingPlayer records ids; when block is set each Play waits for ctx.
type recordingPlayer struct {
	mu      sync.Mutex
	played  []string
	block   bool
	started chan string
}

func newRecordingPlayer(block bool) *recordingPlayer {
	return &recordingPlayer{block: block, started: make(chan string, 16)}
}

func (p *recordingPlayer) Play(ctx context.Context, s Sound) error {
	p.mu.Lock()
	p.played = append(p.played, s.ID)
	p.mu.Unlock()
	p.started <- s.ID
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *recordingPlayer) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func waitStarted(t *testing.T, p *recordingPlayer, want string) {
	t.Helper()
	select {
	case got := <-p.started:
		if got != want {
			t.Fatalf("started %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func runQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestQueue_PlaysInOrder(t *testing.T) {
	p := newRecordingPlayer(false)
	q := NewQueue(Tones{}, p, nil)
	runQueue(t, q)

	for _, id := range []string{"start", "e4", "Nf3"} {
		q.Push(id)
	}
	for _, id := range []string{"start", "e4", "Nf3"} {
		waitStarted(t, p, id)
	}
	got := p.ids()
	if len(got) != 3 || got[0] != "start" || got[2] != "Nf3" {
		t.Fatalf("played %v", got)
	}
}

func TestQueue_SkipsUnresolved(t *testing.T) {
	p := newRecordingPlayer(false)
	q := NewQueue(Tones{}, p, nil)
	runQueue(t, q)

	q.Push("")
	q.Push("misc")
	waitStarted(t, p, "misc")
	if s := q.Stats(); s.Skipped != 1 {
		t.Fatalf("skipped = %d", s.Skipped)
	}
}

func TestQueue_ClearImmediate(t *testing.T) {
	p := newRecordingPlayer(true)
	q := NewQueue(Tones{}, p, nil)

	var cleared int
	unsub := q.OnCleared(func() { cleared++ })

	runQueue(t, q)
	q.Push("long")
	waitStarted(t, p, "long")
	q.Push("misc")
	q.Push("fill")

	q.Clear(true)
	if q.Len() != 0 {
		t.Fatalf("pending after clear: %v", q.Pending())
	}
	if cleared != 1 {
		t.Fatalf("cleared listeners ran %d times", cleared)
	}

	// The cut sound returns; the next push plays.
	q.Push("checkmate")
	waitStarted(t, p, "checkmate")

	unsub()
	unsub()
	q.Clear(false)
	if cleared != 1 {
		t.Fatalf("listener ran after unsubscribe")
	}
}

func TestQueue_ClearNotImmediateKeepsCurrent(t *testing.T) {
	p := newRecordingPlayer(true)
	q := NewQueue(Tones{}, p, nil)
	runQueue(t, q)

	q.Push("long")
	waitStarted(t, p, "long")
	q.Push("misc")
	q.Clear(false)

	if cur := q.Stats().Current; cur != "long" {
		t.Fatalf("current = %q, want long still playing", cur)
	}
}

// gatedResolver holds Resolve for one id until release is closed.
type gatedResolver struct {
	Tones
	id      string
	entered chan struct{}
	release chan struct{}
}

func (g gatedResolver) Resolve(id string) (Sound, bool) {
	if id == g.id {
		close(g.entered)
		<-g.release
	}
	return g.Tones.Resolve(id)
}

func TestQueue_ClearImmediateCutsPoppedID(t *testing.T) {
	r := gatedResolver{id: "misc", entered: make(chan struct{}), release: make(chan struct{})}
	p := newRecordingPlayer(false)
	q := NewQueue(r, p, nil)
	runQueue(t, q)

	q.Push("misc")
	<-r.entered
	if cur := q.Stats().Current; cur != "misc" {
		t.Fatalf("current = %q, want misc", cur)
	}
	q.Clear(true)
	close(r.release)

	q.Push("checkmate")
	waitStarted(t, p, "checkmate")
	if got := p.ids(); len(got) != 1 || got[0] != "checkmate" {
		t.Fatalf("played %v, want only checkmate", got)
	}
	if s := q.Stats(); s.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", s.Skipped)
	}
}

func TestBeepPlayer(t *testing.T) {
	var freqs []float64
	p := NewBeepPlayer()
	p.Gap = 0
	p.beep = func(freq float64, ms int) error {
		freqs = append(freqs, freq)
		return nil
	}

	ctx := context.Background()
	if err := p.Play(ctx, Sound{ID: "Bxc6", Category: Categorize("Bxc6")}); err != nil {
		t.Fatal(err)
	}
	if len(freqs) != 2 {
		t.Fatalf("capture tones = %v", freqs)
	}

	freqs = nil
	if err := p.Play(ctx, Sound{ID: "fill", Category: "fill"}); err != nil {
		t.Fatal(err)
	}
	if len(freqs) != 0 {
		t.Fatalf("fill should be silent, got %v", freqs)
	}

	p.beep = func(float64, int) error { return errors.New("no speaker") }
	if err := p.Play(ctx, Sound{ID: "e4", Category: "move"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestExecPlayer_RequiresPath(t *testing.T) {
	p := NewExecPlayer("true")
	if err := p.Play(context.Background(), Sound{ID: "misc"}); err == nil {
		t.Fatal("expected error for missing path")
	}
}
