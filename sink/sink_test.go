package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/dmitli/dbopen"
	"github.com/hazyhaar/dmitli/emitter"
)

func note(kind emitter.Kind, san string) emitter.Notification {
	return emitter.Notification{ID: "ntf_1", Kind: kind, Notation: san, Ply: 1, At: time.Unix(0, 0).UTC()}
}

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	ctx := context.Background()
	if err := s.Send(ctx, note(emitter.KindMove, "e4")); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(ctx, note(emitter.KindCapture, "exd5")); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d: %q", len(lines), buf.String())
	}
	var env struct {
		Type string               `json:"type"`
		Data emitter.Notification `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "capture" || env.Data.Notation != "exd5" {
		t.Fatalf("decoded %+v", env)
	}
}

func TestOpenFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	for i := 0; i < 2; i++ {
		s, err := OpenFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Send(context.Background(), note(emitter.KindStart, "")); err != nil {
			t.Fatal(err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Fatalf("lines = %d", n)
	}
}

type failing struct{ closed bool }

func (f *failing) Send(context.Context, emitter.Notification) error { return errors.New("boom") }
func (f *failing) Close() error { f.closed = true; return nil }

func TestRouter_FanOut(t *testing.T) {
	var got []string
	cb := NewCallback(func(_ context.Context, n emitter.Notification) error {
		got = append(got, n.Notation)
		return nil
	})
	bad := &failing{}
	r := NewRouter(nil, bad, cb)

	err := r.Send(context.Background(), note(emitter.KindMove, "Nf3"))
	if err == nil {
		t.Fatal("expected first error")
	}
	if len(got) != 1 || got[0] != "Nf3" {
		t.Fatalf("callback saw %v; a failing sink must not block the others", got)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !bad.closed {
		t.Fatal("router did not close sinks")
	}
}

func TestCallback_Nil(t *testing.T) {
	if err := NewCallback(nil).Send(context.Background(), note(emitter.KindMove, "e4")); err != nil {
		t.Fatal(err)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	var lastBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		lastBody.Store(string(b))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := wh.Send(context.Background(), note(emitter.KindCheck, "Qh5+")); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
	if !strings.Contains(lastBody.Load().(string), `"type":"check"`) {
		t.Fatalf("body = %s", lastBody.Load())
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	if err := wh.Send(context.Background(), note(emitter.KindMove, "e4")); err == nil {
		t.Fatal("expected error")
	}
}

func TestAsync_ForwardsAndDrains(t *testing.T) {
	var n atomic.Int32
	a := NewAsync(NewCallback(func(context.Context, emitter.Notification) error {
		n.Add(1)
		return nil
	}), 8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		a.Send(ctx, note(emitter.KindMove, "e4"))
	}
	cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if n.Load() != 5 {
		t.Fatalf("forwarded %d, want 5", n.Load())
	}
}

func TestAsync_DropsWhenFull(t *testing.T) {
	a := NewAsync(NewCallback(nil), 1, nil)
	ctx := context.Background()
	a.Send(ctx, note(emitter.KindMove, "e4"))
	a.Send(ctx, note(emitter.KindMove, "e5"))
	if a.Dropped() != 1 {
		t.Fatalf("dropped = %d", a.Dropped())
	}
}

func TestSQLite_RecordAndRecent(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(EventsSchema))
	s := NewSQLite(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, san := range []string{"e4", "e5", "Nf3"} {
		n := emitter.Notification{ID: fmt.Sprintf("ntf_%d", i), Kind: emitter.KindMove, Notation: san, Ply: i + 1, At: base.Add(time.Duration(i) * time.Second)}
		if err := s.Send(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	// Duplicate ids are ignored.
	if err := s.Send(ctx, emitter.Notification{ID: "ntf_0", Kind: emitter.KindMove, At: base}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Notation != "Nf3" || got[1].Ply != 2 {
		t.Fatalf("recent = %+v", got)
	}

	removed, err := s.Cleanup(ctx, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d", removed)
	}
}
