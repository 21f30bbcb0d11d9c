package notation

import (
	"reflect"
	"testing"
)

var moveTags = map[string]bool{"move": true, "san": true}

func TestClassify(t *testing.T) {
	cases := []struct {
		san  string
		want Class
	}{
		{"e4", Move},
		{"Nf3", Move},
		{"O-O", Move},
		{"exd5", Capture},
		{"Bxf7+", Check},
		{"Qh5+", Check},
		{"Qxf7#", Check},
		{"e8=Q", Move},
		{"", Move},
		{"??garbage", Move},
	}
	for _, c := range cases {
		if got := Classify(c.san); got != c.want {
			t.Errorf("Classify(%q): got %v, want %v", c.san, got, c.want)
		}
	}
}

func TestNormalizeAndBare(t *testing.T) {
	if got := Normalize("  Nf3?! "); got != "Nf3" {
		t.Errorf("Normalize: got %q", got)
	}
	if got := Normalize("0-0-0"); got != "O-O-O" {
		t.Errorf("Normalize castling: got %q", got)
	}
	if got := Bare("exd5+"); got != "exd5" {
		t.Errorf("Bare: got %q", got)
	}
	if got := Bare("Qxf7#"); got != "Qxf7" {
		t.Errorf("Bare: got %q", got)
	}
}

func TestExtract(t *testing.T) {
	cases := []struct {
		name     string
		fragment string
		want     []string
	}{
		{"single move", `<move>Nf3</move>`, []string{"Nf3"}},
		{"glyph skipped", `<move>Nf3<glyph title="Dubious">?!</glyph></move>`, []string{"Nf3"}},
		{"row with index", `<div><index>12</index><move>exd5+</move><move>Kf8</move></div>`, []string{"exd5+", "Kf8"}},
		{"san tag", `<san>O-O</san>`, []string{"O-O"}},
		{"clock only", `<div class="time">0:59</div>`, nil},
		{"empty move", `<move> </move>`, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Extract(c.fragment, moveTags)
			if err != nil {
				t.Fatalf("Extract(%q): %v", c.fragment, err)
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("Extract(%q): got %v, want %v", c.fragment, got, c.want)
			}
		})
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()

	ply, fen := tr.Push("e4")
	if ply != 1 || fen == "" {
		t.Fatalf("Push(e4): ply=%d fen=%q", ply, fen)
	}
	tr.Push("e5")
	tr.Push("Qh5")
	tr.Push("Nc6")
	tr.Push("Bc4")
	tr.Push("Nf6")
	ply, _ = tr.Push("Qxf7#")
	if ply != 7 {
		t.Fatalf("ply: got %d, want 7", ply)
	}
	if got := tr.Outcome(); got != "1-0" {
		t.Errorf("Outcome: got %q, want 1-0", got)
	}

	tr.Pop()
	if tr.Len() != 6 || tr.Outcome() != "*" {
		t.Errorf("after Pop: len=%d outcome=%q", tr.Len(), tr.Outcome())
	}
}

func TestTracker_DesyncKeepsCounting(t *testing.T) {
	tr := NewTracker()
	tr.Push("e4")
	ply, fen := tr.Push("Ke7??nonsense")
	if ply != 2 || fen != "" {
		t.Fatalf("illegal ply: got ply=%d fen=%q", ply, fen)
	}
	if tr.Synced() {
		t.Error("Synced: want false after illegal ply")
	}
	tr.Reset()
	if !tr.Synced() || tr.Len() != 0 {
		t.Error("Reset: want synced empty tracker")
	}
}
