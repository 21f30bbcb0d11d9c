package notation

import (
	"github.com/corentings/chess/v2"
)

// Tracker replays plies on a board so notifications can carry the ply number
// and resulting position. A ply the board rejects desyncs the tracker; from
// then on Push still counts plies but reports no FEN until Reset.
type Tracker struct {
	game   *chess.Game
	plies  []string
	synced bool
}

// NewTracker starts from the initial position.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// Reset returns to the initial position.
func (t *Tracker) Reset() {
	t.game = chess.NewGame()
	t.plies = t.plies[:0]
	t.synced = true
}

// Push applies a SAN ply and returns its 1-based ply number and the FEN after
// it ("" when desynced).
func (t *Tracker) Push(san string) (ply int, fen string) {
	t.plies = append(t.plies, san)
	if t.synced {
		if err := t.game.PushNotationMove(Bare(san), chess.AlgebraicNotation{}, nil); err != nil {
			t.synced = false
		}
	}
	if !t.synced {
		return len(t.plies), ""
	}
	return len(t.plies), t.game.Position().String()
}

// Pop undoes the last ply (takeback) by replaying the remaining ones.
func (t *Tracker) Pop() {
	if len(t.plies) == 0 {
		return
	}
	rest := append([]string(nil), t.plies[:len(t.plies)-1]...)
	t.Reset()
	for _, p := range rest {
		t.Push(p)
	}
}

// Len is the number of plies seen.
func (t *Tracker) Len() int { return len(t.plies) }

// Synced reports whether every ply so far was legal on the tracked board.
func (t *Tracker) Synced() bool { return t.synced }

// Outcome reports the board's own verdict ("1-0", "0-1", "1/2-1/2" or "*").
func (t *Tracker) Outcome() string {
	if !t.synced {
		return string(chess.NoOutcome)
	}
	return string(t.game.Outcome())
}
