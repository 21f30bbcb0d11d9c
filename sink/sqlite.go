package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/dmitli/emitter"
)

// EventsSchema holds the notification history.
const EventsSchema = `
CREATE TABLE IF NOT EXISTS game_events (
	event_id   TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	notation   TEXT,
	state      TEXT,
	ply        INTEGER,
	fen        TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_game_events_created ON game_events(created_at);
`

// SQLite records notifications in the game_events table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps db, which must already carry EventsSchema.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Send(ctx context.Context, n emitter.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO game_events (event_id, kind, notation, state, ply, fen, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		n.ID, string(n.Kind), n.Notation, n.State, n.Ply, n.FEN, n.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("sink: record %s: %w", n.Kind, err)
	}
	return nil
}

// Recent returns up to limit notifications, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]emitter.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, kind, notation, state, ply, fen, created_at
		FROM game_events ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sink: recent: %w", err)
	}
	defer rows.Close()

	var out []emitter.Notification
	for rows.Next() {
		var n emitter.Notification
		var kind string
		var at int64
		if err := rows.Scan(&n.ID, &kind, &n.Notation, &n.State, &n.Ply, &n.FEN, &at); err != nil {
			return nil, fmt.Errorf("sink: scan: %w", err)
		}
		n.Kind = emitter.Kind(kind)
		n.At = time.UnixMilli(at)
		out = append(out, n)
	}
	return out, rows.Err()
}

// Cleanup deletes notifications older than retention.
func (s *SQLite) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM game_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sink: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close does not close the shared database.
func (s *SQLite) Close() error { return nil }
