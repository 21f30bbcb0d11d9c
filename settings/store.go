package settings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/hazyhaar/dmitli/dbopen"
	"github.com/hazyhaar/dmitli/watch"
)

// Schema for the options table. Values are JSON scalars; updated_at is unix
// nanoseconds and doubles as the change token for watch.
const Schema = `
CREATE TABLE IF NOT EXISTS options (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store persists Options in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore wraps db, which must already carry Schema.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Load returns the stored options, with Defaults for absent keys. A value
// that does not parse, or an interval that is not positive, keeps its
// default and is logged.
func (s *Store) Load(ctx context.Context) (Options, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM options`)
	if err != nil {
		return Options{}, fmt.Errorf("settings: load: %w", err)
	}
	defer rows.Close()

	var w Wire
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Options{}, fmt.Errorf("settings: scan: %w", err)
		}
		if err := decodeKey(&w, key, value); err != nil {
			s.logger.Warn("settings: ignoring stored value", "key", key, "value", value, "error", err)
		}
	}
	if err := rows.Err(); err != nil {
		return Options{}, fmt.Errorf("settings: load: %w", err)
	}
	return w.Apply(Defaults()), nil
}

// Save writes every field of o in one transaction.
func (s *Store) Save(ctx context.Context, o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	w := o.ToWire()
	values := map[string]any{
		KeyEnabled:      *w.Enabled,
		KeyMiscInterval: *w.MiscInterval,
		KeyFillInterval: *w.FillInterval,
		KeyLongTimeout:  *w.LongTimeout,
	}
	at := s.now().UnixNano()

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for key, v := range values {
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("settings: encode %s: %w", key, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO options (key, value, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				key, string(raw), at); err != nil {
				return fmt.Errorf("settings: save %s: %w", key, err)
			}
		}
		return nil
	})
}

// Set parses value for key, merges it into the stored options and saves.
func (s *Store) Set(ctx context.Context, key, value string) (Options, error) {
	cur, err := s.Load(ctx)
	if err != nil {
		return Options{}, err
	}
	var w Wire
	if err := decodeKey(&w, key, value); err != nil {
		return Options{}, err
	}
	next := w.Apply(cur)
	if err := s.Save(ctx, next); err != nil {
		return Options{}, err
	}
	return next, nil
}

func decodeKey(w *Wire, key, value string) error {
	switch key {
	case KeyEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("settings: %s: %w", key, err)
		}
		w.Enabled = &b
	case KeyMiscInterval, KeyFillInterval:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("settings: %s: %w", key, err)
		}
		if n <= 0 {
			return fmt.Errorf("settings: %s must be positive, got %d", key, n)
		}
		if key == KeyMiscInterval {
			w.MiscInterval = &n
		} else {
			w.FillInterval = &n
		}
	case KeyLongTimeout:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("settings: %s: %w", key, err)
		}
		if n <= 0 {
			return fmt.Errorf("settings: %s must be positive, got %d", key, n)
		}
		w.LongTimeout = &n
	default:
		return fmt.Errorf("settings: unknown key %q", key)
	}
	return nil
}

// Watch returns a watcher that fires when the options table changes, from
// this process or another one.
func Watch(db *sql.DB, interval, debounce time.Duration, logger *slog.Logger) *watch.Watcher {
	return watch.New(db, watch.Options{
		Interval: interval,
		Debounce: debounce,
		Detector: watch.MaxColumnDetector("options", "updated_at"),
		Logger:   logger,
	})
}
