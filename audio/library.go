// Package audio resolves sound ids to files and plays them one at a time.
package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hazyhaar/dmitli/notation"
)

// ErrNoSounds is returned when the sounds directory holds no playable file.
var ErrNoSounds = errors.New("audio: no sound files")

// Extensions recognised as playable.
var Extensions = map[string]bool{".ogg": true, ".mp3": true, ".wav": true, ".flac": true}

// Category ids used as fallbacks and by the tone player.
const (
	CategoryMove    = "move"
	CategoryCapture = "capture"
	CategoryCheck   = "check"
)

// Sound is one resolved playback request.
type Sound struct {
	ID       string // id as pushed
	Key      string // id the file was found under
	Path     string // empty for tone players
	Category string
}

// Resolver maps a pushed id to something a Player can play.
type Resolver interface {
	Resolve(id string) (Sound, bool)
}

// Library indexes <dir>/<id>/<file> and picks a random file per id.
type Library struct {
	dir   string
	files map[string][]string

	mu  sync.Mutex
	rnd *rand.Rand
}

// LoadLibrary scans dir. Each immediate subdirectory is one id.
func LoadLibrary(dir string, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("audio: read sounds dir: %w", err)
	}

	files := make(map[string][]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		root := filepath.Join(dir, id)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !Extensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			files[id] = append(files[id], path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("audio: scan %s: %w", id, err)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSounds, dir)
	}
	for id := range files {
		sort.Strings(files[id])
	}

	logger.Info("audio: library loaded", "dir", dir, "ids", len(files))
	return &Library{
		dir:   dir,
		files: files,
		rnd:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

// Seed makes file picks reproducible.
func (l *Library) Seed(a, b uint64) {
	l.mu.Lock()
	l.rnd = rand.New(rand.NewPCG(a, b))
	l.mu.Unlock()
}

// IDs lists the indexed ids, sorted.
func (l *Library) IDs() []string {
	ids := make([]string, 0, len(l.files))
	for id := range l.files {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve picks a file for id. Notation ids fall back to their normalised
// form, then to the capture or move category.
func (l *Library) Resolve(id string) (Sound, bool) {
	for _, key := range candidates(id) {
		paths := l.files[key]
		if len(paths) == 0 {
			continue
		}
		l.mu.Lock()
		p := paths[l.rnd.IntN(len(paths))]
		l.mu.Unlock()
		return Sound{ID: id, Key: key, Path: p, Category: Categorize(id)}, true
	}
	return Sound{}, false
}

func candidates(id string) []string {
	keys := []string{id}
	add := func(k string) {
		for _, have := range keys {
			if have == k {
				return
			}
		}
		keys = append(keys, k)
	}
	if !looksLikeNotation(id) {
		return keys
	}
	norm := notation.Normalize(id)
	add(norm)
	add(notation.Bare(norm))
	add(Categorize(id))
	return keys
}

// Categorize maps a notation id to move, capture or check. Other ids
// (misc, fill, signoff, ...) are their own category.
func Categorize(id string) string {
	if !looksLikeNotation(id) {
		return id
	}
	switch notation.Classify(id) {
	case notation.Check:
		return CategoryCheck
	case notation.Capture:
		return CategoryCapture
	default:
		return CategoryMove
	}
}

// Control ids are lower-case words; SAN starts with a piece letter, a file
// or castling.
func looksLikeNotation(id string) bool {
	if id == "" {
		return false
	}
	switch c := id[0]; {
	case c >= 'a' && c <= 'h':
		return len(id) >= 2 && (id[1] >= '1' && id[1] <= '8' || id[1] == 'x')
	case strings.ContainsRune("KQRBN", rune(c)):
		return true
	case c == 'O' || c == '0':
		return true
	}
	return false
}

// Tones resolves every id to a tone-only Sound; used with BeepPlayer when no
// sound files are installed.
type Tones struct{}

// Resolve implements Resolver.
func (Tones) Resolve(id string) (Sound, bool) {
	if id == "" {
		return Sound{}, false
	}
	return Sound{ID: id, Key: id, Category: Categorize(id)}, true
}
