// Package notation classifies SAN plies rendered in a move list and extracts
// them from inserted DOM fragments.
package notation

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Class is the sound-relevant category of a ply.
type Class int

const (
	Move Class = iota
	Capture
	Check
)

func (c Class) String() string {
	switch c {
	case Capture:
		return "capture"
	case Check:
		return "check"
	default:
		return "move"
	}
}

// Classify applies the marker convention: a check marker ('+' or '#') wins,
// then the capture marker 'x', else a plain move. Anything unrecognised is a
// plain move; Classify never fails.
func Classify(san string) Class {
	switch {
	case strings.ContainsAny(san, "+#"):
		return Check
	case strings.ContainsRune(san, 'x'):
		return Capture
	default:
		return Move
	}
}

// Normalize strips annotation glyphs and surrounding space, keeping the
// markers Classify looks at.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "!?")
	// Lichess renders castling with zeros in some locales.
	s = strings.ReplaceAll(s, "0-0", "O-O")
	return strings.TrimSpace(s)
}

// Bare drops check/mate markers and annotations: "exd5+" → "exd5".
func Bare(s string) string {
	return strings.TrimRight(Normalize(s), "+#")
}

// Extract parses an inserted HTML fragment and returns the text of every
// element whose tag is in tags, in document order. A fragment that is itself
// a move element yields one entry. Evaluation glyphs nested inside a move
// element (e.g. <glyph>?!</glyph>) are skipped.
func Extract(fragment string, tags map[string]bool) ([]string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return nil, fmt.Errorf("notation: parse fragment: %w", err)
	}

	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && tags[strings.ToLower(n.Data)] {
			if s := Normalize(moveText(n)); s != "" {
				out = append(out, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out, nil
}

// moveText concatenates text below n, skipping glyph/eval decorations.
func moveText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch strings.ToLower(n.Data) {
			case "glyph", "eval", "index":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
