package emitter

import "context"

// Host is what the emitters need from the page besides mutations.
type Host interface {
	// IsGameOver is the host page's own verdict.
	IsGameOver(ctx context.Context) (bool, error)
	// Text returns the rendered text of the element matching selector.
	Text(ctx context.Context, selector string) (string, error)
}
