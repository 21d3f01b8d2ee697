// CLAUDE:SUMMARY Clipboard abstraction: format probing, text/image reads and writes, optional change signal.
// Package clipboard abstracts the system clipboard behind a small interface
// so the capture pipeline can run against fakes in tests. The only real
// backend shells out to wl-clipboard; other desktops can plug in later
// without touching the pipeline.
package clipboard

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means no clipboard backend could be set up.
	ErrUnavailable = errors.New("clipboard: no backend available")
	// ErrEmpty means the clipboard holds nothing readable for the request.
	ErrEmpty = errors.New("clipboard: empty")
)

// Formats reports what the current clipboard owner offers.
type Formats struct {
	HasText  bool
	HasImage bool
}

// Clipboard reads and writes the system selection.
type Clipboard interface {
	// Formats probes the offered MIME types without transferring content.
	Formats(ctx context.Context) (Formats, error)
	// ReadText returns the clipboard text, or ErrEmpty.
	ReadText(ctx context.Context) (string, error)
	// ReadImage returns the clipboard image bytes, or ErrEmpty.
	ReadImage(ctx context.Context) ([]byte, error)
	// WriteText makes text the clipboard content.
	WriteText(ctx context.Context, text string) error
	// WriteImage makes the PNG data the clipboard content.
	WriteImage(ctx context.Context, data []byte) error
	// Changed returns a channel that fires on ownership changes, or nil
	// when the backend cannot signal them.
	Changed() <-chan struct{}
	Close() error
}
