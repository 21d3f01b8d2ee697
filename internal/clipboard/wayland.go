// CLAUDE:SUMMARY wl-clipboard backend: wl-paste probes and reads, wl-copy writes.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Wayland talks to the compositor's clipboard through the wl-clipboard
// tools. Every call spawns a short-lived wl-paste or wl-copy process; the
// compositor is the source of truth, nothing is cached here.
type Wayland struct{}

// NewWayland returns a Wayland backend, or ErrUnavailable when the
// wl-clipboard tools are not installed.
func NewWayland() (*Wayland, error) {
	for _, bin := range []string{"wl-paste", "wl-copy"} {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, fmt.Errorf("%w: %s not in PATH", ErrUnavailable, bin)
		}
	}
	return &Wayland{}, nil
}

func (w *Wayland) Formats(ctx context.Context) (Formats, error) {
	out, err := w.listTypes(ctx)
	if err != nil {
		return Formats{}, err
	}
	return parseFormats(out), nil
}

func (w *Wayland) ReadText(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "wl-paste", "--no-newline", "--type", "text").Output()
	if err != nil {
		if isEmptyClipboard(err) {
			return "", ErrEmpty
		}
		return "", fmt.Errorf("clipboard: read text: %w", err)
	}
	return string(out), nil
}

func (w *Wayland) ReadImage(ctx context.Context) ([]byte, error) {
	types, err := w.listTypes(ctx)
	if err != nil {
		return nil, err
	}
	mime := pickImageType(types)
	if mime == "" {
		return nil, ErrEmpty
	}
	out, err := exec.CommandContext(ctx, "wl-paste", "--type", mime).Output()
	if err != nil {
		if isEmptyClipboard(err) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("clipboard: read image: %w", err)
	}
	return out, nil
}

func (w *Wayland) WriteText(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, "wl-copy")
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("clipboard: write text: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

func (w *Wayland) WriteImage(ctx context.Context, data []byte) error {
	cmd := exec.CommandContext(ctx, "wl-copy", "--type", "image/png")
	cmd.Stdin = bytes.NewReader(data)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("clipboard: write image: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

// Changed returns nil; wl-clipboard offers no ownership signal without a
// persistent watcher process, which the capture pipeline runs itself.
func (w *Wayland) Changed() <-chan struct{} {
	return nil
}

func (w *Wayland) Close() error {
	return nil
}

func (w *Wayland) listTypes(ctx context.Context) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "wl-paste", "--list-types").Output()
	if err != nil {
		if isEmptyClipboard(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("clipboard: list types: %w", err)
	}
	return out, nil
}

func parseFormats(types []byte) Formats {
	var f Formats
	for _, line := range strings.Split(string(types), "\n") {
		mime := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(mime, "image/"):
			f.HasImage = true
		case strings.HasPrefix(mime, "text/"),
			mime == "UTF8_STRING", mime == "STRING", mime == "TEXT", mime == "COMPOUND_TEXT":
			f.HasText = true
		}
	}
	return f
}

// pickImageType prefers PNG, falling back to whatever image type the owner
// offers first.
func pickImageType(types []byte) string {
	first := ""
	for _, line := range strings.Split(string(types), "\n") {
		mime := strings.TrimSpace(line)
		if !strings.HasPrefix(mime, "image/") {
			continue
		}
		if mime == "image/png" {
			return mime
		}
		if first == "" {
			first = mime
		}
	}
	return first
}

// isEmptyClipboard recognizes wl-paste's exit status for "nothing copied"
// or "no suitable type", both of which mean there is nothing to read.
func isEmptyClipboard(err error) bool {
	var exit *exec.ExitError
	return errors.As(err, &exit) && exit.ExitCode() == 1
}
