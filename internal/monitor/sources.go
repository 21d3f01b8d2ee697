package monitor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Trigger origins, in decreasing order of immediacy.
const (
	originSignal = "signal"
	originPoll   = "poll"
	originWatch  = "watch"
)

// trigger is a change notification from one of the capture sources. Most
// carry no payload and just prompt a clipboard read; a watcher line that
// decodes to an image arrives as a self-contained snapshot and skips the
// read entirely.
type trigger struct {
	origin   string
	snapshot *snapshot
}

// snapshot is content captured by the source itself, already complete.
type snapshot struct {
	image []byte
}

// source feeds triggers into the capture loop until ctx is cancelled.
// The three built-in sources are deliberately redundant; the dedup gate
// makes overlapping notifications harmless.
type source interface {
	name() string
	run(ctx context.Context, out chan<- trigger) error
}

func send(ctx context.Context, out chan<- trigger, t trigger) {
	select {
	case out <- t:
	case <-ctx.Done():
	}
}

// signalSource forwards change events pushed by the clipboard backend.
type signalSource struct {
	ch <-chan struct{}
}

func (s *signalSource) name() string { return originSignal }

func (s *signalSource) run(ctx context.Context, out chan<- trigger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-s.ch:
			if !ok {
				return nil
			}
			send(ctx, out, trigger{origin: originSignal})
		}
	}
}

// pollSource ticks at a fixed interval as the safety net for backends
// that push no events at all. Missed ticks collapse; a slow capture
// cycle never queues a backlog of polls behind itself.
type pollSource struct {
	interval time.Duration
}

func (s *pollSource) name() string { return originPoll }

func (s *pollSource) run(ctx context.Context, out chan<- trigger) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			send(ctx, out, trigger{origin: originPoll})
		}
	}
}

// Watcher lines can carry whole base64 images; bound the scanner at
// something generous instead of bufio's 64KB default.
const maxWatchLine = 32 << 20

// watchSource runs an external watcher process and turns each stdout
// line into a trigger. The process is restarted with backoff whenever it
// exits, since compositor restarts routinely kill it.
type watchSource struct {
	command []string
	logger  *slog.Logger
}

func (s *watchSource) name() string { return originWatch }

func (s *watchSource) run(ctx context.Context, out chan<- trigger) error {
	backoff := time.Second
	for {
		err := s.runOnce(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("monitor: watcher exited, restarting",
			"command", s.command[0], "error", err, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (s *watchSource) runOnce(ctx context.Context, out chan<- trigger) error {
	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.WaitDelay = 5 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("monitor: watcher stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("monitor: start watcher: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxWatchLine)
	for scanner.Scan() {
		send(ctx, out, parseWatchLine(scanner.Bytes()))
	}
	scanErr := scanner.Err()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("monitor: watcher: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("monitor: watcher output: %w", scanErr)
	}
	return nil
}

// parseWatchLine classifies one watcher stdout line. A line that decodes
// from base64 into a recognizable image becomes a snapshot trigger;
// everything else, including plain marker lines and blank lines, is a
// bare change notification.
func parseWatchLine(line []byte) trigger {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return trigger{origin: originWatch}
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(line)))
	n, err := base64.StdEncoding.Decode(decoded, line)
	if err == nil && isImageData(decoded[:n]) {
		return trigger{origin: originWatch, snapshot: &snapshot{image: decoded[:n]}}
	}
	return trigger{origin: originWatch}
}

// isImageData sniffs the magic bytes of the formats the image pipeline
// can decode.
func isImageData(b []byte) bool {
	switch {
	case len(b) >= 8 && bytes.Equal(b[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return true
	case len(b) >= 3 && bytes.Equal(b[:3], []byte{0xFF, 0xD8, 0xFF}):
		return true
	case len(b) >= 6 && (bytes.Equal(b[:6], []byte("GIF87a")) || bytes.Equal(b[:6], []byte("GIF89a"))):
		return true
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return true
	}
	return false
}
