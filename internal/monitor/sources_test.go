package monitor

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"os/exec"
	"testing"
	"time"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func TestParseWatchLineImageSnapshot(t *testing.T) {
	img := append(append([]byte{}, pngMagic...), bytes.Repeat([]byte{0xAB}, 32)...)
	line := base64.StdEncoding.EncodeToString(img)

	tr := parseWatchLine([]byte(line))
	if tr.origin != originWatch {
		t.Fatalf("expected watch origin, got %q", tr.origin)
	}
	if tr.snapshot == nil {
		t.Fatal("image line did not produce a snapshot")
	}
	if !bytes.Equal(tr.snapshot.image, img) {
		t.Fatal("snapshot bytes do not match the encoded image")
	}
}

func TestParseWatchLineBareTriggers(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"CLIPBOARD_CHANGED",
		"not base64 at all!!!",
		base64.StdEncoding.EncodeToString([]byte("just some text")),
	}
	for _, line := range lines {
		tr := parseWatchLine([]byte(line))
		if tr.snapshot != nil {
			t.Fatalf("line %q produced a snapshot", line)
		}
		if tr.origin != originWatch {
			t.Fatalf("line %q: expected watch origin, got %q", line, tr.origin)
		}
	}
}

func TestIsImageData(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want bool
	}{
		{"png", append(append([]byte{}, pngMagic...), 0x00), true},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, true},
		{"gif", []byte("GIF89a....."), true},
		{"webp", append([]byte("RIFF"), append([]byte{1, 2, 3, 4}, []byte("WEBPVP8 ")...)...), true},
		{"text", []byte("hello world, quite long"), false},
		{"short", []byte{0x89}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		if got := isImageData(tc.data); got != tc.want {
			t.Errorf("%s: isImageData = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWatchSourceEmitsTriggers(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan trigger, 4)
	src := &watchSource{
		command: []string{"sh", "-c", "echo CLIPBOARD_CHANGED; sleep 60"},
		logger:  slog.New(slog.DiscardHandler),
	}
	go src.run(ctx, out)

	select {
	case tr := <-out:
		if tr.origin != originWatch {
			t.Fatalf("expected watch origin, got %q", tr.origin)
		}
		if tr.snapshot != nil {
			t.Fatal("marker line produced a snapshot")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no trigger from watcher process")
	}
}

func TestPollSourceTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan trigger, 8)
	src := &pollSource{interval: 10 * time.Millisecond}
	go src.run(ctx, out)

	select {
	case tr := <-out:
		if tr.origin != originPoll {
			t.Fatalf("expected poll origin, got %q", tr.origin)
		}
	case <-time.After(time.Second):
		t.Fatal("no tick from poll source")
	}
}

func TestSignalSourceForwards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan struct{}, 1)
	out := make(chan trigger, 1)
	src := &signalSource{ch: ch}
	go src.run(ctx, out)

	ch <- struct{}{}
	select {
	case tr := <-out:
		if tr.origin != originSignal {
			t.Fatalf("expected signal origin, got %q", tr.origin)
		}
	case <-time.After(time.Second):
		t.Fatal("signal not forwarded")
	}
}
