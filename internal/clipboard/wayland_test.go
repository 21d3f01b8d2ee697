package clipboard

import (
	"errors"
	"os/exec"
	"testing"
)

func TestParseFormats(t *testing.T) {
	cases := []struct {
		name  string
		types string
		want  Formats
	}{
		{"text only", "text/plain;charset=utf-8\ntext/plain\nUTF8_STRING\nSTRING\nTEXT\n", Formats{HasText: true}},
		{"image only", "image/png\n", Formats{HasImage: true}},
		{"both", "text/html\nimage/png\nimage/jpeg\n", Formats{HasText: true, HasImage: true}},
		{"legacy x11 atoms", "UTF8_STRING\n", Formats{HasText: true}},
		{"empty", "", Formats{}},
		{"unrelated types", "application/x-qt-windows-mime\n", Formats{}},
	}
	for _, c := range cases {
		if got := parseFormats([]byte(c.types)); got != c.want {
			t.Errorf("%s: got %+v, want %+v", c.name, got, c.want)
		}
	}
}

func TestPickImageType(t *testing.T) {
	cases := []struct {
		name  string
		types string
		want  string
	}{
		{"prefers png", "image/jpeg\nimage/png\nimage/webp\n", "image/png"},
		{"falls back to first", "image/webp\nimage/jpeg\n", "image/webp"},
		{"ignores non-images", "text/plain\napplication/pdf\n", ""},
		{"empty", "", ""},
	}
	for _, c := range cases {
		if got := pickImageType([]byte(c.types)); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestIsEmptyClipboard(t *testing.T) {
	if isEmptyClipboard(errors.New("plain error")) {
		t.Error("plain errors are not empty-clipboard exits")
	}
	if isEmptyClipboard(nil) {
		t.Error("nil is not an empty-clipboard exit")
	}
	// A real exit(1), produced without involving wl-paste.
	err := exec.Command("sh", "-c", "exit 1").Run()
	if err == nil {
		t.Skip("sh unavailable")
	}
	if !isEmptyClipboard(err) {
		t.Errorf("exit 1 should read as empty clipboard, got %v", err)
	}
}
