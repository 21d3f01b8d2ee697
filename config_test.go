package clipkeeper

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir not defaulted")
	}
	if cfg.DBPath != filepath.Join(cfg.DataDir, "clips.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ImagesDir != filepath.Join(cfg.DataDir, "images") {
		t.Errorf("ImagesDir = %q", cfg.ImagesDir)
	}
	if cfg.Listen != "127.0.0.1:8849" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.QueueSize != 128 {
		t.Errorf("QueueSize = %d", cfg.QueueSize)
	}
	if len(cfg.WatchCommand) == 0 || cfg.WatchCommand[0] != "wl-paste" {
		t.Errorf("WatchCommand = %v", cfg.WatchCommand)
	}
}

func TestLoadConfigFile(t *testing.T) {
	yaml := `
data_dir: /tmp/clipkeeper-test
listen: "127.0.0.1:9911"
api_token: "secret"
poll_interval: 250000000
queue_size: 16
disable_titles: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/tmp/clipkeeper-test" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.DBPath != "/tmp/clipkeeper-test/clips.db" {
		t.Errorf("DBPath = %q, want derived from data_dir", cfg.DBPath)
	}
	if cfg.Listen != "127.0.0.1:9911" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.APIToken != "secret" {
		t.Errorf("APIToken = %q", cfg.APIToken)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.QueueSize != 16 {
		t.Errorf("QueueSize = %d", cfg.QueueSize)
	}
	if !cfg.DisableTitles {
		t.Error("DisableTitles not set")
	}
}

func TestLoadConfigEmptyWatchCommandDisables(t *testing.T) {
	yaml := "watch_command: []\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WatchCommand == nil {
		t.Fatal("explicit empty list should survive defaulting")
	}
	if len(cfg.WatchCommand) != 0 {
		t.Errorf("WatchCommand = %v", cfg.WatchCommand)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
