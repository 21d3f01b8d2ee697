// CLAUDE:SUMMARY Bootstrap configuration for the daemon: data paths, listen address and capture tuning, loaded from YAML with environment-independent defaults.
package clipkeeper

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the bootstrap configuration: everything the daemon needs
// before the store is open. Runtime behavior (history size, image
// quality, backups) lives in the settings table instead and is
// editable while the daemon runs.
type Config struct {
	// DataDir holds the database, image blobs and backups. Defaults
	// to $XDG_DATA_HOME/clipkeeper.
	DataDir    string `yaml:"data_dir"`
	DBPath     string `yaml:"db_path"`
	ImagesDir  string `yaml:"images_dir"`
	BackupsDir string `yaml:"backups_dir"`

	// Listen is the control API address. Loopback unless overridden.
	Listen string `yaml:"listen"`
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string `yaml:"api_token"`

	// PollInterval is the fallback clipboard poll cadence.
	PollInterval time.Duration `yaml:"poll_interval"`
	// WatchCommand is the external watcher whose stdout lines become
	// capture triggers. nil selects the wl-paste default; an explicit
	// empty list disables the watcher.
	WatchCommand []string `yaml:"watch_command"`
	// QueueSize bounds the image encode queue.
	QueueSize int `yaml:"queue_size"`

	// DisableTitles turns off page title fetching for URL clips.
	DisableTitles bool `yaml:"disable_titles"`
}

// LoadConfig reads a YAML config file. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("clipkeeper: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("clipkeeper: parse config: %w", err)
		}
	}
	cfg.defaults()
	return cfg, nil
}

func (c *Config) defaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "clips.db")
	}
	if c.ImagesDir == "" {
		c.ImagesDir = filepath.Join(c.DataDir, "images")
	}
	if c.BackupsDir == "" {
		c.BackupsDir = filepath.Join(c.DataDir, "backups")
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8849"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.WatchCommand == nil {
		c.WatchCommand = []string{"wl-paste", "--watch", "echo", "CLIPBOARD_CHANGED"}
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "clipkeeper")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "clipkeeper-data"
	}
	return filepath.Join(home, ".local", "share", "clipkeeper")
}
