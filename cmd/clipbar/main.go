// CLAUDE:SUMMARY Waybar status module for the clipboard history: one-shot JSON render from a read-only DB handle, with a -watch mode that repaints on daemon writes.
// Command clipbar renders the clipboard history as a waybar module.
//
// Usage:
//
//	clipbar            # print one JSON object, then exit
//	clipbar -watch     # re-print whenever the daemon stores a clip
//
// The database is opened read-only so clipbar can never steal the
// write lock from the daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/clipkeeper"
	"github.com/hazyhaar/clipkeeper/dbopen"
	"github.com/hazyhaar/clipkeeper/internal/dbwatch"
	"github.com/hazyhaar/clipkeeper/internal/store"
)

type waybarLine struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
	Alt     string `json:"alt"`
}

func main() {
	configPath := flag.String("config", env("CLIPKEEPER_CONFIG", ""), "path to clipkeeper.yaml config file")
	dbPath := flag.String("db", env("CLIPKEEPER_DB", ""), "database path (overrides config)")
	watchMode := flag.Bool("watch", false, "keep running and re-print on database changes")
	interval := flag.Duration("interval", 2*time.Second, "poll interval in -watch mode")
	limit := flag.Int("limit", 8, "recent clips shown in the tooltip")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dbPath, *watchMode, *interval, *limit); err != nil {
		logger.Error("clipbar: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath string, watchMode bool, interval time.Duration, limit int) error {
	cfg, err := clipkeeper.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithReadOnly())
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.New(db, logger)

	if !watchMode {
		return printLine(ctx, st, limit)
	}

	// Initial paint, then one repaint per daemon write. Each JSON line
	// replaces the module output in waybar's continuous exec mode.
	if err := printLine(ctx, st, limit); err != nil {
		logger.Warn("clipbar: initial render", "error", err)
	}
	w := dbwatch.New(db, dbwatch.Options{
		Interval: interval,
		Debounce: 250 * time.Millisecond,
		Logger:   logger,
	})
	w.Run(ctx, func() error { return printLine(ctx, st, limit) })
	return nil
}

func printLine(ctx context.Context, st *store.Store, limit int) error {
	line, err := render(ctx, st, limit)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(line)
}

func render(ctx context.Context, st *store.Store, limit int) (waybarLine, error) {
	stats, err := st.Stats(ctx)
	if err != nil {
		return waybarLine{}, err
	}
	clips, err := st.List(ctx, store.Filter{Limit: limit})
	if err != nil {
		return waybarLine{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d clips, %d pinned", stats.Total, stats.Pinned)
	for _, c := range clips {
		b.WriteString("\n")
		b.WriteString(c.Preview())
	}

	class := "clips"
	if on, err := st.SettingBool(ctx, "incognito"); err == nil && on {
		class = "incognito"
	}
	if on, err := st.SettingBool(ctx, "paused"); err == nil && on {
		class = "paused"
	}

	return waybarLine{
		Text:    fmt.Sprintf("📋 %d", stats.Total),
		Tooltip: b.String(),
		Class:   class,
		Alt:     class,
	}, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
