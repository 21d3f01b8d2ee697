// CLAUDE:SUMMARY CLI entry point for clipkeeperd — clipboard capture daemon with control API, plus an MCP stdio mode for agents.
// Command clipkeeperd is the clipboard history daemon.
//
// Usage:
//
//	clipkeeperd                            # capture with defaults
//	clipkeeperd -config clipkeeper.yaml    # capture with a config file
//	clipkeeperd -mcp                       # serve MCP tools on stdio
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/clipkeeper"
	"github.com/hazyhaar/clipkeeper/internal/store"
)

func main() {
	configPath := flag.String("config", env("CLIPKEEPER_CONFIG", ""), "path to clipkeeper.yaml config file")
	dbPath := flag.String("db", env("CLIPKEEPER_DB", ""), "database path (overrides config)")
	listen := flag.String("listen", env("CLIPKEEPER_LISTEN", ""), "control API address (overrides config)")
	logLevel := flag.String("log-level", env("CLIPKEEPER_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "log JSON instead of text")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdio instead of running the daemon")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// Logs go to stderr; in MCP mode stdout carries the protocol.
	var handler slog.Handler
	if *logJSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dbPath, *listen, *mcpMode); err != nil {
		logger.Error("clipkeeperd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath, listen string, mcpMode bool) error {
	cfg, err := clipkeeper.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if token := os.Getenv("CLIPKEEPER_API_TOKEN"); token != "" {
		cfg.APIToken = token
	}

	if mcpMode {
		return runMCP(ctx, logger, cfg)
	}

	svc, err := clipkeeper.New(cfg, clipkeeper.WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.Run(ctx)
}

// runMCP serves the store to MCP clients. The capture monitor and the
// instance lock are skipped so this works alongside a running daemon.
func runMCP(ctx context.Context, logger *slog.Logger, cfg clipkeeper.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	return clipkeeper.RunMCPStdio(ctx, st, logger)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
