// Command oeisdb maintains a local SQLite mirror of the On-Line
// Encyclopedia of Integer Sequences.
//
// Usage:
//
//	oeisdb -config oeisdb.yaml             # run the sync daemon
//	oeisdb -db oeis.sqlite3                # run with defaults
//	oeisdb -db oeis.sqlite3 -once          # one sync cycle, then exit
//	oeisdb -db oeis.sqlite3 -stats         # show mirror stats and exit
//	oeisdb -db oeis.sqlite3 -http :8080    # daemon plus HTTP surface
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/oeisdb/mirror"
)

func main() {
	configPath := flag.String("config", "", "path to oeisdb.yaml config file")
	dbPath := flag.String("db", "", "path to the SQLite mirror database")
	httpAddr := flag.String("http", "", "serve the HTTP surface on this address (overrides config)")
	once := flag.Bool("once", false, "run a single sync cycle and exit")
	showStats := flag.Bool("stats", false, "show mirror stats and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFile := flag.String("logfile", "", "also write logs to this file, with rotation")
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

	var out io.Writer = os.Stderr
	if *logFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     90, // days
			Compress:   true,
		})
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dbPath, *httpAddr, *once, *showStats); err != nil {
		logger.Error("oeisdb: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath, httpAddr string, once, showStats bool) error {
	cfg, err := resolveConfig(configPath, dbPath, httpAddr)
	if err != nil {
		return err
	}

	m, err := mirror.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer m.Close()

	// One-shot: stats.
	if showStats {
		stats, err := m.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	// One-shot: a single sync cycle.
	if once {
		return m.Cycle(ctx)
	}

	// Daemon mode.
	if cfg.HTTPAddr != "" {
		go func() {
			if err := m.Serve(ctx); err != nil {
				logger.Error("oeisdb: http surface failed", "error", err)
			}
		}()
	}
	logger.Info("oeisdb: running", "db", cfg.DBPath, "http", cfg.HTTPAddr)

	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("oeisdb: shutting down")
	return nil
}

func resolveConfig(configPath, dbPath, httpAddr string) (*mirror.Config, error) {
	cfg := mirror.DefaultConfig()
	if configPath != "" {
		loaded, err := mirror.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	return cfg, nil
}
