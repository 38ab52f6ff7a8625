// readersync-mcp is a standalone MCP server over the readersync cache. It
// serves category, feed and article tools over stdio and can keep the cache
// fresh with a background sync loop.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/matthewjhunter/readersync"
	"github.com/matthewjhunter/readersync/internal/config"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: "+config.DefaultPath()+")")
	poll := flag.Duration("poll", 0, "background sync interval (e.g. 15m); 0 disables polling")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	// stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	engine, err := openEngine(cfg, logger)
	if err != nil {
		logger.Error("create readersync engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(engine, logger)
	if *poll > 0 {
		srv.poller = newPoller(engine, *poll, logger)
		srv.poller.start(ctx)
		defer srv.poller.stop()
	}

	if err := srv.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		stop()
		os.Exit(1)
	}
}

// openEngine opens a full engine, falling back to a read-only one when no
// credentials are configured so the cached data stays browsable.
func openEngine(cfg *config.Config, logger *slog.Logger) (*readersync.Engine, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}
	ecfg := readersync.EngineConfig{
		DBPath:           cfg.Database.Path,
		StatePath:        cfg.Sync.StatePath,
		ServerURL:        cfg.Server.URL,
		Username:         cfg.Server.Username,
		Password:         cfg.Server.Password,
		HTTPTimeout:      cfg.Sync.HTTPTimeout,
		PageSize:         cfg.Sync.PageSize,
		SnapshotPageSize: cfg.Sync.SnapshotPageSize,
		MaxPages:         cfg.Sync.MaxPages,
		DescribeFeeds:    cfg.Sync.DescribeFeeds,
		Logger:           logger,
	}
	engine, err := readersync.NewEngine(ecfg)
	if errors.Is(err, readersync.ErrMissingCredentials) {
		logger.Warn("no server credentials configured; serving the cache read-only", "error", err)
		ecfg.ReadOnly = true
		return readersync.NewEngine(ecfg)
	}
	return engine, err
}
