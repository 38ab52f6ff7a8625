package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/matthewjhunter/readersync"
)

// poller runs a background sync loop.
type poller struct {
	engine   *readersync.Engine
	interval time.Duration
	logger   *slog.Logger

	done chan struct{}
}

func newPoller(engine *readersync.Engine, interval time.Duration, logger *slog.Logger) *poller {
	return &poller{
		engine:   engine,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// start launches the background poll loop. It syncs immediately, then on
// each tick of the configured interval.
func (p *poller) start(ctx context.Context) {
	go p.loop(ctx)
	p.logger.Info("poller started", "interval", p.interval)
}

// stop signals the poll loop to exit.
func (p *poller) stop() {
	close(p.done)
	p.logger.Info("poller stopped")
}

// poll runs a single sync cycle. A poll overlapping a sync_now call joins it.
func (p *poller) poll(ctx context.Context) (*readersync.SyncResult, error) {
	result, err := p.engine.Sync(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("poll completed",
		"feeds", result.Feeds,
		"new_articles", result.NewArticles,
		"marked_read", result.MarkedRead)
	return result, nil
}

func (p *poller) loop(ctx context.Context) {
	if _, err := p.poll(ctx); err != nil {
		p.logger.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.poll(ctx); err != nil {
				p.logger.Error("poll failed", "error", err)
			}
		}
	}
}
