// Package syncer drives one synchronization cycle between the remote reader
// service and the local store.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matthewjhunter/readersync/internal/greader"
	"github.com/matthewjhunter/readersync/internal/storage"
)

// Remote is the subset of the reader API a sync cycle needs.
type Remote interface {
	ListSubscriptions(ctx context.Context) ([]greader.Subscription, error)
	FetchUnreadPage(ctx context.Context, continuation string, since int64) (*greader.Page, error)
	FetchUnreadIDSnapshot(ctx context.Context) ([]string, error)
}

// Store is the subset of the local store a sync cycle writes to.
type Store interface {
	UpsertCategory(c storage.Category) error
	UpsertFeed(f storage.Feed) (bool, error)
	FeedExists(feedID string) (bool, error)
	UpsertArticle(a storage.Article) (bool, error)
	ReconcileUnreadExcept(unreadIDs []string) (int64, error)
}

// Watermark persists the last successful sync time in epoch seconds.
type Watermark interface {
	Load() (int64, error)
	Save(ts int64) error
}

// Describer looks up a feed's description from its publisher.
type Describer interface {
	Describe(ctx context.Context, feedURL string) (string, error)
}

// Options configures an Orchestrator. Zero values select defaults.
type Options struct {
	MaxPages  int       // bound on content pages per cycle
	Describer Describer // optional; fills descriptions of new feeds
	Logger    *slog.Logger
	Now       func() time.Time
}

// Result summarises one completed cycle.
type Result struct {
	Categories   int           `json:"categories"`
	Feeds        int           `json:"feeds"`
	NewFeeds     int           `json:"new_feeds"`
	Pages        int           `json:"pages"`
	Articles     int           `json:"articles"`
	NewArticles  int           `json:"new_articles"`
	SnapshotSize int           `json:"snapshot_size"`
	MarkedRead   int64         `json:"marked_read"`
	Watermark    int64         `json:"watermark"`
	Duration     time.Duration `json:"duration"`
}

// Orchestrator runs sync cycles. Concurrent calls to Sync share a single
// in-flight cycle.
type Orchestrator struct {
	remote    Remote
	store     Store
	watermark Watermark
	opts      Options
	logger    *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	waiters int                // callers waiting on the in-flight cycle
	cancel  context.CancelFunc // cancels the in-flight cycle; nil when idle
}

// New creates an orchestrator.
func New(remote Remote, store Store, watermark Watermark, opts Options) *Orchestrator {
	if opts.MaxPages <= 0 {
		opts.MaxPages = greader.DefaultMaxPages
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		remote:    remote,
		store:     store,
		watermark: watermark,
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Sync runs one full cycle: subscriptions, unread content pages, read-state
// reconciliation, then the watermark commit. Any failure aborts the cycle
// and leaves the watermark unchanged. A call made while a cycle is running
// waits for that cycle and receives its outcome.
//
// The cycle does not belong to any one caller. Cancelling ctx returns
// ctx.Err() to this caller only; the cycle itself is cancelled once every
// caller waiting on it has gone.
func (o *Orchestrator) Sync(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.waiters++
	o.mu.Unlock()

	ch := o.group.DoChan("sync", func() (any, error) {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()

		o.mu.Lock()
		o.cancel = cancel
		abandoned := o.waiters == 0
		o.mu.Unlock()
		defer func() {
			o.mu.Lock()
			o.cancel = nil
			o.mu.Unlock()
		}()
		if abandoned {
			cancel()
		}

		return o.run(runCtx)
	})

	select {
	case r := <-ch:
		o.leave()
		if r.Shared {
			o.logger.Debug("joined in-flight sync")
		}
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*Result)
		return &res, nil
	case <-ctx.Done():
		o.leave()
		return nil, ctx.Err()
	}
}

// leave drops a waiter and cancels the in-flight cycle when none remain.
func (o *Orchestrator) leave() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waiters--
	if o.waiters == 0 && o.cancel != nil {
		o.logger.Info("sync abandoned by all callers, cancelling")
		o.cancel()
	}
}

func (o *Orchestrator) run(ctx context.Context) (*Result, error) {
	started := o.opts.Now()
	res := &Result{}

	since, err := o.watermark.Load()
	if err != nil {
		return nil, fmt.Errorf("load watermark: %w", err)
	}
	o.logger.Info("sync started", "since", since)

	if err := o.syncSubscriptions(ctx, res); err != nil {
		return nil, err
	}
	if err := o.syncContent(ctx, since, res); err != nil {
		return nil, err
	}
	if err := o.reconcile(ctx, res); err != nil {
		return nil, err
	}

	res.Watermark = started.Unix()
	if err := o.watermark.Save(res.Watermark); err != nil {
		return nil, fmt.Errorf("commit watermark: %w", err)
	}
	res.Duration = o.opts.Now().Sub(started)

	o.logger.Info("sync completed",
		"feeds", res.Feeds,
		"pages", res.Pages,
		"new_articles", res.NewArticles,
		"marked_read", res.MarkedRead,
		"watermark", res.Watermark)
	return res, nil
}

func (o *Orchestrator) syncSubscriptions(ctx context.Context, res *Result) error {
	subs, err := o.remote.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	seen := make(map[string]bool)
	for _, sub := range subs {
		for _, c := range sub.Categories {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			if err := o.store.UpsertCategory(storage.Category{ID: c.ID, Label: c.Label}); err != nil {
				return fmt.Errorf("store category %s: %w", c.ID, err)
			}
			res.Categories++
		}

		feed := toStoredFeed(sub)
		if o.opts.Describer != nil {
			o.describe(ctx, &feed)
		}
		inserted, err := o.store.UpsertFeed(feed)
		if err != nil {
			return fmt.Errorf("store feed %s: %w", feed.ID, err)
		}
		res.Feeds++
		if inserted {
			res.NewFeeds++
		}
	}
	return nil
}

// describe fills the description of a feed not yet stored. Failures are
// logged and leave the description empty.
func (o *Orchestrator) describe(ctx context.Context, feed *storage.Feed) {
	if feed.FeedURL == "" {
		return
	}
	exists, err := o.store.FeedExists(feed.ID)
	if err != nil {
		o.logger.Warn("feed lookup failed, skipping description", "feed", feed.ID, "error", err)
		return
	}
	if exists {
		return
	}
	desc, err := o.opts.Describer.Describe(ctx, feed.FeedURL)
	if err != nil {
		o.logger.Warn("feed description unavailable", "feed", feed.ID, "error", err)
		return
	}
	feed.Description = desc
}

func (o *Orchestrator) syncContent(ctx context.Context, since int64, res *Result) error {
	continuation := ""
	used := make(map[string]bool)

	for page := 1; ; page++ {
		if page > o.opts.MaxPages {
			return fmt.Errorf("%w: unread content exceeded %d pages", greader.ErrPaginationLimit, o.opts.MaxPages)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := o.remote.FetchUnreadPage(ctx, continuation, since)
		if err != nil {
			return fmt.Errorf("fetch unread page %d: %w", page, err)
		}
		for _, a := range p.Articles {
			inserted, err := o.store.UpsertArticle(toStoredArticle(a))
			if err != nil {
				return fmt.Errorf("store article %s: %w", a.ID, err)
			}
			res.Articles++
			if inserted {
				res.NewArticles++
			}
		}
		res.Pages++
		o.logger.Debug("stored unread page", "page", page, "articles", len(p.Articles))

		if p.Continuation == "" {
			return nil
		}
		if used[p.Continuation] {
			return fmt.Errorf("%w: continuation %q repeated on page %d", greader.ErrMalformedResponse, p.Continuation, page)
		}
		used[p.Continuation] = true
		continuation = p.Continuation
	}
}

func (o *Orchestrator) reconcile(ctx context.Context, res *Result) error {
	ids, err := o.remote.FetchUnreadIDSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch unread snapshot: %w", err)
	}
	res.SnapshotSize = len(ids)

	marked, err := o.store.ReconcileUnreadExcept(ids)
	if err != nil {
		return fmt.Errorf("reconcile read state: %w", err)
	}
	res.MarkedRead = marked
	return nil
}
