// Package readersync mirrors a Google Reader compatible feed service (FreshRSS,
// Inoreader, ...) into a local SQLite cache and keeps read state in agreement.
package readersync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/matthewjhunter/readersync/internal/feeds"
	"github.com/matthewjhunter/readersync/internal/greader"
	"github.com/matthewjhunter/readersync/internal/ident"
	"github.com/matthewjhunter/readersync/internal/storage"
	"github.com/matthewjhunter/readersync/internal/syncer"
)

var (
	ErrMissingCredentials  = greader.ErrMissingCredentials
	ErrAuthRejected        = greader.ErrAuthRejected
	ErrTransport           = greader.ErrTransport
	ErrMalformedResponse   = greader.ErrMalformedResponse
	ErrPaginationLimit     = greader.ErrPaginationLimit
	ErrMalformedIdentifier = ident.ErrMalformedIdentifier
	ErrStorage             = storage.ErrStorage
	ErrNotFound            = storage.ErrNotFound

	// ErrReadOnly is returned by remote operations of a read-only engine.
	ErrReadOnly = errors.New("engine is read-only")
)

// Engine is the public API for readersync. It wraps the local store, the
// remote client and the sync orchestrator.
type Engine struct {
	store     *storage.Store
	client    *greader.Client // nil when read-only
	syncer    *syncer.Orchestrator
	watermark syncer.FileWatermark
	logger    *slog.Logger
}

// NewEngine opens the local cache and prepares the remote client. Unless
// ReadOnly is set, missing credentials are reported as ErrMissingCredentials
// before anything is opened or contacted.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if !cfg.ReadOnly {
		if err := greader.CheckCredentials(cfg.ServerURL, cfg.Username, cfg.Password); err != nil {
			return nil, err
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = greader.DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if cfg.StatePath == "" {
		path, err := syncer.DefaultWatermarkPath()
		if err != nil {
			return nil, err
		}
		cfg.StatePath = path
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	e := &Engine{
		store:     store,
		watermark: syncer.FileWatermark{Path: cfg.StatePath},
		logger:    cfg.Logger,
	}
	if cfg.ReadOnly {
		return e, nil
	}

	e.client = greader.NewClient(cfg.ServerURL, cfg.Username, cfg.Password, greader.Options{
		HTTPClient:       cfg.HTTPClient,
		Logger:           cfg.Logger,
		PageSize:         cfg.PageSize,
		SnapshotPageSize: cfg.SnapshotPageSize,
		MaxPages:         cfg.MaxPages,
	})

	opts := syncer.Options{
		MaxPages: cfg.MaxPages,
		Logger:   cfg.Logger,
	}
	if cfg.DescribeFeeds {
		opts.Describer = feeds.NewDescriber(cfg.HTTPClient, cfg.HTTPTimeout)
	}
	e.syncer = syncer.New(e.client, store, e.watermark, opts)
	return e, nil
}

// Sync runs one sync cycle. Concurrent calls share the cycle in flight.
// On failure the cached data stays as it was before the failing step and
// the watermark is not advanced.
func (e *Engine) Sync(ctx context.Context) (*SyncResult, error) {
	if e.syncer == nil {
		return nil, ErrReadOnly
	}
	return e.syncer.Sync(ctx)
}

// LastSynced returns the time of the last successful sync, or the zero time
// if there has been none.
func (e *Engine) LastSynced() (time.Time, error) {
	ts, err := e.watermark.Load()
	if err != nil {
		return time.Time{}, err
	}
	if ts == 0 {
		return time.Time{}, nil
	}
	return time.Unix(ts, 0), nil
}

// ListCategories returns all cached categories ordered by label.
func (e *Engine) ListCategories() ([]Category, error) {
	return e.store.ListCategories()
}

// ListFeedsForCategory returns the feeds filed under a category. The empty
// category id selects uncategorised feeds.
func (e *Engine) ListFeedsForCategory(categoryID string) ([]Feed, error) {
	return e.store.ListFeedsForCategory(categoryID)
}

// ListFeeds returns every cached feed.
func (e *Engine) ListFeeds() ([]Feed, error) {
	return e.store.ListFeeds()
}

// CategoryTree returns categories with their feeds and unread counts.
func (e *Engine) CategoryTree() ([]CategoryNode, error) {
	return e.store.Tree()
}

func (e *Engine) UnreadCountForFeed(feedID string) (int, error) {
	return e.store.UnreadCountForFeed(feedID)
}

func (e *Engine) UnreadCountForCategory(categoryID string) (int, error) {
	return e.store.UnreadCountForCategory(categoryID)
}

// ArticlesForFeed returns a feed's unread articles, newest first.
func (e *Engine) ArticlesForFeed(feedID string) ([]Article, error) {
	return e.store.ArticlesForFeed(feedID)
}

// ArticlesForCategory returns a category's unread articles, newest first.
func (e *Engine) ArticlesForCategory(categoryID string) ([]Article, error) {
	return e.store.ArticlesForCategory(categoryID)
}

// GetArticle returns one cached article, read or unread. ErrNotFound if the
// id is unknown.
func (e *Engine) GetArticle(articleID string) (*Article, error) {
	return e.store.GetArticle(articleID)
}

// MarkRead marks an article read on the server, then locally.
func (e *Engine) MarkRead(ctx context.Context, articleID string) error {
	return e.setReadState(ctx, articleID, false)
}

// MarkUnread marks an article unread on the server, then locally.
func (e *Engine) MarkUnread(ctx context.Context, articleID string) error {
	return e.setReadState(ctx, articleID, true)
}

// setReadState changes the remote state first. The local row is only touched
// after the server accepted the change, so a failed request leaves both sides
// as they were.
func (e *Engine) setReadState(ctx context.Context, articleID string, unread bool) error {
	if e.client == nil {
		return ErrReadOnly
	}
	if _, err := e.store.GetArticle(articleID); err != nil {
		return err
	}
	if err := e.client.SetReadState(ctx, articleID, unread); err != nil {
		return fmt.Errorf("set remote read state: %w", err)
	}
	return e.store.SetReadState(articleID, unread)
}

// ListTags lists the server's tags and folders.
func (e *Engine) ListTags(ctx context.Context) ([]Tag, error) {
	if e.client == nil {
		return nil, ErrReadOnly
	}
	return e.client.ListTags(ctx)
}

// ExportOPML writes the cached subscriptions as an OPML document.
func (e *Engine) ExportOPML(w io.Writer) error {
	tree, err := e.store.Tree()
	if err != nil {
		return err
	}
	folders := make([]feeds.Folder, 0, len(tree))
	for _, node := range tree {
		folder := feeds.Folder{Category: node.Category}
		for _, f := range node.Feeds {
			folder.Feeds = append(folder.Feeds, f.Feed)
		}
		folders = append(folders, folder)
	}
	return feeds.WriteOPML(w, feeds.BuildOPML("readersync subscriptions", folders, time.Now()))
}

// Close releases all resources held by the engine.
func (e *Engine) Close() error {
	return e.store.Close()
}
