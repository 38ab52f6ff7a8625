package readersync

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/matthewjhunter/readersync/internal/greader"
	"github.com/matthewjhunter/readersync/internal/storage"
	"github.com/matthewjhunter/readersync/internal/syncer"
)

// EngineConfig configures the sync engine.
type EngineConfig struct {
	DBPath    string
	StatePath string // watermark file; empty means <UserConfigDir>/readersync/last_synced

	// Remote Google Reader API endpoint, e.g. https://rss.example.com/api/greader.php
	ServerURL string
	Username  string
	Password  string

	HTTPClient       *http.Client  // optional; overrides HTTPTimeout
	HTTPTimeout      time.Duration // per request, default 60s
	PageSize         int           // items per content page, default 1000
	SnapshotPageSize int           // ids per snapshot request, default 10000
	MaxPages         int           // pagination bound, default 1000
	DescribeFeeds    bool          // fetch descriptions of new feeds from the publisher

	Logger   *slog.Logger
	ReadOnly bool // when true, no credentials are needed and remote operations fail
}

// Category is a remote folder or label.
type Category = storage.Category

// Feed is a subscribed feed.
type Feed = storage.Feed

// Article is a cached feed item.
type Article = storage.Article

// CategoryNode is a category with its feeds and unread counts.
type CategoryNode = storage.CategoryNode

// FeedNode is a feed with its unread count.
type FeedNode = storage.FeedNode

// Tag is a remote tag or folder as listed by the server.
type Tag = greader.Tag

// SyncResult summarises one sync cycle.
type SyncResult = syncer.Result
