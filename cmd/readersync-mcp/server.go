package main

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matthewjhunter/readersync"
)

const defaultArticleLimit = 20

// server is the readersync MCP server.
type server struct {
	engine *readersync.Engine
	poller *poller // non-nil when --poll is enabled
	logger *slog.Logger
}

func newServer(engine *readersync.Engine, logger *slog.Logger) *server {
	return &server{engine: engine, logger: logger}
}

// Output types. Tool results must be JSON objects, so lists are wrapped.

type categoriesOutput struct {
	Categories []readersync.CategoryNode `json:"categories"`
}

type feedsOutput struct {
	Feeds []readersync.Feed `json:"feeds"`
}

type articleSummary struct {
	ID          string `json:"id"`
	FeedID      string `json:"feed_id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description,omitempty"`
	Published   string `json:"published,omitempty"`
}

type articlesOutput struct {
	Articles []articleSummary `json:"articles"`
	Total    int              `json:"total"`
}

type readStateOutput struct {
	ArticleID string `json:"article_id"`
	Unread    bool   `json:"unread"`
}

type tagsOutput struct {
	Tags []readersync.Tag `json:"tags"`
}

type statusOutput struct {
	LastSynced string `json:"last_synced,omitempty"`
	Polling    bool   `json:"polling"`
}

// mcpServer builds the SDK server with every tool registered.
func (s *server) mcpServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "readersync", Version: "0.1.0"}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "categories_list",
		Description: "List categories with their feeds and unread article counts from the local cache.",
	}, s.handleCategoriesList)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "feeds_list",
		Description: "List cached feeds, optionally only those in one category.",
	}, s.handleFeedsList)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "articles_unread",
		Description: "Get unread articles newest first, optionally filtered to one feed or category. Returns ids, titles, links and short plain-text descriptions.",
	}, s.handleArticlesUnread)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "article_get",
		Description: "Get one cached article including its full HTML content and read state.",
	}, s.handleArticleGet)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "article_mark_read",
		Description: "Mark an article as read on the server and in the local cache.",
	}, s.handleMarkRead)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "article_mark_unread",
		Description: "Mark an article as unread on the server and in the local cache.",
	}, s.handleMarkUnread)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "tags_list",
		Description: "List the server's tags and folders with unread counts where the server provides them.",
	}, s.handleTagsList)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "sync_now",
		Description: "Run a sync cycle now: refresh subscriptions, fetch unread articles and reconcile read state. Joins a cycle already in progress.",
	}, s.handleSyncNow)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "sync_status",
		Description: "Report when the cache was last synced successfully and whether background polling is on.",
	}, s.handleSyncStatus)

	return srv
}

// run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *server) run(ctx context.Context) error {
	s.logger.Info("readersync-mcp starting", "polling", s.poller != nil)
	return s.mcpServer().Run(ctx, &mcp.StdioTransport{})
}

func (s *server) handleCategoriesList(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, categoriesOutput, error) {
	tree, err := s.engine.CategoryTree()
	if err != nil {
		return nil, categoriesOutput{}, err
	}
	if tree == nil {
		tree = []readersync.CategoryNode{}
	}
	return nil, categoriesOutput{Categories: tree}, nil
}

func (s *server) handleFeedsList(ctx context.Context, req *mcp.CallToolRequest, in feedsListInput) (*mcp.CallToolResult, feedsOutput, error) {
	var feeds []readersync.Feed
	var err error
	if in.CategoryID != nil {
		feeds, err = s.engine.ListFeedsForCategory(*in.CategoryID)
	} else {
		feeds, err = s.engine.ListFeeds()
	}
	if err != nil {
		return nil, feedsOutput{}, err
	}
	if feeds == nil {
		feeds = []readersync.Feed{}
	}
	return nil, feedsOutput{Feeds: feeds}, nil
}

func (s *server) handleArticlesUnread(ctx context.Context, req *mcp.CallToolRequest, in articlesUnreadInput) (*mcp.CallToolResult, articlesOutput, error) {
	if in.FeedID != nil && in.CategoryID != nil {
		return nil, articlesOutput{}, errors.New("feed_id and category_id are mutually exclusive")
	}

	var articles []readersync.Article
	var err error
	switch {
	case in.FeedID != nil:
		articles, err = s.engine.ArticlesForFeed(*in.FeedID)
	case in.CategoryID != nil:
		articles, err = s.engine.ArticlesForCategory(*in.CategoryID)
	default:
		articles, err = s.allUnread()
	}
	if err != nil {
		return nil, articlesOutput{}, err
	}

	limit := defaultArticleLimit
	if in.Limit != nil && *in.Limit > 0 {
		limit = *in.Limit
	}
	offset := 0
	if in.Offset != nil && *in.Offset > 0 {
		offset = *in.Offset
	}

	out := articlesOutput{Articles: []articleSummary{}, Total: len(articles)}
	if offset < len(articles) {
		end := min(offset+limit, len(articles))
		for _, a := range articles[offset:end] {
			out.Articles = append(out.Articles, summarize(a))
		}
	}
	return nil, out, nil
}

// allUnread merges the unread articles of every feed, newest first.
func (s *server) allUnread() ([]readersync.Article, error) {
	feeds, err := s.engine.ListFeeds()
	if err != nil {
		return nil, err
	}
	var all []readersync.Article
	for _, f := range feeds {
		articles, err := s.engine.ArticlesForFeed(f.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, articles...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].PubDate != all[j].PubDate {
			return all[i].PubDate > all[j].PubDate
		}
		return all[i].ShortID > all[j].ShortID
	})
	return all, nil
}

func summarize(a readersync.Article) articleSummary {
	sum := articleSummary{
		ID:          a.ID,
		FeedID:      a.FeedID,
		Title:       a.Title,
		Link:        a.Link,
		Description: a.Description,
	}
	if a.PubDate > 0 {
		sum.Published = time.Unix(a.PubDate, 0).UTC().Format(time.RFC3339)
	}
	return sum
}

func (s *server) handleArticleGet(ctx context.Context, req *mcp.CallToolRequest, in articleIDInput) (*mcp.CallToolResult, readersync.Article, error) {
	a, err := s.engine.GetArticle(in.ArticleID)
	if err != nil {
		return nil, readersync.Article{}, err
	}
	return nil, *a, nil
}

func (s *server) handleMarkRead(ctx context.Context, req *mcp.CallToolRequest, in articleIDInput) (*mcp.CallToolResult, readStateOutput, error) {
	if err := s.engine.MarkRead(ctx, in.ArticleID); err != nil {
		return nil, readStateOutput{}, err
	}
	return nil, readStateOutput{ArticleID: in.ArticleID, Unread: false}, nil
}

func (s *server) handleMarkUnread(ctx context.Context, req *mcp.CallToolRequest, in articleIDInput) (*mcp.CallToolResult, readStateOutput, error) {
	if err := s.engine.MarkUnread(ctx, in.ArticleID); err != nil {
		return nil, readStateOutput{}, err
	}
	return nil, readStateOutput{ArticleID: in.ArticleID, Unread: true}, nil
}

func (s *server) handleTagsList(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, tagsOutput, error) {
	tags, err := s.engine.ListTags(ctx)
	if err != nil {
		return nil, tagsOutput{}, err
	}
	if tags == nil {
		tags = []readersync.Tag{}
	}
	return nil, tagsOutput{Tags: tags}, nil
}

func (s *server) handleSyncNow(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, readersync.SyncResult, error) {
	var result *readersync.SyncResult
	var err error
	if s.poller != nil {
		result, err = s.poller.poll(ctx)
	} else {
		result, err = s.engine.Sync(ctx)
	}
	if err != nil {
		return nil, readersync.SyncResult{}, err
	}
	return nil, *result, nil
}

func (s *server) handleSyncStatus(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, statusOutput, error) {
	last, err := s.engine.LastSynced()
	if err != nil {
		return nil, statusOutput{}, err
	}
	out := statusOutput{Polling: s.poller != nil}
	if !last.IsZero() {
		out.LastSynced = last.UTC().Format(time.RFC3339)
	}
	return nil, out, nil
}
