package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/matthewjhunter/readersync/internal/greader"
	"github.com/matthewjhunter/readersync/internal/storage"
	"github.com/matthewjhunter/readersync/internal/syncer"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatText, FormatHuman:
		return f, nil
	}
	return "", fmt.Errorf("unknown format: %s (want json, text or human)", s)
}

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// OutputSyncResult outputs the outcome of a sync cycle
func (f *Formatter) OutputSyncResult(result *syncer.Result) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(result)
	case FormatText:
		fmt.Fprintf(f.out, "categories=%d\n", result.Categories)
		fmt.Fprintf(f.out, "feeds=%d\n", result.Feeds)
		fmt.Fprintf(f.out, "new_feeds=%d\n", result.NewFeeds)
		fmt.Fprintf(f.out, "pages=%d\n", result.Pages)
		fmt.Fprintf(f.out, "articles=%d\n", result.Articles)
		fmt.Fprintf(f.out, "new_articles=%d\n", result.NewArticles)
		fmt.Fprintf(f.out, "snapshot_size=%d\n", result.SnapshotSize)
		fmt.Fprintf(f.out, "marked_read=%d\n", result.MarkedRead)
		fmt.Fprintf(f.out, "watermark=%d\n", result.Watermark)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Synced %d feeds in %d categories (%d new feeds)\n",
			result.Feeds, result.Categories, result.NewFeeds)
		fmt.Fprintf(f.out, "Fetched %d unread articles in %d pages, %d new\n",
			result.Articles, result.Pages, result.NewArticles)
		if result.MarkedRead > 0 {
			fmt.Fprintf(f.out, "Marked %d articles read elsewhere as read\n", result.MarkedRead)
		}
		fmt.Fprintf(f.out, "Took %s\n", result.Duration.Round(time.Millisecond))
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputCategoryTree outputs categories with their feeds and unread counts
func (f *Formatter) OutputCategoryTree(tree []storage.CategoryNode) error {
	switch f.format {
	case FormatJSON:
		if tree == nil {
			tree = []storage.CategoryNode{}
		}
		return json.NewEncoder(f.out).Encode(tree)
	case FormatText:
		for _, c := range tree {
			fmt.Fprintf(f.out, "category=%s\tlabel=%s\tunread=%d\n", c.ID, c.Label, c.Unread)
			for _, feed := range c.Feeds {
				fmt.Fprintf(f.out, "  feed=%s\ttitle=%s\tunread=%d\n", feed.ID, feed.Title, feed.Unread)
			}
		}
		return nil
	case FormatHuman:
		if len(tree) == 0 {
			fmt.Fprintln(f.out, "No categories (run sync first)")
			return nil
		}
		for _, c := range tree {
			label := c.Label
			if c.ID == "" {
				label = "Uncategorized"
			}
			fmt.Fprintf(f.out, "%s (%d)\n", label, c.Unread)
			for _, feed := range c.Feeds {
				fmt.Fprintf(f.out, "  • %s (%d)\n", feed.Title, feed.Unread)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputFeedList outputs the feeds of one category
func (f *Formatter) OutputFeedList(feeds []storage.Feed) error {
	switch f.format {
	case FormatJSON:
		if feeds == nil {
			feeds = []storage.Feed{}
		}
		return json.NewEncoder(f.out).Encode(feeds)
	case FormatText:
		for _, feed := range feeds {
			fmt.Fprintf(f.out, "id=%s\ttitle=%s\turl=%s\n", feed.ID, feed.Title, feed.FeedURL)
		}
		return nil
	case FormatHuman:
		if len(feeds) == 0 {
			fmt.Fprintln(f.out, "No feeds")
			return nil
		}
		for _, feed := range feeds {
			fmt.Fprintf(f.out, "%s\n  %s\n", feed.Title, feed.FeedURL)
			if feed.Description != "" {
				fmt.Fprintf(f.out, "  %s\n", truncate(feed.Description, 120))
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputArticleList outputs a list of articles
func (f *Formatter) OutputArticleList(articles []storage.Article) error {
	switch f.format {
	case FormatJSON:
		if articles == nil {
			articles = []storage.Article{}
		}
		return json.NewEncoder(f.out).Encode(articles)
	case FormatText:
		for _, a := range articles {
			fmt.Fprintf(f.out, "id=%s\ttitle=%s\turl=%s\tpublished=%s\n",
				a.ID, a.Title, a.Link, formatTime(a.PubDate))
		}
		return nil
	case FormatHuman:
		if len(articles) == 0 {
			fmt.Fprintln(f.out, "No unread articles")
			return nil
		}
		fmt.Fprintf(f.out, "Unread articles (%d):\n\n", len(articles))
		for _, a := range articles {
			fmt.Fprintf(f.out, "ID: %s\n", a.ID)
			fmt.Fprintf(f.out, "Title: %s\n", a.Title)
			fmt.Fprintf(f.out, "URL: %s\n", a.Link)
			if a.PubDate > 0 {
				fmt.Fprintf(f.out, "Published: %s\n", time.Unix(a.PubDate, 0).Format("2006-01-02 15:04"))
			}
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputArticle outputs one article in full
func (f *Formatter) OutputArticle(a *storage.Article) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(a)
	case FormatText:
		fmt.Fprintf(f.out, "id=%s\n", a.ID)
		fmt.Fprintf(f.out, "feed=%s\n", a.FeedID)
		fmt.Fprintf(f.out, "title=%s\n", a.Title)
		fmt.Fprintf(f.out, "url=%s\n", a.Link)
		fmt.Fprintf(f.out, "published=%s\n", formatTime(a.PubDate))
		fmt.Fprintf(f.out, "unread=%t\n", a.Unread)
		fmt.Fprintf(f.out, "description=%s\n", a.Description)
		return nil
	case FormatHuman:
		fmt.Fprintln(f.out, a.Title)
		fmt.Fprintln(f.out, strings.Repeat("=", 70))
		fmt.Fprintf(f.out, "URL: %s\n", a.Link)
		if a.PubDate > 0 {
			fmt.Fprintf(f.out, "Published: %s\n", time.Unix(a.PubDate, 0).Format("2006-01-02 15:04"))
		}
		state := "read"
		if a.Unread {
			state = "unread"
		}
		fmt.Fprintf(f.out, "State: %s\n", state)
		if a.Description != "" {
			fmt.Fprintf(f.out, "\n%s\n", a.Description)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputReadState reports a read-state change
func (f *Formatter) OutputReadState(articleID string, unread bool) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]any{
			"id":     articleID,
			"unread": unread,
		})
	case FormatText:
		fmt.Fprintf(f.out, "id=%s\tunread=%t\n", articleID, unread)
		return nil
	case FormatHuman:
		state := "read"
		if unread {
			state = "unread"
		}
		fmt.Fprintf(f.out, "Marked %s as %s\n", articleID, state)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputTags outputs the remote tag list
func (f *Formatter) OutputTags(tags []greader.Tag) error {
	switch f.format {
	case FormatJSON:
		if tags == nil {
			tags = []greader.Tag{}
		}
		return json.NewEncoder(f.out).Encode(tags)
	case FormatText:
		for _, t := range tags {
			line := fmt.Sprintf("id=%s\ttype=%s", t.ID, t.Type)
			if t.UnreadCount != nil {
				line += fmt.Sprintf("\tunread=%d", *t.UnreadCount)
			}
			fmt.Fprintln(f.out, line)
		}
		return nil
	case FormatHuman:
		if len(tags) == 0 {
			fmt.Fprintln(f.out, "No tags")
			return nil
		}
		for _, t := range tags {
			if t.UnreadCount != nil {
				fmt.Fprintf(f.out, "%s (%d)\n", t.ID, *t.UnreadCount)
			} else {
				fmt.Fprintln(f.out, t.ID)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

// formatTime formats epoch seconds for output
func formatTime(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// truncate truncates a string to maxLen runes
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
