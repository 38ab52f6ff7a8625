package syncer

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/matthewjhunter/readersync/internal/greader"
	"github.com/matthewjhunter/readersync/internal/storage"
)

// ExcerptLength is the maximum length, in runes, of a stored description.
const ExcerptLength = 300

var (
	strictPolicy = bluemonday.StrictPolicy()

	// Block boundaries become spaces so adjacent paragraphs don't run together.
	blockBreaks = strings.NewReplacer(
		"</p>", "</p> ",
		"<br>", "<br> ",
		"<br/>", "<br/> ",
		"<br />", "<br /> ",
		"</div>", "</div> ",
		"</li>", "</li> ",
		"</h1>", "</h1> ",
		"</h2>", "</h2> ",
		"</h3>", "</h3> ",
		"</blockquote>", "</blockquote> ",
	)
)

// Excerpt reduces article HTML to at most max runes of plain text with
// collapsed whitespace. Truncated text ends in an ellipsis.
func Excerpt(content string, max int) string {
	text := strictPolicy.Sanitize(blockBreaks.Replace(content))
	text = html.UnescapeString(text)
	text = strings.Join(strings.Fields(text), " ")
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

func toStoredFeed(sub greader.Subscription) storage.Feed {
	f := storage.Feed{
		ID:      sub.ID,
		Title:   sub.Title,
		FeedURL: sub.URL,
		SiteURL: sub.HTMLURL,
	}
	// Only the first remote category is kept locally.
	if len(sub.Categories) > 0 {
		f.CategoryID = sub.Categories[0].ID
	}
	return f
}

func toStoredArticle(a greader.Article) storage.Article {
	return storage.Article{
		ID:          a.ID,
		Link:        a.Link,
		Title:       a.Title,
		Description: Excerpt(a.Content, ExcerptLength),
		Content:     a.Content,
		Unread:      true,
		FeedID:      a.FeedID,
		PubDate:     a.Published,
	}
}
