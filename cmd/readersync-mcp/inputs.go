package main

// Input types for MCP tools. The SDK infers JSON Schema from these structs.
// Pointer types are optional; value types are required.

type emptyInput struct{}

type feedsListInput struct {
	CategoryID *string `json:"category_id,omitempty" jsonschema:"Category id such as user/-/label/News. Empty string selects uncategorized feeds. If omitted all feeds are listed."`
}

type articlesUnreadInput struct {
	FeedID     *string `json:"feed_id,omitempty"     jsonschema:"Only articles from this feed id (e.g. feed/12)"`
	CategoryID *string `json:"category_id,omitempty" jsonschema:"Only articles from feeds in this category id"`
	Limit      *int    `json:"limit,omitempty"       jsonschema:"Maximum number of articles to return (default 20)"`
	Offset     *int    `json:"offset,omitempty"      jsonschema:"Number of articles to skip for pagination (default 0)"`
}

type articleIDInput struct {
	ArticleID string `json:"article_id" jsonschema:"The article id, e.g. tag:google.com,2005:reader/item/000000000000001a"`
}
