package greader

// Wire types for the Google Reader JSON API as served by FreshRSS, Inoreader
// and compatible services.

// Category is a folder/label attached to a subscription.
type Category struct {
	ID    string `json:"id"`    // e.g. "user/-/label/News"
	Label string `json:"label"` // display name
}

// Subscription is one entry of subscription/list.
type Subscription struct {
	ID         string     `json:"id"` // e.g. "feed/https://example.com/rss"
	Title      string     `json:"title"`
	Categories []Category `json:"categories"`
	URL        string     `json:"url"`     // feed URL
	HTMLURL    string     `json:"htmlUrl"` // site URL
	IconURL    string     `json:"iconUrl"`
}

type subscriptionList struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

// Tag is one entry of tag/list.
type Tag struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	UnreadCount *int   `json:"unread_count,omitempty"`
}

type tagList struct {
	Tags []Tag `json:"tags"`
}

type streamContents struct {
	ID           string `json:"id"`
	Updated      int64  `json:"updated"`
	Items        []item `json:"items"`
	Continuation string `json:"continuation"`
}

type item struct {
	ID         string   `json:"id"`
	Published  int64    `json:"published"`
	Title      string   `json:"title"`
	Summary    content  `json:"summary"`
	Content    content  `json:"content"`
	Canonical  []link   `json:"canonical"`
	Alternate  []link   `json:"alternate"`
	Categories []string `json:"categories"`
	Origin     origin   `json:"origin"`
}

type content struct {
	Content string `json:"content"`
}

type link struct {
	Href string `json:"href"`
}

type origin struct {
	StreamID string `json:"streamId"`
	HTMLURL  string `json:"htmlUrl"`
	Title    string `json:"title"`
}

type itemRefs struct {
	ItemRefs []struct {
		ID string `json:"id"`
	} `json:"itemRefs"`
	Continuation string `json:"continuation"`
}

// Article is a remote item reduced to the fields the local mirror keeps.
type Article struct {
	ID        string
	Title     string
	Link      string
	Content   string
	FeedID    string // origin stream id, matches Subscription.ID
	Published int64  // epoch seconds
}

// Page is one page of stream/contents.
type Page struct {
	Articles []Article
	// Continuation resumes the fetch; empty on the last page.
	Continuation string
}

func (it item) article() Article {
	a := Article{
		ID:        it.ID,
		Title:     it.Title,
		Content:   it.Content.Content,
		FeedID:    it.Origin.StreamID,
		Published: it.Published,
	}
	if a.Content == "" {
		a.Content = it.Summary.Content
	}
	switch {
	case len(it.Canonical) > 0:
		a.Link = it.Canonical[0].Href
	case len(it.Alternate) > 0:
		a.Link = it.Alternate[0].Href
	}
	return a
}
