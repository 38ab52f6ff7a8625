package feeds

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/matthewjhunter/readersync/internal/storage"
)

// OPML structures
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    OPMLHead `xml:"head"`
	Body    OPMLBody `xml:"body"`
}

type OPMLHead struct {
	Title       string `xml:"title"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type OPMLBody struct {
	Outlines []OPMLOutline `xml:"outline"`
}

type OPMLOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr,omitempty"`
	Type     string        `xml:"type,attr,omitempty"`
	XMLURL   string        `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string        `xml:"htmlUrl,attr,omitempty"`
	Outlines []OPMLOutline `xml:"outline"`
}

// Folder is a category and the feeds filed under it.
type Folder struct {
	Category storage.Category
	Feeds    []storage.Feed
}

// BuildOPML converts folders into an OPML 2.0 document. Folders without feeds
// are skipped. A folder with an empty category id holds uncategorised feeds,
// which are emitted at the top level.
func BuildOPML(title string, folders []Folder, created time.Time) OPML {
	doc := OPML{
		Version: "2.0",
		Head:    OPMLHead{Title: title},
	}
	if !created.IsZero() {
		doc.Head.DateCreated = created.UTC().Format(time.RFC1123Z)
	}

	for _, folder := range folders {
		if len(folder.Feeds) == 0 {
			continue
		}
		outlines := make([]OPMLOutline, 0, len(folder.Feeds))
		for _, f := range folder.Feeds {
			outlines = append(outlines, feedOutline(f))
		}
		if folder.Category.ID == "" {
			doc.Body.Outlines = append(doc.Body.Outlines, outlines...)
			continue
		}
		label := folder.Category.Label
		if label == "" {
			label = folder.Category.ID
		}
		doc.Body.Outlines = append(doc.Body.Outlines, OPMLOutline{
			Text:     label,
			Title:    label,
			Outlines: outlines,
		})
	}
	return doc
}

func feedOutline(f storage.Feed) OPMLOutline {
	title := f.Title
	if title == "" {
		title = f.FeedURL
	}
	return OPMLOutline{
		Text:    title,
		Title:   title,
		Type:    "rss",
		XMLURL:  f.FeedURL,
		HTMLURL: f.SiteURL,
	}
}

// WriteOPML writes doc as indented XML with a header.
func WriteOPML(w io.Writer, doc OPML) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write OPML: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("failed to write OPML: %w", err)
	}
	return nil
}
