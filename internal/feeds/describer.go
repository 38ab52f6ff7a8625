// Package feeds reads feed documents directly from their publishers. The
// sync path uses it only for metadata the Google Reader API does not expose.
package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const userAgent = "readersync/1.0"

// Describer looks up a feed's channel description.
type Describer struct {
	parser  *gofeed.Parser
	client  *http.Client
	timeout time.Duration
}

// NewDescriber creates a describer. A zero timeout means 30 seconds per feed.
func NewDescriber(client *http.Client, timeout time.Duration) *Describer {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Describer{parser: parser, client: client, timeout: timeout}
}

// Describe fetches feedURL and returns its description, trimmed. A feed
// without a description yields "" and no error.
func (d *Describer) Describe(ctx context.Context, feedURL string) (string, error) {
	feed, err := d.fetch(ctx, feedURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(feed.Description), nil
}

func (d *Describer) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", feedURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", feedURL, err)
	}

	parsed, err := d.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}
	return parsed, nil
}
