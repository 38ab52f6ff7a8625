// Package greader is a client for the Google Reader API dialect spoken by
// FreshRSS, Inoreader and similar services.
package greader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/matthewjhunter/readersync/internal/ident"
)

const (
	// ReadingList is the stream of every item in the account.
	ReadingList = "user/-/state/com.google/reading-list"
	// ReadState is the tag carried by read items.
	ReadState = "user/-/state/com.google/read"

	DefaultPageSize         = 1000
	DefaultSnapshotPageSize = 10000
	DefaultMaxPages         = 1000
	DefaultTimeout          = 60 * time.Second

	apiPrefix = "/reader/api/0"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrAuthRejected       = errors.New("authentication rejected")
	ErrTransport          = errors.New("transport failure")
	ErrMalformedResponse  = errors.New("malformed response")
	// ErrPaginationLimit is returned when a paginated fetch keeps returning
	// continuations beyond the configured page bound.
	ErrPaginationLimit = errors.New("pagination limit exceeded")
)

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	HTTPClient       *http.Client
	Logger           *slog.Logger
	UserAgent        string
	PageSize         int // items per stream/contents page
	SnapshotPageSize int // item refs per stream/items/ids request
	MaxPages         int // bound on stream/items/ids continuations
}

// Client holds credentials and lazily authenticates. It is safe for
// concurrent use.
type Client struct {
	baseURL  string
	username string
	password string
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	sess *Session
}

// NewClient creates a client for the service rooted at baseURL, e.g.
// "https://rss.example.com/api/greader.php".
func NewClient(baseURL, username, password string, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "readersync/1.0"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.SnapshotPageSize <= 0 {
		opts.SnapshotPageSize = DefaultSnapshotPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// CheckCredentials reports ErrMissingCredentials if the base URL, username
// or password is empty.
func CheckCredentials(baseURL, username, password string) error {
	var missing []string
	if baseURL == "" {
		missing = append(missing, "url")
	}
	if username == "" {
		missing = append(missing, "username")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Session is an authenticated connection to the remote service.
type Session struct {
	Token   string
	BaseURL string

	client *Client
}

// Login authenticates via ClientLogin and returns a new session. Credentials
// are checked before any request is made.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	if err := CheckCredentials(c.baseURL, c.username, c.password); err != nil {
		return nil, err
	}

	form := url.Values{
		"Email":  {c.username},
		"Passwd": {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/accounts/ClientLogin", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: create login request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: login: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: login returned status %d", ErrTransport, resp.StatusCode)
	}

	token, err := scanAuthToken(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read login response: %v", ErrTransport, err)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no Auth token in login response (status %d)", ErrAuthRejected, resp.StatusCode)
	}

	c.logger.Debug("logged in", "base_url", c.baseURL, "user", c.username)
	return &Session{Token: token, BaseURL: c.baseURL, client: c}, nil
}

// scanAuthToken returns the value of the first "Auth=" line, or "".
func scanAuthToken(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if token, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "Auth="); ok {
			return strings.TrimSpace(token), nil
		}
	}
	return "", scanner.Err()
}

// session returns the cached session, logging in first if needed.
func (c *Client) session(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return c.sess, nil
	}
	s, err := c.Login(ctx)
	if err != nil {
		return nil, err
	}
	c.sess = s
	return s, nil
}

// forget drops the cached session after the remote rejected its token so the
// next call logs in again.
func (c *Client) forget(err error) error {
	if errors.Is(err, ErrAuthRejected) {
		c.mu.Lock()
		c.sess = nil
		c.mu.Unlock()
	}
	return err
}

// ListSubscriptions logs in if needed and lists the account's subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.ListSubscriptions(ctx)
	return subs, c.forget(err)
}

// FetchUnreadPage logs in if needed and fetches one page of unread content.
func (c *Client) FetchUnreadPage(ctx context.Context, continuation string, since int64) (*Page, error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	page, err := s.FetchUnreadPage(ctx, continuation, since)
	return page, c.forget(err)
}

// FetchUnreadIDSnapshot logs in if needed and returns every unread item id.
func (c *Client) FetchUnreadIDSnapshot(ctx context.Context) ([]string, error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.FetchUnreadIDSnapshot(ctx)
	return ids, c.forget(err)
}

// SetReadState logs in if needed and tags or untags an item as read.
func (c *Client) SetReadState(ctx context.Context, articleID string, unread bool) error {
	s, err := c.session(ctx)
	if err != nil {
		return err
	}
	return c.forget(s.SetReadState(ctx, articleID, unread))
}

// ListTags logs in if needed and lists tags and folders.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := s.ListTags(ctx)
	return tags, c.forget(err)
}

// ListSubscriptions fetches subscription/list.
func (s *Session) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var list subscriptionList
	if err := s.getJSON(ctx, "/subscription/list", url.Values{"output": {"json"}}, &list); err != nil {
		return nil, err
	}
	for _, sub := range list.Subscriptions {
		if sub.ID == "" {
			return nil, fmt.Errorf("%w: subscription without id", ErrMalformedResponse)
		}
	}
	return list.Subscriptions, nil
}

// FetchUnreadPage fetches one page of unread items from the reading list.
// since, when positive, excludes items older than that epoch second.
// continuation resumes a fetch started earlier in the same cycle.
func (s *Session) FetchUnreadPage(ctx context.Context, continuation string, since int64) (*Page, error) {
	q := url.Values{
		"output": {"json"},
		"s":      {ReadingList},
		"xt":     {ReadState},
		"n":      {strconv.Itoa(s.client.opts.PageSize)},
		"r":      {"n"},
	}
	if continuation != "" {
		q.Set("c", continuation)
	}
	if since > 0 {
		q.Set("ot", strconv.FormatInt(since, 10))
	}

	var sc streamContents
	if err := s.getJSON(ctx, "/stream/contents", q, &sc); err != nil {
		return nil, err
	}

	page := &Page{
		Articles:     make([]Article, 0, len(sc.Items)),
		Continuation: sc.Continuation,
	}
	for _, it := range sc.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: item without id", ErrMalformedResponse)
		}
		page.Articles = append(page.Articles, it.article())
	}

	s.client.logger.Debug("fetched unread page",
		"items", len(page.Articles),
		"has_continuation", page.Continuation != "")
	return page, nil
}

// FetchUnreadIDSnapshot returns the id of every currently unread item in
// canonical long form. Continuations are followed up to the client's page
// bound so the snapshot is complete.
func (s *Session) FetchUnreadIDSnapshot(ctx context.Context) ([]string, error) {
	var ids []string
	continuation := ""
	for page := 1; ; page++ {
		if page > s.client.opts.MaxPages {
			return nil, fmt.Errorf("%w: unread id snapshot exceeded %d pages", ErrPaginationLimit, s.client.opts.MaxPages)
		}

		q := url.Values{
			"output": {"json"},
			"s":      {ReadingList},
			"xt":     {ReadState},
			"n":      {strconv.Itoa(s.client.opts.SnapshotPageSize)},
			"r":      {"n"},
		}
		if continuation != "" {
			q.Set("c", continuation)
		}

		var refs itemRefs
		if err := s.getJSON(ctx, "/stream/items/ids", q, &refs); err != nil {
			return nil, err
		}
		for _, ref := range refs.ItemRefs {
			id, err := ident.CanonicalItemID(ref.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
			}
			ids = append(ids, id)
		}

		if refs.Continuation == "" || refs.Continuation == continuation {
			break
		}
		continuation = refs.Continuation
	}

	s.client.logger.Debug("fetched unread id snapshot", "ids", len(ids))
	return ids, nil
}

// SetReadState adds (unread=false) or removes (unread=true) the read tag on
// an item. Only transport success is checked; the body is discarded.
func (s *Session) SetReadState(ctx context.Context, articleID string, unread bool) error {
	form := url.Values{"i": {articleID}}
	if unread {
		form.Set("r", ReadState)
	} else {
		form.Set("a", ReadState)
	}
	resp, err := s.do(ctx, http.MethodPost, "/edit-tag", nil, form)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// ListTags fetches tag/list.
func (s *Session) ListTags(ctx context.Context) ([]Tag, error) {
	var list tagList
	if err := s.getJSON(ctx, "/tag/list", url.Values{"output": {"json"}}, &list); err != nil {
		return nil, err
	}
	return list.Tags, nil
}

func (s *Session) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	resp, err := s.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, path, err)
	}
	return nil
}

// do issues an authenticated API request. The caller closes the body of a
// successful response.
func (s *Session) do(ctx context.Context, method, path string, q url.Values, form url.Values) (*http.Response, error) {
	endpoint := s.BaseURL + apiPrefix + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request %s: %v", ErrTransport, path, err)
	}
	req.Header.Set("Authorization", "GoogleLogin auth="+s.Token)
	req.Header.Set("User-Agent", s.client.opts.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s returned status %d", ErrAuthRejected, method, path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s returned status %d", ErrTransport, method, path, resp.StatusCode)
	}
	return resp, nil
}
