package greader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewjhunter/readersync/internal/ident"
)

const testToken = "alice/0123456789abcdef"

// fakeReader is a minimal Google Reader endpoint. Handlers registered in
// routes receive requests already checked for a valid token.
type fakeReader struct {
	t      *testing.T
	logins atomic.Int32
	routes map[string]http.HandlerFunc
}

func newFakeReader(t *testing.T) (*fakeReader, *httptest.Server) {
	t.Helper()
	f := &fakeReader{t: t, routes: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeReader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/accounts/ClientLogin" {
		f.logins.Add(1)
		if r.FormValue("Email") != "alice" || r.FormValue("Passwd") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, "Error=BadAuthentication")
			return
		}
		fmt.Fprintf(w, "SID=%s\nLSID=null\nAuth=%s\n", testToken, testToken)
		return
	}
	if r.Header.Get("Authorization") != "GoogleLogin auth="+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	h, ok := f.routes[strings.TrimPrefix(r.URL.Path, apiPrefix)]
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, "alice", "secret", Options{HTTPClient: srv.Client()})
}

func TestCheckCredentials(t *testing.T) {
	require.NoError(t, CheckCredentials("http://x", "u", "p"))

	err := CheckCredentials("http://x", "", "")
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "username, password")
}

func TestLogin_MissingCredentialsMakesNoRequest(t *testing.T) {
	f, srv := newFakeReader(t)
	c := NewClient(srv.URL, "alice", "", Options{HTTPClient: srv.Client()})

	_, err := c.Login(context.Background())
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Zero(t, f.logins.Load())
}

func TestLogin_Success(t *testing.T) {
	_, srv := newFakeReader(t)

	s, err := newTestClient(srv).Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testToken, s.Token)
	assert.Equal(t, srv.URL, s.BaseURL)
}

func TestLogin_Rejected(t *testing.T) {
	_, srv := newFakeReader(t)
	c := NewClient(srv.URL, "alice", "wrong", Options{HTTPClient: srv.Client()})

	_, err := c.Login(context.Background())
	require.ErrorIs(t, err, ErrAuthRejected)
}

func TestLogin_Unreachable(t *testing.T) {
	_, srv := newFakeReader(t)
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "alice", "secret", Options{}).Login(context.Background())
	require.ErrorIs(t, err, ErrTransport)
}

func TestListSubscriptions(t *testing.T) {
	f, srv := newFakeReader(t)
	f.routes["/subscription/list"] = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("output"))
		fmt.Fprint(w, `{"subscriptions":[
			{"id":"feed/1","title":"Blog","categories":[{"id":"user/-/label/Tech","label":"Tech"}],
			 "url":"https://blog.example/rss","htmlUrl":"https://blog.example/","iconUrl":""},
			{"id":"feed/2","title":"Loose","categories":[],"url":"https://loose.example/rss","htmlUrl":"https://loose.example/"}
		]}`)
	}

	c := newTestClient(srv)
	subs, err := c.ListSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "Blog", subs[0].Title)
	assert.Equal(t, "https://blog.example/rss", subs[0].URL)
	assert.Equal(t, []Category{{ID: "user/-/label/Tech", Label: "Tech"}}, subs[0].Categories)
	assert.Empty(t, subs[1].Categories)

	// Session is reused.
	_, err = c.ListSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.logins.Load())
}

func TestListSubscriptions_Malformed(t *testing.T) {
	f, srv := newFakeReader(t)
	f.routes["/subscription/list"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subscriptions": [`)
	}

	_, err := newTestClient(srv).ListSubscriptions(context.Background())
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestListSubscriptions_ServerError(t *testing.T) {
	f, srv := newFakeReader(t)
	f.routes["/subscription/list"] = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}

	_, err := newTestClient(srv).ListSubscriptions(context.Background())
	require.ErrorIs(t, err, ErrTransport)
}

func TestExpiredTokenTriggersRelogin(t *testing.T) {
	f, srv := newFakeReader(t)
	var calls atomic.Int32
	f.routes["/tag/list"] = func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"tags":[]}`)
	}

	c := newTestClient(srv)
	_, err := c.ListTags(context.Background())
	require.ErrorIs(t, err, ErrAuthRejected)

	_, err = c.ListTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.logins.Load())
}

func TestFetchUnreadPage_Query(t *testing.T) {
	f, srv := newFakeReader(t)
	var got map[string]string
	f.routes["/stream/contents"] = func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{}
		for k := range q {
			got[k] = q.Get(k)
		}
		fmt.Fprint(w, `{"items":[]}`)
	}
	c := newTestClient(srv)

	_, err := c.FetchUnreadPage(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, ReadingList, got["s"])
	assert.Equal(t, ReadState, got["xt"])
	assert.Equal(t, "1000", got["n"])
	assert.Equal(t, "n", got["r"])
	assert.NotContains(t, got, "ot")
	assert.NotContains(t, got, "c")

	_, err = c.FetchUnreadPage(context.Background(), "P2", 1700000000)
	require.NoError(t, err)
	assert.Equal(t, "P2", got["c"])
	assert.Equal(t, "1700000000", got["ot"])
}

func TestFetchUnreadPage_Items(t *testing.T) {
	f, srv := newFakeReader(t)
	f.routes["/stream/contents"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"user/-/state/com.google/reading-list","updated":1700000100,"continuation":"P2","items":[
			{"id":"tag:google.com,2005:reader/item/000000000000001a","published":1700000000,"title":"Full",
			 "summary":{"content":"short"},"content":{"content":"<p>long</p>"},
			 "canonical":[{"href":"https://blog.example/full"}],"alternate":[{"href":"https://alt.example/full"}],
			 "origin":{"streamId":"feed/1","htmlUrl":"https://blog.example/","title":"Blog"}},
			{"id":"tag:google.com,2005:reader/item/000000000000001b","published":1700000001,"title":"Summary only",
			 "summary":{"content":"just a summary"},
			 "alternate":[{"href":"https://blog.example/alt"}],
			 "origin":{"streamId":"feed/1"}}
		]}`)
	}

	page, err := newTestClient(srv).FetchUnreadPage(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, "P2", page.Continuation)
	require.Len(t, page.Articles, 2)

	assert.Equal(t, Article{
		ID:        "tag:google.com,2005:reader/item/000000000000001a",
		Title:     "Full",
		Link:      "https://blog.example/full",
		Content:   "<p>long</p>",
		FeedID:    "feed/1",
		Published: 1700000000,
	}, page.Articles[0])
	assert.Equal(t, "just a summary", page.Articles[1].Content)
	assert.Equal(t, "https://blog.example/alt", page.Articles[1].Link)
}

func TestFetchUnreadPage_ItemWithoutID(t *testing.T) {
	f, srv := newFakeReader(t)
	f.routes["/stream/contents"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"title":"anonymous"}]}`)
	}

	_, err := newTestClient(srv).FetchUnreadPage(context.Background(), "", 0)
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFetchUnreadIDSnapshot_FollowsContinuation(t *testing.T) {
	f, srv := newFakeReader(t)
	f.routes["/stream/items/ids"] = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("c") {
		case "":
			assert.Equal(t, "10000", r.URL.Query().Get("n"))
			fmt.Fprint(w, `{"itemRefs":[{"id":"26"},{"id":"-1"}],"continuation":"next"}`)
		case "next":
			fmt.Fprint(w, `{"itemRefs":[{"id":"tag:google.com,2005:reader/item/0000000000000100"}]}`)
		}
	}

	ids, err := newTestClient(srv).FetchUnreadIDSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		ident.LongID(26),
		ident.LongID(^uint64(0)),
		ident.LongID(256),
	}, ids)
}

func TestFetchUnreadIDSnapshot_PageLimit(t *testing.T) {
	f, srv := newFakeReader(t)
	var n atomic.Int32
	f.routes["/stream/items/ids"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"itemRefs":[],"continuation":"c%d"}`, n.Add(1))
	}
	c := NewClient(srv.URL, "alice", "secret", Options{HTTPClient: srv.Client(), MaxPages: 3})

	_, err := c.FetchUnreadIDSnapshot(context.Background())
	require.ErrorIs(t, err, ErrPaginationLimit)
	assert.Equal(t, int32(3), n.Load())
}

func TestFetchUnreadIDSnapshot_BadRef(t *testing.T) {
	f, srv := newFakeReader(t)
	f.routes["/stream/items/ids"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"itemRefs":[{"id":"not-a-number"}]}`)
	}

	_, err := newTestClient(srv).FetchUnreadIDSnapshot(context.Background())
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.True(t, errors.Is(err, ident.ErrMalformedIdentifier))
}

func TestSetReadState(t *testing.T) {
	f, srv := newFakeReader(t)
	var form map[string]string
	f.routes["/edit-tag"] = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		fmt.Fprint(w, "OK")
	}
	c := newTestClient(srv)
	id := ident.LongID(26)

	require.NoError(t, c.SetReadState(context.Background(), id, false))
	assert.Equal(t, map[string]string{"i": id, "a": ReadState}, form)

	require.NoError(t, c.SetReadState(context.Background(), id, true))
	assert.Equal(t, map[string]string{"i": id, "r": ReadState}, form)
}

func TestListTags(t *testing.T) {
	f, srv := newFakeReader(t)
	f.routes["/tag/list"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tags":[{"id":"user/-/state/com.google/starred"},{"id":"user/-/label/Tech","type":"folder","unread_count":4}]}`)
	}

	tags, err := newTestClient(srv).ListTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Nil(t, tags[0].UnreadCount)
	assert.Equal(t, "folder", tags[1].Type)
	require.NotNil(t, tags[1].UnreadCount)
	assert.Equal(t, 4, *tags[1].UnreadCount)
}
