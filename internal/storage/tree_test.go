package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree(t *testing.T) {
	s := newTestStore(t)
	seedFeed(t, s, "feed/b", "cat/news")
	seedFeed(t, s, "feed/a", "cat/news")
	seedFeed(t, s, "feed/c", "cat/tech")
	require.NoError(t, s.UpsertCategory(Category{ID: "cat/empty", Label: "cat/empty"}))
	_, err := s.UpsertFeed(Feed{ID: "feed/loose", Title: "Loose", FeedURL: "https://loose.example/rss"})
	require.NoError(t, err)

	addArticle(t, s, 1, "feed/a", 100)
	addArticle(t, s, 2, "feed/a", 101)
	read := addArticle(t, s, 3, "feed/b", 102)
	require.NoError(t, s.SetReadState(read, false))
	addArticle(t, s, 4, "feed/c", 103)
	addArticle(t, s, 5, "feed/loose", 104)

	tree, err := s.Tree()
	require.NoError(t, err)
	require.Len(t, tree, 4)

	assert.Equal(t, "cat/empty", tree[0].ID)
	assert.Empty(t, tree[0].Feeds)
	assert.Zero(t, tree[0].Unread)

	news := tree[1]
	assert.Equal(t, "cat/news", news.ID)
	assert.Equal(t, 2, news.Unread)
	require.Len(t, news.Feeds, 2)
	assert.Equal(t, "feed/a", news.Feeds[0].ID)
	assert.Equal(t, 2, news.Feeds[0].Unread)
	assert.Equal(t, "feed/b", news.Feeds[1].ID)
	assert.Zero(t, news.Feeds[1].Unread)

	assert.Equal(t, "cat/tech", tree[2].ID)
	assert.Equal(t, 1, tree[2].Unread)

	orphans := tree[3]
	assert.Empty(t, orphans.ID)
	require.Len(t, orphans.Feeds, 1)
	assert.Equal(t, "feed/loose", orphans.Feeds[0].ID)
	assert.Equal(t, 1, orphans.Unread)
}

func TestTree_Empty(t *testing.T) {
	tree, err := newTestStore(t).Tree()
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestListFeeds(t *testing.T) {
	s := newTestStore(t)
	seedFeed(t, s, "feed/2", "cat/x")
	seedFeed(t, s, "feed/1", "cat/y")

	feeds, err := s.ListFeeds()
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "feed/1", feeds[0].ID)
	assert.Equal(t, "cat/y", feeds[0].CategoryID)
}
