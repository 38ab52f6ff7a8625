package storage

// Schema creates the local mirror. Remote ids are opaque strings and serve as
// primary keys; articles.short_id is derived from the id and exists only so the
// unread reconciliation can compare integers.
const Schema = `
CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    label TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feeds (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    rss_link TEXT NOT NULL UNIQUE,
    link TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    category_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_feeds_category ON feeds(category_id);

CREATE TABLE IF NOT EXISTS articles (
    id TEXT PRIMARY KEY,
    short_id INTEGER NOT NULL UNIQUE,
    link TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    unread BOOLEAN NOT NULL DEFAULT 1,
    feed_id TEXT NOT NULL,
    pub_date INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_articles_feed_unread ON articles(feed_id, unread);
CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date DESC);

CREATE TABLE IF NOT EXISTS unread_snapshot (
    id INTEGER PRIMARY KEY
);
`
