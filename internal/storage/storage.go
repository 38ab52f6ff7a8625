package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/matthewjhunter/readersync/internal/ident"
	_ "modernc.org/sqlite"
)

var (
	// ErrStorage wraps every failure of the underlying database.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned by point lookups and updates that match no row.
	ErrNotFound = errors.New("not found")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Store is the durable local mirror of the remote reader account. It holds a
// single long-lived connection, so writes are serialized and each operation
// is atomic with respect to readers.
type Store struct {
	db *sql.DB
}

type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Feed struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	FeedURL     string `json:"feed_url"`
	SiteURL     string `json:"site_url"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
}

type Article struct {
	ID          string `json:"id"`
	ShortID     uint64 `json:"short_id"`
	Link        string `json:"link"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Unread      bool   `json:"unread"`
	FeedID      string `json:"feed_id"`
	PubDate     int64  `json:"pub_date"`
}

// NewStore opens (or creates) the SQLite database at dbPath and applies the schema.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageErr("open database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, storageErr("set busy timeout", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, storageErr("initialize schema", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertCategory inserts a category unless one with the same id exists.
// Existing rows are never updated.
func (s *Store) UpsertCategory(c Category) error {
	_, err := s.db.Exec(
		"INSERT INTO categories (id, label) VALUES (?, ?) ON CONFLICT(id) DO NOTHING",
		c.ID, c.Label,
	)
	if err != nil {
		return storageErr("upsert category", err)
	}
	return nil
}

// UpsertFeed inserts a feed unless its id is already stored. A different id
// with a feed URL already in use is a constraint violation. Reports whether
// a row was inserted.
func (s *Store) UpsertFeed(f Feed) (bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO feeds (id, title, rss_link, link, description, category_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		f.ID, f.Title, f.FeedURL, f.SiteURL, f.Description, f.CategoryID,
	)
	if err != nil {
		return false, storageErr("upsert feed", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, storageErr("upsert feed", err)
	}
	return n > 0, nil
}

// FeedExists reports whether a feed with the given id is stored.
func (s *Store) FeedExists(feedID string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM feeds WHERE id = ?", feedID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("lookup feed", err)
	}
	return true, nil
}

// UpsertArticle inserts a newly discovered article as unread, deriving its
// short id from the article id. An article whose id is already stored is left
// untouched: remote edits to seen articles are never applied. Reports whether
// a row was inserted.
func (s *Store) UpsertArticle(a Article) (bool, error) {
	shortID, err := ident.ShortID(a.ID)
	if err != nil {
		return false, err
	}
	result, err := s.db.Exec(
		`INSERT INTO articles (id, short_id, link, title, description, content, unread, feed_id, pub_date)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		a.ID, int64(shortID), a.Link, a.Title, a.Description, a.Content, a.FeedID, a.PubDate,
	)
	if err != nil {
		return false, storageErr("upsert article", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, storageErr("upsert article", err)
	}
	return n > 0, nil
}

// ListCategories returns all categories ordered by label.
func (s *Store) ListCategories() ([]Category, error) {
	rows, err := s.db.Query("SELECT id, label FROM categories ORDER BY label, id")
	if err != nil {
		return nil, storageErr("list categories", err)
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Label); err != nil {
			return nil, storageErr("scan category", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list categories", err)
	}
	return cats, nil
}

// ListFeedsForCategory returns the feeds whose (first) category is categoryID.
func (s *Store) ListFeedsForCategory(categoryID string) ([]Feed, error) {
	rows, err := s.db.Query(
		`SELECT id, title, rss_link, link, description, category_id
		 FROM feeds WHERE category_id = ? ORDER BY title, id`,
		categoryID,
	)
	if err != nil {
		return nil, storageErr("list feeds", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.ID, &f.Title, &f.FeedURL, &f.SiteURL, &f.Description, &f.CategoryID); err != nil {
			return nil, storageErr("scan feed", err)
		}
		feeds = append(feeds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list feeds", err)
	}
	return feeds, nil
}

// UnreadCountForFeed counts unread articles of one feed.
func (s *Store) UnreadCountForFeed(feedID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM articles WHERE feed_id = ? AND unread = 1",
		feedID,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count unread for feed", err)
	}
	return n, nil
}

// UnreadCountForCategory counts unread articles across the feeds of a category.
func (s *Store) UnreadCountForCategory(categoryID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM articles a
		 JOIN feeds f ON f.id = a.feed_id
		 WHERE f.category_id = ? AND a.unread = 1`,
		categoryID,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count unread for category", err)
	}
	return n, nil
}

const articleColumns = "a.id, a.short_id, a.link, a.title, a.description, a.content, a.unread, a.feed_id, a.pub_date"

// ArticlesForFeed returns the unread articles of a feed, newest first.
func (s *Store) ArticlesForFeed(feedID string) ([]Article, error) {
	return s.queryArticles("articles for feed",
		`SELECT `+articleColumns+` FROM articles a
		 WHERE a.feed_id = ? AND a.unread = 1
		 ORDER BY a.pub_date DESC, a.short_id DESC`,
		feedID,
	)
}

// ArticlesForCategory returns the unread articles of every feed in a category, newest first.
func (s *Store) ArticlesForCategory(categoryID string) ([]Article, error) {
	return s.queryArticles("articles for category",
		`SELECT `+articleColumns+` FROM articles a
		 JOIN feeds f ON f.id = a.feed_id
		 WHERE f.category_id = ? AND a.unread = 1
		 ORDER BY a.pub_date DESC, a.short_id DESC`,
		categoryID,
	)
}

// GetArticle returns a single article regardless of its read state.
func (s *Store) GetArticle(articleID string) (*Article, error) {
	articles, err := s.queryArticles("get article",
		`SELECT `+articleColumns+` FROM articles a WHERE a.id = ?`,
		articleID,
	)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("article %s: %w", articleID, ErrNotFound)
	}
	return &articles[0], nil
}

func (s *Store) queryArticles(op, query string, args ...any) ([]Article, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		var shortID int64
		if err := rows.Scan(&a.ID, &shortID, &a.Link, &a.Title, &a.Description,
			&a.Content, &a.Unread, &a.FeedID, &a.PubDate); err != nil {
			return nil, storageErr("scan article", err)
		}
		a.ShortID = uint64(shortID)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return articles, nil
}

// SetReadState sets the unread flag of one article.
func (s *Store) SetReadState(articleID string, unread bool) error {
	result, err := s.db.Exec("UPDATE articles SET unread = ? WHERE id = ?", unread, articleID)
	if err != nil {
		return storageErr("set read state", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return storageErr("set read state", err)
	}
	if n == 0 {
		return fmt.Errorf("article %s: %w", articleID, ErrNotFound)
	}
	return nil
}

// ReconcileUnreadExcept marks every unread article whose id is absent from
// unreadIDs as read, in one transaction. unreadIDs is the remote's complete
// set of currently unread item ids; duplicates are harmless. Articles listed
// in unreadIDs are left as they are, so the sweep only ever moves articles
// from unread to read. Returns the number of articles marked read.
func (s *Store) ReconcileUnreadExcept(unreadIDs []string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, storageErr("begin reconcile", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM unread_snapshot"); err != nil {
		return 0, storageErr("clear unread snapshot", err)
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO unread_snapshot (id) VALUES (?)")
	if err != nil {
		return 0, storageErr("prepare unread snapshot", err)
	}
	defer stmt.Close()

	for _, id := range unreadIDs {
		shortID, err := ident.ShortID(id)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.Exec(int64(shortID)); err != nil {
			return 0, storageErr("fill unread snapshot", err)
		}
	}

	result, err := tx.Exec(
		`UPDATE articles SET unread = 0
		 WHERE unread = 1 AND short_id NOT IN (SELECT id FROM unread_snapshot)`,
	)
	if err != nil {
		return 0, storageErr("reconcile unread", err)
	}
	marked, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("reconcile unread", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit reconcile", err)
	}
	return marked, nil
}
