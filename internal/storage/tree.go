package storage

type FeedNode struct {
	Feed
	Unread int `json:"unread"`
}

type CategoryNode struct {
	Category
	Unread int        `json:"unread"`
	Feeds  []FeedNode `json:"feeds"`
}

// ListFeeds returns every stored feed ordered by title.
func (s *Store) ListFeeds() ([]Feed, error) {
	nodes, err := s.feedNodes()
	if err != nil {
		return nil, err
	}
	feeds := make([]Feed, len(nodes))
	for i, n := range nodes {
		feeds[i] = n.Feed
	}
	return feeds, nil
}

func (s *Store) feedNodes() ([]FeedNode, error) {
	rows, err := s.db.Query(
		`SELECT f.id, f.title, f.rss_link, f.link, f.description, f.category_id,
		        (SELECT COUNT(*) FROM articles a WHERE a.feed_id = f.id AND a.unread = 1)
		 FROM feeds f ORDER BY f.title, f.id`,
	)
	if err != nil {
		return nil, storageErr("list feeds", err)
	}
	defer rows.Close()

	var nodes []FeedNode
	for rows.Next() {
		var n FeedNode
		if err := rows.Scan(&n.ID, &n.Title, &n.FeedURL, &n.SiteURL, &n.Description, &n.CategoryID, &n.Unread); err != nil {
			return nil, storageErr("scan feed", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list feeds", err)
	}
	return nodes, nil
}

// Tree returns every category with its feeds and unread counts, ordered by
// label. Feeds whose category is not stored are collected under a trailing
// node with an empty category id. Categories without feeds are included.
func (s *Store) Tree() ([]CategoryNode, error) {
	cats, err := s.ListCategories()
	if err != nil {
		return nil, err
	}
	feeds, err := s.feedNodes()
	if err != nil {
		return nil, err
	}

	tree := make([]CategoryNode, len(cats))
	index := make(map[string]int, len(cats))
	for i, c := range cats {
		tree[i] = CategoryNode{Category: c}
		index[c.ID] = i
	}

	var orphans CategoryNode
	for _, f := range feeds {
		node := &orphans
		if i, ok := index[f.CategoryID]; ok {
			node = &tree[i]
		}
		node.Feeds = append(node.Feeds, f)
		node.Unread += f.Unread
	}
	if len(orphans.Feeds) > 0 {
		tree = append(tree, orphans)
	}
	return tree, nil
}
