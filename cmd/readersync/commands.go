package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matthewjhunter/readersync/internal/config"
	"github.com/spf13/cobra"
)

func dirOf(path string) string {
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle: subscriptions, unread articles, read state",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			result, err := engine.Sync(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			return formatter.OutputSyncResult(result)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show when the cache was last synced",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			last, err := engine.LastSynced()
			if err != nil {
				return err
			}
			if last.IsZero() {
				fmt.Println("Never synced")
				return nil
			}
			fmt.Printf("Last synced %s (%s ago)\n", last.Format(time.RFC3339), time.Since(last).Round(time.Second))
			return nil
		},
	}
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories and feeds with unread counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			tree, err := engine.CategoryTree()
			if err != nil {
				return err
			}
			return formatter.OutputCategoryTree(tree)
		},
	}
}

func feedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feeds [category-id]",
		Short: "List the feeds of a category, or all feeds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			if len(args) == 0 {
				feeds, err := engine.ListFeeds()
				if err != nil {
					return err
				}
				return formatter.OutputFeedList(feeds)
			}
			feeds, err := engine.ListFeedsForCategory(args[0])
			if err != nil {
				return err
			}
			return formatter.OutputFeedList(feeds)
		},
	}
}

func articlesCmd() *cobra.Command {
	var feedID, categoryID string
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List unread articles of a feed or category, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (feedID == "") == (categoryID == "") {
				return errors.New("exactly one of --feed or --category is required")
			}
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			if feedID != "" {
				articles, err := engine.ArticlesForFeed(feedID)
				if err != nil {
					return err
				}
				return formatter.OutputArticleList(articles)
			}
			articles, err := engine.ArticlesForCategory(categoryID)
			if err != nil {
				return err
			}
			return formatter.OutputArticleList(articles)
		},
	}
	cmd.Flags().StringVar(&feedID, "feed", "", "feed id (e.g. feed/12)")
	cmd.Flags().StringVar(&categoryID, "category", "", "category id (e.g. user/-/label/News)")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <article-id>",
		Short: "Show one cached article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			article, err := engine.GetArticle(args[0])
			if err != nil {
				return err
			}
			return formatter.OutputArticle(article)
		},
	}
}

func readCmd() *cobra.Command {
	return markCmd("read <article-id>", "Mark an article as read, remotely then locally", false)
}

func unreadCmd() *cobra.Command {
	return markCmd("unread <article-id>", "Mark an article as unread, remotely then locally", true)
}

func markCmd(use, short string, unread bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			if unread {
				err = engine.MarkUnread(cmd.Context(), args[0])
			} else {
				err = engine.MarkRead(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return formatter.OutputReadState(args[0], unread)
		},
	}
}

func tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the server's tags and folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			tags, err := engine.ListTags(cmd.Context())
			if err != nil {
				return err
			}
			return formatter.OutputTags(tags)
		},
	}
}

func exportOPMLCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export-opml",
		Short: "Write the cached subscriptions as OPML",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			if outPath == "" || outPath == "-" {
				return engine.ExportOPML(os.Stdout)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			if err := engine.ExportOPML(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("Created default config at %s\n", path)
			return nil
		},
	}
}
