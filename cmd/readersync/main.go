package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/matthewjhunter/readersync"
	"github.com/matthewjhunter/readersync/internal/config"
	"github.com/matthewjhunter/readersync/internal/output"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	cfg          *config.Config
	outputFormat string
	verbose      bool
	logger       *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "readersync",
		Short:         "Mirror a Google Reader compatible feed service (FreshRSS, Inoreader) into a local cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			setupLogging()
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(feedsCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(unreadCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(exportOPMLCmd())
	rootCmd.AddCommand(initConfigCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load(configPath)
	return err
}

func setupLogging() {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// engineConfig maps the loaded config onto the engine's settings.
func engineConfig(readOnly bool) readersync.EngineConfig {
	return readersync.EngineConfig{
		DBPath:           cfg.Database.Path,
		StatePath:        cfg.Sync.StatePath,
		ServerURL:        cfg.Server.URL,
		Username:         cfg.Server.Username,
		Password:         cfg.Server.Password,
		HTTPTimeout:      cfg.Sync.HTTPTimeout,
		PageSize:         cfg.Sync.PageSize,
		SnapshotPageSize: cfg.Sync.SnapshotPageSize,
		MaxPages:         cfg.Sync.MaxPages,
		DescribeFeeds:    cfg.Sync.DescribeFeeds,
		Logger:           logger,
		ReadOnly:         readOnly,
	}
}

// openEngine opens the engine. Commands that only read the cache pass
// readOnly so they work without credentials.
func openEngine(readOnly bool) (*readersync.Engine, error) {
	if dir := dirOf(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	engine, err := readersync.NewEngine(engineConfig(readOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func newFormatter() (*output.Formatter, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format), nil
}
