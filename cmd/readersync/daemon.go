package main

import (
	"time"

	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run sync in a loop with configurable interval",
		Long: `Continuously sync with the remote service on a timer.
Designed for running as a background service. A failed cycle is logged and
the next cycle starts over from the last committed watermark.
Handles SIGINT/SIGTERM for graceful shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("interval") {
				interval = cfg.Sync.Interval
			}

			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			logger.Info("daemon starting", "interval", interval)

			cycle := 1
			for {
				start := time.Now()
				result, err := engine.Sync(ctx)
				if err != nil {
					if ctx.Err() != nil {
						logger.Info("daemon received shutdown signal, exiting")
						return nil
					}
					logger.Error("sync cycle failed", "cycle", cycle, "error", err)
				} else {
					logger.Info("sync cycle completed",
						"cycle", cycle,
						"new_articles", result.NewArticles,
						"marked_read", result.MarkedRead,
						"took", time.Since(start).Round(time.Millisecond))
				}
				cycle++

				// Wait for the next tick or a shutdown signal.
				timer := time.NewTimer(interval)
				select {
				case <-ctx.Done():
					timer.Stop()
					logger.Info("daemon received shutdown signal, exiting")
					return nil
				case <-timer.C:
				}
			}
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 15*time.Minute, "duration between sync cycles (default from sync.interval)")
	return cmd
}
