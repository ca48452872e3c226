// Package main provides the groupwatch CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"GroupWatch/internal/app"
	"GroupWatch/internal/config"
	"GroupWatch/internal/logging"
	"GroupWatch/internal/ports"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "groupwatch",
		Short:   "Monitor community groups for service-request posts",
		Long:    "Groupwatch scrapes configured group feeds, classifies new posts, and notifies on matching service requests.",
		Version: version,
	}

	rootCmd.SetVersionTemplate("groupwatch version {{.Version}}\n")

	rootCmd.AddCommand(newMonitorCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newPostsCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

// newMonitorCmd runs the continuous monitoring loop until interrupted.
func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run the continuous monitoring loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Run(ctx)
		},
	}
}

// newScanCmd runs exactly one cycle and prints its counters.
func newScanCmd() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scrape cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.Load()
			// One-shot scans may dig deeper than the monitor loop does.
			if depth > 0 {
				for i := range cfg.Sources {
					cfg.Sources[i].Depth = depth
				}
			}
			application, err := buildAppFromConfig(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			stats, err := application.RunOnce(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"scraped=%d duplicates=%d classified=%d notified=%d errors=%d\n",
				stats.Scraped, stats.Duplicates, stats.Classified, stats.Notified, stats.Errors)
			return nil
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "Override page depth for every source")

	return cmd
}

// newPostsCmd lists stored posts, newest first.
func newPostsCmd() *cobra.Command {
	var (
		group   string
		search  string
		onlyNew bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List stored posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			posts, total, err := application.Store().Query(ctx, ports.PostFilter{
				GroupURL: group,
				Search:   search,
				OnlyNew:  onlyNew,
				Limit:    limit,
			})
			if err != nil {
				return fmt.Errorf("query posts: %w", err)
			}

			for _, post := range posts {
				when := post.RawTimestamp
				if !post.PostedAt.IsZero() {
					when = post.PostedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s]  %s  (%s, %s)\n",
					post.PostID, post.Category, post.Title, post.GroupName, when)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d post(s)\n", len(posts), total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "Filter by group URL")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by title or body substring")
	cmd.Flags().BoolVar(&onlyNew, "new", false, "Only posts not yet notified")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of posts to display")

	return cmd
}

// newStatsCmd summarizes the post store.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show post store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			stats, err := application.Store().Stats(ctx)
			if err != nil {
				return fmt.Errorf("load stats: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "total: %d\nnew: %d\n", stats.Total, stats.New)
			for _, gc := range stats.ByGroup {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", gc.GroupName, gc.Count)
			}
			return nil
		},
	}
}

func buildApp(ctx context.Context) (*app.Application, error) {
	return buildAppFromConfig(ctx, config.Load())
}

func buildAppFromConfig(ctx context.Context, cfg config.Config) (*app.Application, error) {
	logger := logging.NewWithOptions(logging.Options{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	return app.New(ctx, cfg, logger)
}
