package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/platemetrics/review-crawler/internal/adapter"
	"github.com/platemetrics/review-crawler/internal/adapter/google"
	"github.com/platemetrics/review-crawler/internal/adapter/tripadvisor"
	"github.com/platemetrics/review-crawler/internal/adapter/yelp"
	"github.com/platemetrics/review-crawler/internal/app"
	"github.com/platemetrics/review-crawler/internal/clock/system"
	"github.com/platemetrics/review-crawler/internal/crawler"
	collyfetcher "github.com/platemetrics/review-crawler/internal/fetcher/colly"
	"github.com/platemetrics/review-crawler/internal/id/uuid"
	"github.com/platemetrics/review-crawler/internal/policy/ratelimit"
)

// newCrawlCmd creates and configures the 'crawl' subcommand. It crawls one
// or more restaurant URLs on the given platform and reconciles the results
// into the database.
func newCrawlCmd() *cobra.Command {
	var (
		maxReviews int
		initDB     bool
	)

	cmd := &cobra.Command{
		Use:   "crawl <platform> <url> [url...]",
		Short: "Crawls restaurant pages and stores their metadata and reviews",
		Long: `Fetches each restaurant URL on the named platform (yelp, google,
tripadvisor, or all), extracts metadata and reviews, and upserts them into
the database. With platform 'all' each URL is routed to the adapter whose
domain matches. A failing URL never aborts the rest of the batch.`,
		Args: cobra.MinimumNArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := crawler.ParsePlatform(args[0])
			if err != nil {
				return err
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			engine := buildEngine(appInstance)
			result, err := engine.Run(cmd.Context(), crawler.RunRequest{
				Platform:   platform,
				URLs:       args[1:],
				MaxReviews: maxReviews,
				InitDB:     initDB,
			})
			if err != nil {
				return err
			}

			printBatchSummary(cmd, result)
			if failed := result.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d urls failed", failed, len(result.Outcomes))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxReviews, "max-reviews", 0, "max reviews per restaurant (0 uses the configured default)")
	cmd.Flags().BoolVar(&initDB, "init-db", false, "create database tables before crawling")

	return cmd
}

func buildEngine(a *app.App) *crawler.Engine {
	cfg := a.Config

	registry := adapter.NewRegistry(
		yelp.New(),
		google.New(),
		tripadvisor.New(),
	)
	limiter := ratelimit.New(ratelimit.Config{MinInterval: cfg.MinRequestDelay()})
	policy := crawler.NewExponentialRetryPolicy(
		cfg.HTTP.MaxRetries,
		cfg.BackoffInitial(),
		cfg.BackoffMax(),
	)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		Timeout:       cfg.RequestTimeout(),
		RespectRobots: cfg.Crawler.RespectRobots,
	}, limiter, policy, crawler.TimerSleeper{}, a.Logger)

	return crawler.NewEngine(
		crawler.EngineConfig{
			Concurrency:         cfg.Crawler.Concurrency,
			SnapshotPrefix:      cfg.Storage.Prefix,
			SnapshotContentType: cfg.Storage.ContentType,
			MaxReviews:          cfg.Crawler.MaxReviewsDefault,
			Topic:               cfg.PubSub.TopicName,
		},
		fetcher,
		registry,
		a.Store,
		a.Snapshots,
		a.Publisher,
		system.New(),
		uuid.NewUUIDGenerator(),
		a.Logger,
	)
}

func printBatchSummary(cmd *cobra.Command, result crawler.BatchResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d succeeded, %d failed in %s\n",
		result.RunID, result.Succeeded(), result.Failed(),
		result.Finished.Sub(result.Started).Round(time.Millisecond))
	for _, o := range result.Outcomes {
		if o.Succeeded() {
			fmt.Fprintf(out, "  ok   %-11s %s (%q, %d reviews: %d new, %d known)\n",
				o.Platform, o.URL, o.RestaurantName,
				o.ReviewsExtracted, o.ReviewsInserted, o.ReviewsSkipped)
		} else {
			fmt.Fprintf(out, "  fail %-11s %s: %v\n", o.Platform, o.URL, o.Err)
		}
	}
}
