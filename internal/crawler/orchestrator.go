package crawler

import (
	"context"
	"fmt"
	"path"
	"sync"

	"go.uber.org/zap"

	"github.com/platemetrics/review-crawler/internal/telemetry"
)

// DefaultMaxReviews caps reviews per restaurant when the caller gives none.
const DefaultMaxReviews = 100

// EngineConfig controls batch execution.
type EngineConfig struct {
	// Concurrency bounds the worker pool processing URLs.
	Concurrency int
	// SnapshotPrefix is the object prefix for raw page snapshots.
	SnapshotPrefix string
	// SnapshotContentType is stored with archived page bodies.
	SnapshotContentType string
	// MaxReviews caps reviews per restaurant when the request gives none.
	MaxReviews int
	// Topic is the publisher topic for ingest events; empty disables publishing.
	Topic string
}

// Engine drives adapters over target URLs and hands canonical records to the
// store. Per-URL failures never abort the batch.
type Engine struct {
	cfg       EngineConfig
	fetcher   Fetcher
	adapters  AdapterRegistry
	store     Store
	snapshots SnapshotSink
	publisher Publisher
	clock     Clock
	ids       IDGenerator
	logger    *zap.Logger
}

// NewEngine constructs an Engine. Snapshots and publisher may be nil.
func NewEngine(
	cfg EngineConfig,
	fetcher Fetcher,
	adapters AdapterRegistry,
	store Store,
	snapshots SnapshotSink,
	publisher Publisher,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "pages"
	}
	if cfg.SnapshotContentType == "" {
		cfg.SnapshotContentType = "text/html; charset=utf-8"
	}
	if cfg.MaxReviews <= 0 {
		cfg.MaxReviews = DefaultMaxReviews
	}
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		adapters:  adapters,
		store:     store,
		snapshots: snapshots,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

// Run executes one crawl batch. Schema initialization failure is fatal;
// everything after that is recorded per URL in the BatchResult.
func (e *Engine) Run(ctx context.Context, req RunRequest) (BatchResult, error) {
	runID, err := e.ids.NewID()
	if err != nil {
		return BatchResult{}, fmt.Errorf("generate run id: %w", err)
	}
	result := BatchResult{RunID: runID, Started: e.clock.Now()}

	if req.InitDB {
		if err := e.store.InitSchema(ctx); err != nil {
			return result, fmt.Errorf("init schema: %w", err)
		}
		e.logger.Info("Schema initialized", zap.String("run_id", runID))
	}

	if req.MaxReviews <= 0 {
		req.MaxReviews = e.cfg.MaxReviews
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	sem := make(chan struct{}, e.cfg.Concurrency)

	for _, rawURL := range req.URLs {
		if ctx.Err() != nil {
			// Stop issuing new work; in-flight pipelines finish on their own.
			mu.Lock()
			result.Outcomes = append(result.Outcomes, URLOutcome{
				URL: rawURL,
				Err: fmt.Errorf("run canceled before dispatch: %w", ctx.Err()),
			})
			mu.Unlock()
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(rawURL string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcome := e.crawlURL(ctx, req, runID, rawURL)
			mu.Lock()
			result.Outcomes = append(result.Outcomes, outcome)
			mu.Unlock()
		}(rawURL)
	}

	wg.Wait()
	result.Finished = e.clock.Now()

	e.logger.Info("Batch finished",
		zap.String("run_id", runID),
		zap.Int("succeeded", result.Succeeded()),
		zap.Int("failed", result.Failed()),
	)
	return result, nil
}

// crawlURL runs the full pipeline for one URL: fetch, extract restaurant,
// upsert restaurant, fetch and extract reviews, upsert reviews, recompute
// the rating. The restaurant upsert is durably visible before any review
// write is issued.
func (e *Engine) crawlURL(ctx context.Context, req RunRequest, runID, rawURL string) URLOutcome {
	outcome := URLOutcome{URL: rawURL}

	ad, err := e.selectAdapter(req.Platform, rawURL)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Platform = ad.Platform()

	page, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		telemetry.PagesFetched.WithLabelValues(string(ad.Platform()), "error").Inc()
		outcome.Err = fmt.Errorf("restaurant page: %w", err)
		return outcome
	}
	telemetry.PagesFetched.WithLabelValues(string(ad.Platform()), "ok").Inc()
	e.saveSnapshot(ctx, ad.Platform(), rawURL, page.Body)

	restaurant, err := ad.ExtractRestaurant(page.Body, rawURL)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	restaurant.LastUpdated = e.clock.Now()

	restaurantID, err := e.store.UpsertRestaurant(ctx, restaurant)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	telemetry.RestaurantsUpserted.WithLabelValues(string(ad.Platform())).Inc()
	outcome.RestaurantName = restaurant.Name
	outcome.RestaurantID = restaurantID

	reviewsURL := ad.ReviewsURL(rawURL)
	reviewsBody := page.Body
	if reviewsURL != rawURL {
		reviewsPage, err := e.fetcher.Fetch(ctx, reviewsURL)
		if err != nil {
			telemetry.PagesFetched.WithLabelValues(string(ad.Platform()), "error").Inc()
			// The restaurant row is already persisted and valid on its own.
			outcome.Err = fmt.Errorf("reviews page: %w", err)
			return outcome
		}
		telemetry.PagesFetched.WithLabelValues(string(ad.Platform()), "ok").Inc()
		e.saveSnapshot(ctx, ad.Platform(), reviewsURL, reviewsPage.Body)
		reviewsBody = reviewsPage.Body
	}

	reviews, err := ad.ExtractReviews(reviewsBody, reviewsURL, req.MaxReviews)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.ReviewsExtracted = len(reviews)

	crawlDate := e.clock.Now()
	for i := range reviews {
		reviews[i].CrawlDate = crawlDate
	}

	batch, err := e.store.UpsertReviews(ctx, restaurantID, reviews)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.ReviewsInserted = batch.Inserted
	outcome.ReviewsSkipped = batch.Skipped
	telemetry.ReviewsInserted.WithLabelValues(string(ad.Platform())).Add(float64(batch.Inserted))
	for _, f := range batch.Failures {
		e.logger.Warn("Review write failed",
			zap.String("run_id", runID),
			zap.String("url", rawURL),
			zap.String("source_id", f.SourceID),
			zap.Error(f.Err),
		)
	}

	if err := e.store.RecomputeAverageRating(ctx, restaurantID); err != nil {
		outcome.Err = err
		return outcome
	}

	e.publishEvent(ctx, runID, ad.Platform(), restaurant, batch)
	return outcome
}

func (e *Engine) selectAdapter(platform Platform, rawURL string) (Adapter, error) {
	if platform == PlatformAll {
		ad, ok := e.adapters.Resolve(rawURL)
		if !ok {
			return nil, fmt.Errorf("no adapter matches %s", rawURL)
		}
		return ad, nil
	}
	ad, ok := e.adapters.Get(platform)
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %s", platform)
	}
	return ad, nil
}

// saveSnapshot archives the raw page body. Snapshot failures are logged and
// never affect the pipeline.
func (e *Engine) saveSnapshot(ctx context.Context, platform Platform, rawURL string, body []byte) {
	if e.snapshots == nil || len(body) == 0 {
		return
	}
	name := path.Join(
		e.cfg.SnapshotPrefix,
		e.clock.Now().Format("2006-01-02"),
		string(platform),
		fmt.Sprintf("%s.html", hashContent(body)),
	)
	if _, err := e.snapshots.PutObject(ctx, name, e.cfg.SnapshotContentType, body); err != nil {
		e.logger.Warn("Snapshot save failed", zap.String("url", rawURL), zap.Error(err))
	}
}

// publishEvent emits one ingest event per persisted restaurant when a
// publisher and topic are configured.
func (e *Engine) publishEvent(ctx context.Context, runID string, platform Platform, r Restaurant, batch ReviewBatchResult) {
	if e.publisher == nil || e.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"run_id":           runID,
		"platform":         string(platform),
		"source_id":        r.SourceID,
		"restaurant":       r.Name,
		"reviews_inserted": batch.Inserted,
		"reviews_skipped":  batch.Skipped,
		"timestamp":        e.clock.Now().UTC(),
	}
	if _, err := e.publisher.Publish(ctx, e.cfg.Topic, payload); err != nil {
		e.logger.Warn("Ingest event publish failed",
			zap.String("run_id", runID),
			zap.String("source_id", r.SourceID),
			zap.Error(err),
		)
	}
}
