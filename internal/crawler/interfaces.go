package crawler

import (
	"context"
	"net/url"
	"time"
)

// Fetcher retrieves a URL and returns the page body plus metadata.
// Implementations own retries and per-host rate limiting.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Adapter extracts canonical records from one platform's markup. Callers
// never branch on platform identity outside adapter selection.
type Adapter interface {
	Platform() Platform
	Match(u *url.URL) bool
	ReviewsURL(pageURL string) string
	ExtractRestaurant(content []byte, sourceURL string) (Restaurant, error)
	ExtractReviews(content []byte, sourceURL string, maxReviews int) ([]Review, error)
}

// AdapterRegistry resolves adapters by platform identifier or by URL domain.
type AdapterRegistry interface {
	Get(p Platform) (Adapter, bool)
	Resolve(rawURL string) (Adapter, bool)
}

// Store is the reconciliation layer: upserts keyed by natural key, atomic
// with respect to concurrent writers.
type Store interface {
	// InitSchema creates tables and constraints; it is idempotent.
	InitSchema(ctx context.Context) error
	// UpsertRestaurant inserts or updates by (source_platform, source_id)
	// and returns the row id either way.
	UpsertRestaurant(ctx context.Context, r Restaurant) (int64, error)
	// UpsertReviews inserts reviews not yet stored for the restaurant;
	// duplicates by natural key are skipped, per-record failures recorded.
	UpsertReviews(ctx context.Context, restaurantID int64, reviews []Review) (ReviewBatchResult, error)
	// RecomputeAverageRating sets the restaurant's average_rating to the
	// mean of its stored review ratings, rounded to one decimal place.
	// Restaurants with no stored reviews keep their current value.
	RecomputeAverageRating(ctx context.Context, restaurantID int64) error
	Close()
}

// SnapshotSink writes raw page artifacts and returns a URI.
type SnapshotSink interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes ingest events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Sleeper abstracts backoff waits so tests run without real delays.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// RetryPolicy decides whether and when to retry a failed fetch.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
