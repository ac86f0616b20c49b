// Package crawler defines core types shared across subsystems.
package crawler

import (
	"fmt"
	"net/http"
	"time"
)

// Platform identifies the review source a record was extracted from.
type Platform string

// Platform values persisted in the source_platform columns.
const (
	PlatformYelp        Platform = "yelp"
	PlatformGoogle      Platform = "google"
	PlatformTripAdvisor Platform = "tripadvisor"

	// PlatformAll is a CLI selector only; it never appears in stored rows.
	PlatformAll Platform = "all"
)

// ParsePlatform validates a raw platform selector from the CLI.
func ParsePlatform(raw string) (Platform, error) {
	switch p := Platform(raw); p {
	case PlatformYelp, PlatformGoogle, PlatformTripAdvisor, PlatformAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q (want yelp, google, tripadvisor or all)", raw)
	}
}

// Restaurant is the canonical restaurant record, independent of source shape.
// (SourcePlatform, SourceID) is the natural key: a restaurant crawled twice on
// the same platform updates the same row.
type Restaurant struct {
	Name           string
	Address        string
	City           string
	State          string
	PostalCode     string
	Phone          string
	Website        string
	CuisineType    string
	PriceRange     string
	AverageRating  *float64
	SourceURL      string
	SourceID       string
	SourcePlatform Platform
	LastUpdated    time.Time
}

// Review is the canonical review record. (SourcePlatform, SourceID) is the
// natural key; review content is immutable once stored.
type Review struct {
	Rating         float64
	ReviewText     string
	ReviewDate     time.Time
	ReviewerName   string
	ReviewerID     string
	HelpfulCount   int
	SourceURL      string
	SourceID       string
	SourcePlatform Platform
	CrawlDate      time.Time
}

// Page is the result of one successful fetch.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// RunRequest captures one crawl batch as requested by the CLI.
type RunRequest struct {
	Platform   Platform
	URLs       []string
	MaxReviews int
	InitDB     bool
}

// URLOutcome records the result of one URL's pipeline. Err is nil on success.
type URLOutcome struct {
	URL              string
	Platform         Platform
	RestaurantName   string
	RestaurantID     int64
	ReviewsExtracted int
	ReviewsInserted  int
	ReviewsSkipped   int
	Err              error
}

// Succeeded reports whether the URL's pipeline completed.
func (o URLOutcome) Succeeded() bool {
	return o.Err == nil
}

// BatchResult summarizes a whole run: one outcome per requested URL.
type BatchResult struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Outcomes []URLOutcome
}

// Succeeded counts URLs whose pipeline completed.
func (b BatchResult) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts URLs whose pipeline reported a failure.
func (b BatchResult) Failed() int {
	return len(b.Outcomes) - b.Succeeded()
}

// ReviewBatchResult reports per-record outcomes from one review upsert batch.
type ReviewBatchResult struct {
	Inserted int
	Skipped  int
	Failures []ReviewFailure
}

// ReviewFailure records a single-record write failure inside a batch.
type ReviewFailure struct {
	SourceID string
	Err      error
}
