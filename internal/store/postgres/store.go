// Package postgres provides the Postgres-backed reconciliation layer.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platemetrics/review-crawler/internal/crawler"
)

// Config controls the Postgres connection pool and write policy.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// RefreshCrawlDate updates crawl_date on reviews already stored.
	// Review content itself is never overwritten.
	RefreshCrawlDate bool
}

// execQuerier is the subset of pgxpool.Pool the store needs; pgxmock pools
// satisfy it in tests.
type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists canonical restaurants and reviews, deduplicating on the
// (source_platform, source_id) natural key.
type Store struct {
	pool             execQuerier
	refreshCrawlDate bool
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, refreshCrawlDate: cfg.RefreshCrawlDate}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool execQuerier, refreshCrawlDate bool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool, refreshCrawlDate: refreshCrawlDate}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS restaurants (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL,
	address         TEXT,
	city            TEXT,
	state           TEXT,
	postal_code     TEXT,
	phone           TEXT,
	website         TEXT,
	cuisine_type    TEXT,
	price_range     TEXT,
	average_rating  DOUBLE PRECISION,
	source_url      TEXT,
	source_id       TEXT NOT NULL,
	source_platform TEXT NOT NULL,
	last_updated    TIMESTAMPTZ,
	UNIQUE (source_platform, source_id)
);

CREATE TABLE IF NOT EXISTS reviews (
	id              BIGSERIAL PRIMARY KEY,
	restaurant_id   BIGINT NOT NULL REFERENCES restaurants(id),
	rating          DOUBLE PRECISION NOT NULL,
	review_text     TEXT,
	review_date     TIMESTAMPTZ,
	reviewer_name   TEXT,
	reviewer_id     TEXT,
	helpful_count   INTEGER DEFAULT 0,
	source_url      TEXT,
	source_id       TEXT NOT NULL,
	source_platform TEXT NOT NULL,
	crawl_date      TIMESTAMPTZ,
	UNIQUE (source_platform, source_id)
);
`

// InitSchema creates the tables and unique constraints. It is idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return &crawler.StoreError{Op: "init schema", Err: err}
	}
	return nil
}

const upsertRestaurantSQL = `
INSERT INTO restaurants (
	name, address, city, state, postal_code, phone, website,
	cuisine_type, price_range, average_rating, source_url,
	source_id, source_platform, last_updated
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (source_platform, source_id) DO UPDATE SET
	name            = EXCLUDED.name,
	address         = EXCLUDED.address,
	city            = EXCLUDED.city,
	state           = EXCLUDED.state,
	postal_code     = EXCLUDED.postal_code,
	phone           = EXCLUDED.phone,
	website         = EXCLUDED.website,
	cuisine_type    = EXCLUDED.cuisine_type,
	price_range     = EXCLUDED.price_range,
	average_rating  = COALESCE(EXCLUDED.average_rating, restaurants.average_rating),
	source_url      = EXCLUDED.source_url,
	last_updated    = EXCLUDED.last_updated
RETURNING id`

// UpsertRestaurant inserts or updates by natural key in a single statement,
// so concurrent crawls of the same restaurant cannot create duplicates.
func (s *Store) UpsertRestaurant(ctx context.Context, r crawler.Restaurant) (int64, error) {
	if r.SourceID == "" || r.SourcePlatform == "" {
		return 0, &crawler.StoreError{Op: "upsert restaurant", Err: fmt.Errorf("natural key is required")}
	}
	var id int64
	err := s.pool.QueryRow(ctx, upsertRestaurantSQL,
		r.Name,
		r.Address,
		r.City,
		r.State,
		r.PostalCode,
		r.Phone,
		r.Website,
		r.CuisineType,
		r.PriceRange,
		r.AverageRating,
		r.SourceURL,
		r.SourceID,
		string(r.SourcePlatform),
		r.LastUpdated,
	).Scan(&id)
	if err != nil {
		return 0, &crawler.StoreError{
			Op:  "upsert restaurant",
			Key: fmt.Sprintf("%s/%s", r.SourcePlatform, r.SourceID),
			Err: err,
		}
	}
	return id, nil
}

const insertReviewSQL = `
INSERT INTO reviews (
	restaurant_id, rating, review_text, review_date, reviewer_name,
	reviewer_id, helpful_count, source_url, source_id, source_platform,
	crawl_date
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (source_platform, source_id) DO NOTHING
RETURNING id`

const refreshCrawlDateSQL = `
UPDATE reviews SET crawl_date = $1
WHERE source_platform = $2 AND source_id = $3`

// UpsertReviews inserts each review not yet stored. Duplicates by natural
// key are skipped; review content is never overwritten, though crawl_date
// may be refreshed on policy. Single-record failures are recorded and do not
// abort sibling records.
func (s *Store) UpsertReviews(ctx context.Context, restaurantID int64, reviews []crawler.Review) (crawler.ReviewBatchResult, error) {
	var result crawler.ReviewBatchResult
	for _, rv := range reviews {
		if err := ctx.Err(); err != nil {
			return result, &crawler.StoreError{Op: "upsert reviews", Err: err}
		}
		var id int64
		err := s.pool.QueryRow(ctx, insertReviewSQL,
			restaurantID,
			rv.Rating,
			rv.ReviewText,
			nullableTime(rv.ReviewDate),
			rv.ReviewerName,
			rv.ReviewerID,
			rv.HelpfulCount,
			rv.SourceURL,
			rv.SourceID,
			string(rv.SourcePlatform),
			rv.CrawlDate,
		).Scan(&id)
		switch {
		case err == nil:
			result.Inserted++
		case errors.Is(err, pgx.ErrNoRows):
			result.Skipped++
			if s.refreshCrawlDate {
				if _, uerr := s.pool.Exec(ctx, refreshCrawlDateSQL,
					rv.CrawlDate, string(rv.SourcePlatform), rv.SourceID,
				); uerr != nil {
					result.Failures = append(result.Failures, crawler.ReviewFailure{SourceID: rv.SourceID, Err: uerr})
				}
			}
		default:
			result.Failures = append(result.Failures, crawler.ReviewFailure{SourceID: rv.SourceID, Err: err})
		}
	}
	return result, nil
}

const recomputeRatingSQL = `
UPDATE restaurants SET average_rating = sub.avg_rating
FROM (
	SELECT restaurant_id, ROUND(AVG(rating)::numeric, 1)::double precision AS avg_rating
	FROM reviews
	WHERE restaurant_id = $1
	GROUP BY restaurant_id
) AS sub
WHERE restaurants.id = sub.restaurant_id`

// RecomputeAverageRating sets average_rating to the mean of the stored
// review ratings rounded to one decimal place. When no reviews are stored
// the subquery is empty and the platform-reported value is retained.
func (s *Store) RecomputeAverageRating(ctx context.Context, restaurantID int64) error {
	if _, err := s.pool.Exec(ctx, recomputeRatingSQL, restaurantID); err != nil {
		return &crawler.StoreError{
			Op:  "recompute average rating",
			Key: fmt.Sprintf("restaurant %d", restaurantID),
			Err: err,
		}
	}
	return nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
