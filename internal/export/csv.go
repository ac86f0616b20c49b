// Package export writes stored restaurants and reviews to CSV files.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

const timestampLayout = "2006-01-02 15:04:05"

// querier is the read-only subset of pgxpool.Pool the exporter needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Exporter reads rows from the database and streams them as CSV.
type Exporter struct {
	pool querier
}

// New creates an Exporter over the provided pool.
func New(pool querier) (*Exporter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Exporter{pool: pool}, nil
}

const selectRestaurantsSQL = `
SELECT id, name, address, city, state, postal_code, phone, website,
       cuisine_type, price_range, average_rating, source_platform, last_updated
FROM restaurants ORDER BY id`

// Restaurants writes all stored restaurants as CSV and returns the row count.
func (e *Exporter) Restaurants(ctx context.Context, w io.Writer) (int, error) {
	rows, err := e.pool.Query(ctx, selectRestaurantsSQL)
	if err != nil {
		return 0, fmt.Errorf("query restaurants: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	header := []string{
		"id", "name", "address", "city", "state", "postal_code",
		"phone", "website", "cuisine_type", "price_range",
		"average_rating", "source_platform", "last_updated",
	}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	count := 0
	for rows.Next() {
		var (
			id                                  int64
			name                                string
			address, city, state, postal        *string
			phone, website, cuisine, priceRange *string
			avgRating                           *float64
			sourcePlatform                      string
			lastUpdated                         *time.Time
		)
		if err := rows.Scan(&id, &name, &address, &city, &state, &postal,
			&phone, &website, &cuisine, &priceRange, &avgRating,
			&sourcePlatform, &lastUpdated); err != nil {
			return count, fmt.Errorf("scan restaurant row: %w", err)
		}
		record := []string{
			strconv.FormatInt(id, 10),
			name,
			strOrEmpty(address),
			strOrEmpty(city),
			strOrEmpty(state),
			strOrEmpty(postal),
			strOrEmpty(phone),
			strOrEmpty(website),
			strOrEmpty(cuisine),
			strOrEmpty(priceRange),
			floatOrEmpty(avgRating),
			sourcePlatform,
			timeOrEmpty(lastUpdated),
		}
		if err := cw.Write(record); err != nil {
			return count, fmt.Errorf("write restaurant row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("iterate restaurants: %w", err)
	}
	cw.Flush()
	return count, cw.Error()
}

const selectReviewsSQL = `
SELECT id, restaurant_id, rating, review_text, review_date,
       reviewer_name, helpful_count, source_platform, crawl_date
FROM reviews ORDER BY id`

// Reviews writes all stored reviews as CSV and returns the row count.
func (e *Exporter) Reviews(ctx context.Context, w io.Writer) (int, error) {
	rows, err := e.pool.Query(ctx, selectReviewsSQL)
	if err != nil {
		return 0, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	header := []string{
		"id", "restaurant_id", "rating", "review_text", "review_date",
		"reviewer_name", "helpful_count", "source_platform", "crawl_date",
	}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	count := 0
	for rows.Next() {
		var (
			id, restaurantID int64
			rating           float64
			reviewText       *string
			reviewDate       *time.Time
			reviewerName     *string
			helpfulCount     *int
			sourcePlatform   string
			crawlDate        *time.Time
		)
		if err := rows.Scan(&id, &restaurantID, &rating, &reviewText,
			&reviewDate, &reviewerName, &helpfulCount, &sourcePlatform,
			&crawlDate); err != nil {
			return count, fmt.Errorf("scan review row: %w", err)
		}
		helpful := 0
		if helpfulCount != nil {
			helpful = *helpfulCount
		}
		record := []string{
			strconv.FormatInt(id, 10),
			strconv.FormatInt(restaurantID, 10),
			strconv.FormatFloat(rating, 'f', -1, 64),
			strOrEmpty(reviewText),
			timeOrEmpty(reviewDate),
			strOrEmpty(reviewerName),
			strconv.Itoa(helpful),
			sourcePlatform,
			timeOrEmpty(crawlDate),
		}
		if err := cw.Write(record); err != nil {
			return count, fmt.Errorf("write review row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("iterate reviews: %w", err)
	}
	cw.Flush()
	return count, cw.Error()
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timestampLayout)
}
