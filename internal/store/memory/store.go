// Package memory provides an in-memory Store for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/platemetrics/review-crawler/internal/crawler"
)

type storedRestaurant struct {
	id int64
	crawler.Restaurant
}

type storedReview struct {
	restaurantID int64
	crawler.Review
}

// Store keeps restaurants and reviews in maps keyed by the
// (source_platform, source_id) natural key. Safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	nextID      int64
	restaurants map[string]*storedRestaurant
	reviews     map[string]*storedReview
}

func New() *Store {
	return &Store{
		nextID:      1,
		restaurants: make(map[string]*storedRestaurant),
		reviews:     make(map[string]*storedReview),
	}
}

func naturalKey(platform crawler.Platform, sourceID string) string {
	return string(platform) + "/" + sourceID
}

// InitSchema is a no-op; the maps are created in New.
func (s *Store) InitSchema(ctx context.Context) error {
	return nil
}

func (s *Store) Close() {}

func (s *Store) UpsertRestaurant(ctx context.Context, r crawler.Restaurant) (int64, error) {
	if r.SourceID == "" || r.SourcePlatform == "" {
		return 0, &crawler.StoreError{Op: "upsert restaurant", Err: fmt.Errorf("natural key is required")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := naturalKey(r.SourcePlatform, r.SourceID)
	if existing, ok := s.restaurants[key]; ok {
		if r.AverageRating == nil {
			r.AverageRating = existing.AverageRating
		}
		existing.Restaurant = r
		return existing.id, nil
	}
	id := s.nextID
	s.nextID++
	s.restaurants[key] = &storedRestaurant{id: id, Restaurant: r}
	return id, nil
}

func (s *Store) UpsertReviews(ctx context.Context, restaurantID int64, reviews []crawler.Review) (crawler.ReviewBatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result crawler.ReviewBatchResult
	for _, rv := range reviews {
		if err := ctx.Err(); err != nil {
			return result, &crawler.StoreError{Op: "upsert reviews", Err: err}
		}
		key := naturalKey(rv.SourcePlatform, rv.SourceID)
		if _, ok := s.reviews[key]; ok {
			result.Skipped++
			continue
		}
		s.reviews[key] = &storedReview{restaurantID: restaurantID, Review: rv}
		result.Inserted++
	}
	return result, nil
}

// RecomputeAverageRating averages the stored ratings for the restaurant,
// rounded to one decimal place. With no stored reviews the existing value
// is left in place.
func (s *Store) RecomputeAverageRating(ctx context.Context, restaurantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum float64
	var n int
	for _, rv := range s.reviews {
		if rv.restaurantID == restaurantID {
			sum += rv.Rating
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(sum/float64(n)*10) / 10
	for _, r := range s.restaurants {
		if r.id == restaurantID {
			r.AverageRating = &avg
			return nil
		}
	}
	return &crawler.StoreError{
		Op:  "recompute average rating",
		Key: fmt.Sprintf("restaurant %d", restaurantID),
		Err: fmt.Errorf("restaurant not found"),
	}
}

// Restaurant returns the stored restaurant for a natural key, for tests.
func (s *Store) Restaurant(platform crawler.Platform, sourceID string) (crawler.Restaurant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[naturalKey(platform, sourceID)]
	if !ok {
		return crawler.Restaurant{}, false
	}
	return r.Restaurant, true
}

// ReviewCount reports the number of stored reviews for a restaurant.
func (s *Store) ReviewCount(restaurantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rv := range s.reviews {
		if rv.restaurantID == restaurantID {
			n++
		}
	}
	return n
}
