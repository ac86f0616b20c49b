package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platemetrics/review-crawler/internal/crawler"
)

func sampleRestaurant(rating *float64) crawler.Restaurant {
	return crawler.Restaurant{
		Name:           "Golden Dragon",
		City:           "San Francisco",
		AverageRating:  rating,
		SourceID:       "golden-dragon",
		SourcePlatform: crawler.PlatformYelp,
		LastUpdated:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestUpsertRestaurantIsIdempotent(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	id1, err := s.UpsertRestaurant(ctx, sampleRestaurant(nil))
	require.NoError(t, err)

	updated := sampleRestaurant(nil)
	updated.Name = "Golden Dragon II"
	id2, err := s.UpsertRestaurant(ctx, updated)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	r, ok := s.Restaurant(crawler.PlatformYelp, "golden-dragon")
	require.True(t, ok)
	assert.Equal(t, "Golden Dragon II", r.Name)
}

func TestUpsertRestaurantKeepsRatingWhenAbsent(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	rating := 4.5
	_, err := s.UpsertRestaurant(ctx, sampleRestaurant(&rating))
	require.NoError(t, err)

	// A re-crawl without a platform rating must not erase the stored one.
	_, err = s.UpsertRestaurant(ctx, sampleRestaurant(nil))
	require.NoError(t, err)

	r, ok := s.Restaurant(crawler.PlatformYelp, "golden-dragon")
	require.True(t, ok)
	require.NotNil(t, r.AverageRating)
	assert.InDelta(t, 4.5, *r.AverageRating, 1e-9)
}

func TestUpsertRestaurantSamePlaceDifferentPlatforms(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	yelpRow := sampleRestaurant(nil)
	googleRow := sampleRestaurant(nil)
	googleRow.SourcePlatform = crawler.PlatformGoogle

	id1, err := s.UpsertRestaurant(ctx, yelpRow)
	require.NoError(t, err)
	id2, err := s.UpsertRestaurant(ctx, googleRow)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestUpsertRestaurantRequiresNaturalKey(t *testing.T) {
	t.Parallel()

	s := New()
	r := sampleRestaurant(nil)
	r.SourceID = ""
	_, err := s.UpsertRestaurant(context.Background(), r)
	assert.Error(t, err)
}

func review(sourceID string, rating float64) crawler.Review {
	return crawler.Review{
		Rating:         rating,
		SourceID:       sourceID,
		SourcePlatform: crawler.PlatformYelp,
	}
}

func TestUpsertReviewsDeduplicates(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	id, err := s.UpsertRestaurant(ctx, sampleRestaurant(nil))
	require.NoError(t, err)

	first, err := s.UpsertReviews(ctx, id, []crawler.Review{review("r1", 4), review("r2", 5)})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, first.Skipped)

	second, err := s.UpsertReviews(ctx, id, []crawler.Review{review("r1", 4), review("r3", 3)})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Inserted)
	assert.Equal(t, 1, second.Skipped)

	assert.Equal(t, 3, s.ReviewCount(id))
}

func TestRecomputeAverageRating(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	id, err := s.UpsertRestaurant(ctx, sampleRestaurant(nil))
	require.NoError(t, err)

	_, err = s.UpsertReviews(ctx, id, []crawler.Review{
		review("r1", 4), review("r2", 5), review("r3", 3),
	})
	require.NoError(t, err)

	require.NoError(t, s.RecomputeAverageRating(ctx, id))

	r, ok := s.Restaurant(crawler.PlatformYelp, "golden-dragon")
	require.True(t, ok)
	require.NotNil(t, r.AverageRating)
	assert.InDelta(t, 4.0, *r.AverageRating, 1e-9)
}

func TestRecomputeAverageRatingRounding(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	id, err := s.UpsertRestaurant(ctx, sampleRestaurant(nil))
	require.NoError(t, err)

	_, err = s.UpsertReviews(ctx, id, []crawler.Review{review("r1", 4), review("r2", 3)})
	require.NoError(t, err)
	require.NoError(t, s.RecomputeAverageRating(ctx, id))

	r, _ := s.Restaurant(crawler.PlatformYelp, "golden-dragon")
	require.NotNil(t, r.AverageRating)
	assert.InDelta(t, 3.5, *r.AverageRating, 1e-9)
}

func TestRecomputeAverageRatingNoReviewsKeepsValue(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	rating := 4.5
	id, err := s.UpsertRestaurant(ctx, sampleRestaurant(&rating))
	require.NoError(t, err)

	require.NoError(t, s.RecomputeAverageRating(ctx, id))

	r, _ := s.Restaurant(crawler.PlatformYelp, "golden-dragon")
	require.NotNil(t, r.AverageRating)
	assert.InDelta(t, 4.5, *r.AverageRating, 1e-9)
}
