package yelp

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platemetrics/review-crawler/internal/crawler"
)

const bizPage = `<html><body>
<h1>Golden Dragon</h1>
<div data-testid="bizDetailsAddress"><p>123 Main St, San Francisco, CA 94102</p></div>
<div data-testid="rating-stars" aria-label="4.5 star rating"></div>
<div data-testid="price-category"><span>$$</span><span><a href="/c/chinese">Chinese</a></span></div>
<p data-testid="bizPhone">(415) 555-0123</p>
<div data-testid="bizWebsite"><a href="https://goldendragon.example.com">Website</a></div>
</body></html>`

func reviewBlock(rating, user, userID, date, text, useful string) string {
	return fmt.Sprintf(`<div class="review">
<div class="i-stars" aria-label="%s star rating"></div>
<div class="user-passport-info"><a href="/user_details?userid=%s">%s</a></div>
<span class="review-date">%s</span>
<div class="review-content"><p>%s</p></div>
<span class="useful-count">%s</span>
</div>`, rating, userID, user, date, text, useful)
}

func TestMatch(t *testing.T) {
	t.Parallel()

	ad := New()
	for raw, want := range map[string]bool{
		"https://www.yelp.com/biz/golden-dragon": true,
		"https://yelp.com/biz/golden-dragon":     true,
		"https://m.yelp.com/biz/golden-dragon":   true,
		"https://www.tripadvisor.com/x":          false,
		"https://notyelp.com/biz/x":              false,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, ad.Match(u), raw)
	}
}

func TestReviewsURLSortsByDate(t *testing.T) {
	t.Parallel()

	ad := New()
	assert.Equal(t,
		"https://www.yelp.com/biz/golden-dragon?sort_by=date_desc",
		ad.ReviewsURL("https://www.yelp.com/biz/golden-dragon"))
	assert.Equal(t,
		"https://www.yelp.com/biz/golden-dragon?osq=food&sort_by=date_desc",
		ad.ReviewsURL("https://www.yelp.com/biz/golden-dragon?osq=food"))
}

func TestExtractRestaurant(t *testing.T) {
	t.Parallel()

	ad := New()
	sourceURL := "https://www.yelp.com/biz/golden-dragon-san-francisco"
	r, err := ad.ExtractRestaurant([]byte(bizPage), sourceURL)
	require.NoError(t, err)

	assert.Equal(t, "Golden Dragon", r.Name)
	assert.Equal(t, "123 Main St, San Francisco, CA 94102", r.Address)
	assert.Equal(t, "San Francisco", r.City)
	assert.Equal(t, "CA", r.State)
	assert.Equal(t, "94102", r.PostalCode)
	assert.Equal(t, "(415) 555-0123", r.Phone)
	assert.Equal(t, "https://goldendragon.example.com", r.Website)
	assert.Equal(t, "Chinese", r.CuisineType)
	assert.Equal(t, "$$", r.PriceRange)
	require.NotNil(t, r.AverageRating)
	assert.InDelta(t, 4.5, *r.AverageRating, 1e-9)
	assert.Equal(t, "golden-dragon-san-francisco", r.SourceID)
	assert.Equal(t, crawler.PlatformYelp, r.SourcePlatform)
}

func TestExtractRestaurantRequiresName(t *testing.T) {
	t.Parallel()

	ad := New()
	_, err := ad.ExtractRestaurant([]byte("<html><body><p>nothing here</p></body></html>"), "https://www.yelp.com/biz/x")
	require.Error(t, err)

	var ee *crawler.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "name", ee.Field)
}

func TestExtractRestaurantMissingOptionalFields(t *testing.T) {
	t.Parallel()

	ad := New()
	r, err := ad.ExtractRestaurant([]byte("<html><body><h1>Bare Bones</h1></body></html>"), "https://www.yelp.com/biz/bare-bones")
	require.NoError(t, err)

	assert.Equal(t, "Bare Bones", r.Name)
	assert.Empty(t, r.Address)
	assert.Empty(t, r.Phone)
	assert.Nil(t, r.AverageRating)
}

func TestExtractReviews(t *testing.T) {
	t.Parallel()

	page := `<html><body><div data-testid="reviews-container">` +
		reviewBlock("5", "Alice W.", "abc123", "03/15/2024", "Great food!", "12") +
		reviewBlock("3.5", "Bob T.", "def456", "01/02/2024", "Decent.", "") +
		`</div></body></html>`

	ad := New()
	sourceURL := "https://www.yelp.com/biz/golden-dragon-san-francisco?sort_by=date_desc"
	reviews, err := ad.ExtractReviews([]byte(page), sourceURL, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	first := reviews[0]
	assert.InDelta(t, 5.0, first.Rating, 1e-9)
	assert.Equal(t, "Alice W.", first.ReviewerName)
	assert.Equal(t, "abc123", first.ReviewerID)
	assert.Equal(t, "Great food!", first.ReviewText)
	assert.Equal(t, 12, first.HelpfulCount)
	wantDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, first.ReviewDate.Equal(wantDate))
	assert.Equal(t,
		fmt.Sprintf("yelp_golden-dragon-san-francisco_abc123_%d", wantDate.Unix()),
		first.SourceID)
	assert.Equal(t, crawler.PlatformYelp, first.SourcePlatform)

	assert.InDelta(t, 3.5, reviews[1].Rating, 1e-9)
	assert.Equal(t, 0, reviews[1].HelpfulCount)
}

func TestExtractReviewsCapsAtMax(t *testing.T) {
	t.Parallel()

	page := `<html><body><div data-testid="reviews-container">`
	for i := 0; i < 5; i++ {
		page += reviewBlock("4", fmt.Sprintf("User %d", i), fmt.Sprintf("u%d", i), "02/20/2024", "ok", "1")
	}
	page += `</div></body></html>`

	ad := New()
	reviews, err := ad.ExtractReviews([]byte(page), "https://www.yelp.com/biz/x", 3)
	require.NoError(t, err)
	assert.Len(t, reviews, 3)
}

func TestExtractReviewsSkipsUnratedAndDefaultsFields(t *testing.T) {
	t.Parallel()

	page := `<html><body><div data-testid="reviews-container">
<div class="review">
<div class="user-passport-info"><a href="/user_details?userid=nobody">No Stars</a></div>
<div class="review-content"><p>unrated</p></div>
</div>
<div class="review">
<div class="i-stars" aria-label="2 star rating"></div>
<span class="review-date">not a date</span>
<div class="review-content"><p>anonymous grump</p></div>
</div>
</div></body></html>`

	ad := New()
	reviews, err := ad.ExtractReviews([]byte(page), "https://www.yelp.com/biz/x", 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	rv := reviews[0]
	assert.InDelta(t, 2.0, rv.Rating, 1e-9)
	assert.Equal(t, "Anonymous", rv.ReviewerName)
	assert.True(t, rv.ReviewDate.IsZero())
	// An unparseable date yields a deterministic zero-timestamp ID.
	assert.Equal(t, "yelp_x__0", rv.SourceID)
}
