package google

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platemetrics/review-crawler/internal/crawler"
)

const placePage = `<html><body>
<h1>Trattoria Roma</h1>
<div class="fontDisplayLarge">4.3</div>
<span>$$$</span>
<div class="fontBodyMedium"><span><span><span>Italian restaurant</span></span></span></div>
<button data-item-id="address">456 Oak Ave, Portland, OR 97205</button>
<button data-item-id="phone:tel">(503) 555-0188</button>
<a data-item-id="authority" href="https://trattoriaroma.example.com">trattoriaroma.example.com</a>
</body></html>`

func reviewCard(name, text string, stars int) string {
	var b strings.Builder
	b.WriteString(`<div class="jftiEf">`)
	fmt.Fprintf(&b, `<div class="d4r55">%s</div>`, name)
	b.WriteString(`<span class="kvMYJc">`)
	for i := 0; i < stars; i++ {
		b.WriteString(`<img class="wzN8Ac">`)
	}
	b.WriteString(`</span>`)
	fmt.Fprintf(&b, `<span class="rsqaWe">2 weeks ago</span><span class="wiI7pd">%s</span>`, text)
	b.WriteString(`</div>`)
	return b.String()
}

func TestMatch(t *testing.T) {
	t.Parallel()

	ad := New()
	for raw, want := range map[string]bool{
		"https://maps.google.com/maps/place/trattoria-roma": true,
		"https://www.google.com/maps/place/trattoria-roma":  true,
		"https://www.google.com/search?q=pizza":             false,
		"https://www.yelp.com/biz/x":                        false,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, ad.Match(u), raw)
	}
}

func TestReviewsURLIsPlacePage(t *testing.T) {
	t.Parallel()

	ad := New()
	pageURL := "https://maps.google.com/maps/place/trattoria-roma"
	assert.Equal(t, pageURL, ad.ReviewsURL(pageURL))
}

func TestExtractRestaurant(t *testing.T) {
	t.Parallel()

	ad := New()
	sourceURL := "https://maps.google.com/maps/place/trattoria-roma"
	r, err := ad.ExtractRestaurant([]byte(placePage), sourceURL)
	require.NoError(t, err)

	assert.Equal(t, "Trattoria Roma", r.Name)
	assert.Equal(t, "456 Oak Ave, Portland, OR 97205", r.Address)
	assert.Equal(t, "Portland", r.City)
	assert.Equal(t, "OR", r.State)
	assert.Equal(t, "97205", r.PostalCode)
	assert.Equal(t, "(503) 555-0188", r.Phone)
	assert.Equal(t, "https://trattoriaroma.example.com", r.Website)
	assert.Equal(t, "Italian restaurant", r.CuisineType)
	assert.Equal(t, "$$$", r.PriceRange)
	require.NotNil(t, r.AverageRating)
	assert.InDelta(t, 4.3, *r.AverageRating, 1e-9)
	assert.Equal(t, "trattoria-roma", r.SourceID)
	assert.Equal(t, crawler.PlatformGoogle, r.SourcePlatform)
}

func TestExtractRestaurantRequiresName(t *testing.T) {
	t.Parallel()

	ad := New()
	_, err := ad.ExtractRestaurant([]byte("<html><body></body></html>"), "https://maps.google.com/maps/place/x")

	var ee *crawler.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "name", ee.Field)
}

func TestExtractReviews(t *testing.T) {
	t.Parallel()

	page := `<html><body>` +
		reviewCard("Carol D.", "Wonderful pasta.", 5) +
		reviewCard("Dan E.", "Slow service.", 2) +
		`</body></html>`

	ad := New()
	sourceURL := "https://maps.google.com/maps/place/trattoria-roma"
	reviews, err := ad.ExtractReviews([]byte(page), sourceURL, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	first := reviews[0]
	assert.InDelta(t, 5.0, first.Rating, 1e-9)
	assert.Equal(t, "Carol D.", first.ReviewerName)
	assert.Equal(t, "Wonderful pasta.", first.ReviewText)
	assert.True(t, first.ReviewDate.IsZero())

	h := fnv.New32a()
	_, _ = h.Write([]byte("Carol D.Wonderful pasta."))
	assert.Equal(t, fmt.Sprintf("google_trattoria-roma_%d", h.Sum32()), first.SourceID)

	assert.InDelta(t, 2.0, reviews[1].Rating, 1e-9)
}

func TestExtractReviewsSkipsCardsWithoutStars(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<div class="jftiEf"><div class="d4r55">No Rating</div><span class="wiI7pd">text</span></div>` +
		reviewCard("Eve F.", "Fine.", 4) +
		`</body></html>`

	ad := New()
	reviews, err := ad.ExtractReviews([]byte(page), "https://maps.google.com/maps/place/x", 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Eve F.", reviews[0].ReviewerName)
}

func TestExtractReviewsCapsAtMax(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 6; i++ {
		b.WriteString(reviewCard(fmt.Sprintf("User %d", i), "ok", 3))
	}
	b.WriteString("</body></html>")

	ad := New()
	reviews, err := ad.ExtractReviews([]byte(b.String()), "https://maps.google.com/maps/place/x", 4)
	require.NoError(t, err)
	assert.Len(t, reviews, 4)
}

func TestExtractReviewsIdempotentSourceIDs(t *testing.T) {
	t.Parallel()

	page := "<html><body>" + reviewCard("Carol D.", "Wonderful pasta.", 5) + "</body></html>"

	ad := New()
	first, err := ad.ExtractReviews([]byte(page), "https://maps.google.com/maps/place/trattoria-roma", 10)
	require.NoError(t, err)
	second, err := ad.ExtractReviews([]byte(page), "https://maps.google.com/maps/place/trattoria-roma", 10)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].SourceID, second[0].SourceID)
}
