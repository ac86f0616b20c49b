// Package tripadvisor extracts canonical records from TripAdvisor
// restaurant pages.
package tripadvisor

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/platemetrics/review-crawler/internal/adapter"
	"github.com/platemetrics/review-crawler/internal/crawler"
)

const ratingDateLayout = "January 2, 2006"

// Adapter parses TripAdvisor restaurant pages.
type Adapter struct{}

// New returns a TripAdvisor adapter.
func New() *Adapter {
	return &Adapter{}
}

// Platform identifies this adapter.
func (*Adapter) Platform() crawler.Platform {
	return crawler.PlatformTripAdvisor
}

// Match reports whether u points at a TripAdvisor page.
func (*Adapter) Match(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	return host == "tripadvisor.com" || strings.HasSuffix(host, ".tripadvisor.com")
}

// ReviewsURL inserts the review-list page offset into the canonical page URL.
// URLs without the Reviews- marker are returned unchanged.
func (*Adapter) ReviewsURL(pageURL string) string {
	head, tail, found := strings.Cut(pageURL, "Reviews-")
	if !found {
		return pageURL
	}
	return head + "Reviews-or10-" + tail
}

// ExtractRestaurant parses the restaurant header. Name is required; all
// other fields are treated as absent when missing.
func (a *Adapter) ExtractRestaurant(content []byte, sourceURL string) (crawler.Restaurant, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return crawler.Restaurant{}, &crawler.ExtractionError{Platform: a.Platform(), URL: sourceURL, Err: err}
	}

	name := strings.TrimSpace(doc.Find("h1.HjBfq").First().Text())
	if name == "" {
		return crawler.Restaurant{}, &crawler.ExtractionError{
			Platform: a.Platform(),
			URL:      sourceURL,
			Field:    "name",
			Err:      fmt.Errorf("no h1.HjBfq heading found"),
		}
	}

	address := strings.TrimSpace(doc.Find("a.AYHFM").First().Text())
	city, state, postal := adapter.SplitAddress(address)

	var avgRating *float64
	if v, ok := adapter.LeadingFloat(doc.Find("span.ZDEqb").First().Text()); ok {
		avgRating = &v
	}

	// The phone number sits in the sibling node after the "Phone" label span.
	phone := ""
	doc.Find("span.AYHFM").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), "Phone") {
			phone = strings.TrimSpace(s.Next().Text())
			return false
		}
		return true
	})

	website := ""
	if href, ok := doc.Find("a.YnKZo").First().Attr("href"); ok {
		website = href
	}

	return crawler.Restaurant{
		Name:           name,
		Address:        address,
		City:           city,
		State:          state,
		PostalCode:     postal,
		Phone:          phone,
		Website:        website,
		CuisineType:    strings.TrimSpace(doc.Find(`a.dlMOJ[data-param="cuisine"]`).First().Text()),
		PriceRange:     strings.TrimSpace(doc.Find(`a.dlMOJ[data-param="trating"]`).First().Text()),
		AverageRating:  avgRating,
		SourceURL:      sourceURL,
		SourceID:       sourceID(sourceURL),
		SourcePlatform: a.Platform(),
	}, nil
}

// ExtractReviews parses the review list in source order, capped at
// maxReviews. Reviews without a bubble rating are skipped individually.
func (a *Adapter) ExtractReviews(content []byte, sourceURL string, maxReviews int) ([]crawler.Review, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, &crawler.ExtractionError{Platform: a.Platform(), URL: sourceURL, Err: err}
	}

	restaurantSourceID := sourceID(sourceURL)
	reviews := make([]crawler.Review, 0, maxReviews)

	doc.Find(".review-container").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(reviews) >= maxReviews {
			return false
		}
		if rv, ok := a.parseReview(s, restaurantSourceID, sourceURL); ok {
			reviews = append(reviews, rv)
		}
		return true
	})
	return reviews, nil
}

func (a *Adapter) parseReview(s *goquery.Selection, restaurantSourceID, sourceURL string) (crawler.Review, bool) {
	rating, ok := bubbleRating(s.Find(".ui_bubble_rating").First())
	if !ok {
		return crawler.Review{}, false
	}

	reviewerName := strings.TrimSpace(s.Find(".info_text div:first-child").First().Text())
	if reviewerName == "" {
		reviewerName = "Anonymous"
	}
	reviewerID, _ := s.Find(".memberOverlayLink").First().Attr("id")

	var reviewDate time.Time
	if title, found := s.Find(".ratingDate").First().Attr("title"); found {
		if t, err := time.Parse(ratingDateLayout, title); err == nil {
			reviewDate = t
		}
	}
	var ts int64
	if !reviewDate.IsZero() {
		ts = reviewDate.Unix()
	}

	helpful, _ := adapter.LeadingInt(s.Find(".numHelp").First().Text())

	return crawler.Review{
		Rating:         rating,
		ReviewText:     strings.TrimSpace(s.Find(".prw_reviews_text_summary_hsx").First().Text()),
		ReviewDate:     reviewDate,
		ReviewerName:   reviewerName,
		ReviewerID:     reviewerID,
		HelpfulCount:   helpful,
		SourceURL:      sourceURL,
		SourceID:       fmt.Sprintf("tripadvisor_%s_%s_%d", restaurantSourceID, reviewerID, ts),
		SourcePlatform: a.Platform(),
	}, true
}

// bubbleRating decodes TripAdvisor's bubble_NN class into a 0-5 rating.
func bubbleRating(s *goquery.Selection) (float64, bool) {
	class, found := s.Attr("class")
	if !found {
		return 0, false
	}
	for _, c := range strings.Fields(class) {
		if raw, ok := strings.CutPrefix(c, "bubble_"); ok {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return 0, false
			}
			return float64(n) / 10, true
		}
	}
	return 0, false
}

// sourceID is the trailing hyphen-separated token of the page URL, the same
// identifier TripAdvisor embeds in its canonical restaurant URLs.
func sourceID(rawURL string) string {
	u, err := url.Parse(rawURL)
	path := rawURL
	if err == nil {
		path = u.Path
	}
	parts := strings.Split(strings.TrimSuffix(path, ".html"), "-")
	return parts[len(parts)-1]
}
