// Package yelp extracts canonical records from Yelp business pages.
package yelp

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/platemetrics/review-crawler/internal/adapter"
	"github.com/platemetrics/review-crawler/internal/crawler"
)

const reviewDateLayout = "01/02/2006"

// Adapter parses Yelp business pages.
type Adapter struct{}

// New returns a Yelp adapter.
func New() *Adapter {
	return &Adapter{}
}

// Platform identifies this adapter.
func (*Adapter) Platform() crawler.Platform {
	return crawler.PlatformYelp
}

// Match reports whether u points at a Yelp page.
func (*Adapter) Match(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	return host == "yelp.com" || strings.HasSuffix(host, ".yelp.com")
}

// ReviewsURL returns the business page sorted most-recent-first.
func (*Adapter) ReviewsURL(pageURL string) string {
	if strings.Contains(pageURL, "?") {
		return pageURL + "&sort_by=date_desc"
	}
	return pageURL + "?sort_by=date_desc"
}

// ExtractRestaurant parses the business header. Name is required; all other
// fields are treated as absent when missing.
func (a *Adapter) ExtractRestaurant(content []byte, sourceURL string) (crawler.Restaurant, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return crawler.Restaurant{}, &crawler.ExtractionError{Platform: a.Platform(), URL: sourceURL, Err: err}
	}

	name := strings.TrimSpace(doc.Find("h1").First().Text())
	if name == "" {
		return crawler.Restaurant{}, &crawler.ExtractionError{
			Platform: a.Platform(),
			URL:      sourceURL,
			Field:    "name",
			Err:      fmt.Errorf("no h1 heading found"),
		}
	}

	address := strings.TrimSpace(doc.Find(`[data-testid="bizDetailsAddress"] > p`).First().Text())
	city, state, postal := adapter.SplitAddress(address)

	var avgRating *float64
	if label, ok := doc.Find(`[data-testid="rating-stars"]`).First().Attr("aria-label"); ok {
		if v, parsed := adapter.LeadingFloat(label); parsed {
			avgRating = &v
		}
	}

	website := ""
	if href, ok := doc.Find(`[data-testid="bizWebsite"] a`).First().Attr("href"); ok {
		website = href
	}

	return crawler.Restaurant{
		Name:           name,
		Address:        address,
		City:           city,
		State:          state,
		PostalCode:     postal,
		Phone:          strings.TrimSpace(doc.Find(`[data-testid="bizPhone"]`).First().Text()),
		Website:        website,
		CuisineType:    strings.TrimSpace(doc.Find(`[data-testid="price-category"] > span:not(:first-child) a`).First().Text()),
		PriceRange:     strings.TrimSpace(doc.Find(`[data-testid="price-category"] > span:first-child`).First().Text()),
		AverageRating:  avgRating,
		SourceURL:      sourceURL,
		SourceID:       adapter.LastPathSegment(sourceURL),
		SourcePlatform: a.Platform(),
	}, nil
}

// ExtractReviews parses the reviews list in source order, capped at
// maxReviews. Reviews missing a parseable rating are skipped individually.
func (a *Adapter) ExtractReviews(content []byte, sourceURL string, maxReviews int) ([]crawler.Review, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, &crawler.ExtractionError{Platform: a.Platform(), URL: sourceURL, Err: err}
	}

	restaurantSourceID := adapter.LastPathSegment(sourceURL)
	reviews := make([]crawler.Review, 0, maxReviews)

	doc.Find(`[data-testid="reviews-container"] .review`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
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
	label, _ := s.Find(".i-stars").First().Attr("aria-label")
	rating, ok := adapter.LeadingFloat(label)
	if !ok {
		return crawler.Review{}, false
	}

	user := s.Find(".user-passport-info a").First()
	reviewerName := strings.TrimSpace(user.Text())
	if reviewerName == "" {
		reviewerName = "Anonymous"
	}
	reviewerID := ""
	if href, found := user.Attr("href"); found {
		parts := strings.Split(href, "=")
		reviewerID = parts[len(parts)-1]
	}

	var reviewDate time.Time
	if dateText := strings.TrimSpace(s.Find(".review-date").First().Text()); dateText != "" {
		if t, err := time.Parse(reviewDateLayout, dateText); err == nil {
			reviewDate = t
		}
	}
	var ts int64
	if !reviewDate.IsZero() {
		ts = reviewDate.Unix()
	}

	helpful, _ := adapter.LeadingInt(s.Find(".useful-count").First().Text())

	return crawler.Review{
		Rating:         rating,
		ReviewText:     strings.TrimSpace(s.Find(".review-content p").First().Text()),
		ReviewDate:     reviewDate,
		ReviewerName:   reviewerName,
		ReviewerID:     reviewerID,
		HelpfulCount:   helpful,
		SourceURL:      sourceURL,
		SourceID:       fmt.Sprintf("yelp_%s_%s_%d", restaurantSourceID, reviewerID, ts),
		SourcePlatform: a.Platform(),
	}, true
}
