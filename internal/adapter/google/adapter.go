// Package google extracts canonical records from Google Maps place pages.
package google

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/platemetrics/review-crawler/internal/adapter"
	"github.com/platemetrics/review-crawler/internal/crawler"
)

// Adapter parses Google Maps place pages.
type Adapter struct{}

// New returns a Google Maps adapter.
func New() *Adapter {
	return &Adapter{}
}

// Platform identifies this adapter.
func (*Adapter) Platform() crawler.Platform {
	return crawler.PlatformGoogle
}

// Match reports whether u points at a Google Maps page.
func (*Adapter) Match(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host == "maps.google.com" || strings.HasSuffix(host, ".maps.google.com") {
		return true
	}
	if host == "google.com" || strings.HasSuffix(host, ".google.com") {
		return strings.HasPrefix(u.Path, "/maps")
	}
	return false
}

// ReviewsURL is the place page itself; Google renders reviews inline.
func (*Adapter) ReviewsURL(pageURL string) string {
	return pageURL
}

// ExtractRestaurant parses the place header. Name is required; all other
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

	address := strings.TrimSpace(doc.Find(`button[data-item-id="address"]`).First().Text())
	city, state, postal := adapter.SplitAddress(address)

	var avgRating *float64
	if v, ok := adapter.LeadingFloat(doc.Find("div.fontDisplayLarge").First().Text()); ok {
		avgRating = &v
	}

	// Google exposes the price band as a bare "$"-run span with no stable
	// class, so scan spans for one.
	priceRange := ""
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" && strings.Trim(text, "$") == "" {
			priceRange = text
			return false
		}
		return true
	})

	website := ""
	if href, ok := doc.Find(`a[data-item-id="authority"]`).First().Attr("href"); ok {
		website = href
	}

	return crawler.Restaurant{
		Name:           name,
		Address:        address,
		City:           city,
		State:          state,
		PostalCode:     postal,
		Phone:          strings.TrimSpace(doc.Find(`button[data-item-id="phone:tel"]`).First().Text()),
		Website:        website,
		CuisineType:    strings.TrimSpace(doc.Find(".fontBodyMedium > span > span > span").First().Text()),
		PriceRange:     priceRange,
		AverageRating:  avgRating,
		SourceURL:      sourceURL,
		SourceID:       adapter.LastPathSegment(sourceURL),
		SourcePlatform: a.Platform(),
	}, nil
}

// ExtractReviews parses inline review cards in source order, capped at
// maxReviews. Google only exposes relative dates ("2 weeks ago"), so
// ReviewDate stays unset; the natural key hashes reviewer plus text instead.
func (a *Adapter) ExtractReviews(content []byte, sourceURL string, maxReviews int) ([]crawler.Review, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, &crawler.ExtractionError{Platform: a.Platform(), URL: sourceURL, Err: err}
	}

	restaurantSourceID := adapter.LastPathSegment(sourceURL)
	reviews := make([]crawler.Review, 0, maxReviews)

	doc.Find(".jftiEf").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(reviews) >= maxReviews {
			return false
		}
		stars := s.Find(".kvMYJc")
		if stars.Length() == 0 {
			return true
		}
		rating := float64(stars.First().Find(".wzN8Ac").Length())

		reviewerName := strings.TrimSpace(s.Find(".d4r55").First().Text())
		if reviewerName == "" {
			reviewerName = "Anonymous"
		}
		text := strings.TrimSpace(s.Find(".wiI7pd").First().Text())

		reviews = append(reviews, crawler.Review{
			Rating:         rating,
			ReviewText:     text,
			ReviewerName:   reviewerName,
			SourceURL:      sourceURL,
			SourceID:       fmt.Sprintf("google_%s_%d", restaurantSourceID, contentHash(reviewerName+text)),
			SourcePlatform: a.Platform(),
		})
		return true
	})
	return reviews, nil
}

func contentHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
