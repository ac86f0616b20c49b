// Package adapter holds the platform adapter registry and extraction helpers
// shared by the per-platform packages.
package adapter

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/platemetrics/review-crawler/internal/crawler"
)

// Registry resolves adapters by platform identifier or by URL domain match.
// It is built once at startup and safe for concurrent reads.
type Registry struct {
	adapters map[crawler.Platform]crawler.Adapter
	order    []crawler.Adapter
}

// NewRegistry builds a Registry from the given adapters. Later registrations
// for the same platform win.
func NewRegistry(adapters ...crawler.Adapter) *Registry {
	r := &Registry{adapters: make(map[crawler.Platform]crawler.Adapter, len(adapters))}
	for _, ad := range adapters {
		if _, exists := r.adapters[ad.Platform()]; !exists {
			r.order = append(r.order, ad)
		}
		r.adapters[ad.Platform()] = ad
	}
	return r
}

// Get returns the adapter registered for the platform.
func (r *Registry) Get(p crawler.Platform) (crawler.Adapter, bool) {
	ad, ok := r.adapters[p]
	return ad, ok
}

// Resolve returns the first adapter whose domain pattern matches rawURL.
// One URL is assumed to match at most one platform.
func (r *Registry) Resolve(rawURL string) (crawler.Adapter, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	for _, ad := range r.order {
		if ad.Match(u) {
			return ad, true
		}
	}
	return nil, false
}

// All returns the registered adapters in registration order.
func (r *Registry) All() []crawler.Adapter {
	out := make([]crawler.Adapter, len(r.order))
	copy(out, r.order)
	return out
}

// SplitAddress breaks a "street, city, state zip" address into components.
// Missing parts come back empty.
func SplitAddress(address string) (city, state, postal string) {
	parts := strings.Split(address, ", ")
	if len(parts) > 1 {
		city = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		stateZip := strings.Fields(parts[2])
		if len(stateZip) > 0 {
			state = stateZip[0]
		}
		if len(stateZip) > 1 {
			postal = stateZip[1]
		}
	}
	return city, state, postal
}

// LeadingFloat parses the first whitespace-separated token of s as a float,
// e.g. "4.5 star rating" -> 4.5. Decimal commas are accepted.
func LeadingFloat(s string) (float64, bool) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// LeadingInt parses the first whitespace-separated token of s as an int.
func LeadingInt(s string) (int, bool) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return v, true
}

// LastPathSegment returns the final non-empty path segment of rawURL,
// ignoring query and fragment.
func LastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
