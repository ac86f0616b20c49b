package crawler

import (
	"errors"
	"fmt"
	"net"
)

// FetchError is returned by Fetcher implementations. Transient failures
// (timeouts, connection resets, 5xx, 429) are retryable; everything else
// fails immediately.
type FetchError struct {
	URL        string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError classifies an HTTP status into a transient or permanent
// fetch failure.
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Transient:  statusCode >= 500 || statusCode == 429,
		Err:        err,
	}
}

// ExtractionError is returned by adapters when the page structure does not
// match or a required field is missing.
type ExtractionError struct {
	Platform Platform
	URL      string
	Field    string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("extract %s from %s: missing %s: %v", e.Platform, e.URL, e.Field, e.Err)
	}
	return fmt.Sprintf("extract %s from %s: %v", e.Platform, e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// StoreError wraps a persistence failure with the operation and natural key
// it occurred on.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store %s (%s): %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: a transient FetchError
// or a network timeout.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
