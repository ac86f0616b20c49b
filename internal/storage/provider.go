// Package storage defines the blob storage abstraction used for raw page
// snapshots, keeping the crawler independent of a specific backend
// (Google Cloud Storage or the local filesystem).
package storage

import "context"

// NoOpSink is a snapshot sink that performs no operations. Useful for
// dry runs where pages are fetched and extracted but not archived.
type NoOpSink struct{}

// PutObject for NoOpSink does nothing and always succeeds.
func (n *NoOpSink) PutObject(_ context.Context, path string, _ string, _ []byte) (string, error) {
	return "noop://" + path, nil
}
