// Package publisher provides ingest event publishing backends.
package publisher

import "context"

// NoOp discards ingest events. Used when no pub/sub provider is configured.
type NoOp struct{}

// Publish does nothing and always succeeds.
func (NoOp) Publish(_ context.Context, _ string, _ any) (string, error) {
	return "", nil
}
