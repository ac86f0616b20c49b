// Package memory provides an in-process Publisher that records ingest
// events, used by engine tests and local development runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// IngestEvent captures one published ingest notification.
type IngestEvent struct {
	Topic   string
	Payload any
}

// Publisher records every publish for later inspection. It is safe for
// concurrent use by engine workers.
type Publisher struct {
	mu     sync.RWMutex
	events []IngestEvent
}

// New returns an empty recording Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a synthetic message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, IngestEvent{Topic: topic, Payload: payload})
	return fmt.Sprintf("mem-%d", len(p.events)), nil
}

// Events returns a copy of the recorded events in publish order.
func (p *Publisher) Events() []IngestEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]IngestEvent, len(p.events))
	copy(out, p.events)
	return out
}

// ByTopic returns the payloads published to one topic, in publish order.
func (p *Publisher) ByTopic(topic string) []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []any
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e.Payload)
		}
	}
	return out
}
