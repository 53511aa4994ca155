// Package bus is the typed publish surface for downstream consumers (HTTP
// readers, notification relays). Delivery is in-order and back-pressured.
// Registration is only allowed before Start and publishing fails loudly with
// zero subscribers, so the historical failure mode — a stage emitting into
// the void and signals silently vanishing — cannot be built by accident.
// Stage-to-stage coupling inside the pipeline does not use this bus at all;
// the coordinator chains stages with direct calls.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ignitex/ignitex/internal/domain"
)

// Kind discriminates bus messages.
type Kind string

const (
	KindSignalPublished Kind = "signal_published"
	KindOutcomeResolved Kind = "outcome_resolved"
)

// Message is the typed bus payload.
type Message struct {
	Kind    Kind                    `json:"kind"`
	Signal  *domain.PublishedSignal `json:"signal,omitempty"`
	Outcome *domain.Outcome         `json:"outcome,omitempty"`
}

type subscriber struct {
	name string
	ch   chan Message
}

// Bus fans messages out to every registered subscriber.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscriber
	started bool
	closed  bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a named consumer. Must happen before Start; the
// returned channel receives every subsequent message in publish order.
func (b *Bus) Subscribe(name string, buffer int) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil, fmt.Errorf("bus already started: subscriber %q must register before the producer", name)
	}
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Message, buffer)
	b.subs = append(b.subs, subscriber{name: name, ch: ch})
	return ch, nil
}

// Start freezes the subscriber set. Publishing before Start is an error, as
// is starting with nobody listening.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return fmt.Errorf("bus started with no subscribers: published signals would vanish")
	}
	b.started = true
	return nil
}

// Publish delivers to every subscriber, blocking on full buffers rather than
// dropping. Returns an error if the bus was never started. The read lock is
// held across delivery so Close cannot close a channel mid-send; a publish
// stuck on a full buffer must be released by cancelling its context.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.started {
		return fmt.Errorf("publish on unstarted bus: no registered consumer would receive %s", msg.Kind)
	}
	if b.closed {
		return fmt.Errorf("publish on closed bus")
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- msg:
		case <-ctx.Done():
			return fmt.Errorf("publish to %q cancelled: %w", sub.name, ctx.Err())
		}
	}
	return nil
}

// Close terminates all subscriber channels. Blocks until in-flight publishes
// have drained or been cancelled.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
}
