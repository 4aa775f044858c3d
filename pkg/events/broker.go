// Package events fans note change notifications out to the subscribers of
// each owner. Publishers never block: a subscriber that falls behind has its
// subscription ended, so it must resubscribe and reload rather than miss
// events silently.
package events

import (
	"context"
	"sync"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

// SubscriptionBuffer is the number of events queued per subscriber before
// its subscription is ended.
const SubscriptionBuffer = 32

type Broker interface {
	// Publish delivers e to every current subscriber of e.Owner.
	Publish(ctx context.Context, e notes.Event) error
	// Subscribe starts receiving the events of owner. The subscription ends
	// when ctx is cancelled or Close is called.
	Subscribe(ctx context.Context, owner string) (*Subscription, error)
	Close() error
}

// Subscription is an active feed of one owner's events.
// Caller must call Close() when done.
type Subscription struct {
	events <-chan notes.Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events is closed once the subscription ends.
func (s *Subscription) Events() <-chan notes.Event {
	return s.events
}

// Errors reports non-fatal problems such as undecodable messages; the
// subscription keeps running after them.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close is safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

func trySend[T any](ctx context.Context, ch chan<- T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	default:
	}
}
