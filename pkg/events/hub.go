package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

var ErrClosed = errors.New("broker closed")

// Hub is an in-process Broker, suitable for a single gateway instance.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*hubSubscriber]struct{}
	closed bool
}

type hubSubscriber struct {
	owner  string
	events chan notes.Event
	errors chan error
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[*hubSubscriber]struct{}{}}
}

func (h *Hub) Publish(ctx context.Context, e notes.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for sub := range h.subs[e.Owner] {
		select {
		case sub.events <- e:
		default:
			slog.Warn("closing subscription of slow subscriber",
				"owner", e.Owner,
				"kind", e.Kind,
				"id", e.ID)
			h.removeLocked(sub)
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, owner string) (*Subscription, error) {
	sub := &hubSubscriber{
		owner:  owner,
		events: make(chan notes.Event, SubscriptionBuffer),
		errors: make(chan error),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.subs[owner] == nil {
		h.subs[owner] = map[*hubSubscriber]struct{}{}
	}
	h.subs[owner][sub] = struct{}{}
	h.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		h.remove(sub)
	}()

	return &Subscription{
		events: sub.events,
		errors: sub.errors,
		cancel: cancel,
	}, nil
}

// Subscribers returns the number of live subscriptions for owner.
func (h *Hub) Subscribers(owner string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[owner])
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for owner, subs := range h.subs {
		for sub := range subs {
			sub.close()
		}
		delete(h.subs, owner)
	}
	return nil
}

func (h *Hub) remove(sub *hubSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *hubSubscriber) {
	subs, ok := h.subs[sub.owner]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, sub.owner)
	}
	sub.close()
}

func (s *hubSubscriber) close() {
	close(s.events)
	close(s.errors)
}
