package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

// RedisBroker fans events out through Redis Pub/Sub so that several gateway
// instances can serve the same owners.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBroker(opts *redis.Options, prefix string) (*RedisBroker, error) {
	if prefix == "" {
		return nil, fmt.Errorf("channel prefix cannot be empty")
	}
	return &RedisBroker{rdb: redis.NewClient(opts), prefix: prefix}, nil
}

// OwnerChannel is the Pub/Sub channel carrying the events of owner.
func (b *RedisBroker) OwnerChannel(owner string) string {
	return fmt.Sprintf("%s:%s:events", b.prefix, owner)
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBroker) Publish(ctx context.Context, e notes.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.OwnerChannel(e.Owner), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, owner string) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, b.OwnerChannel(owner))
	// Wait for the subscription to be confirmed so that events published
	// after Subscribe returns are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	eventsChan := make(chan notes.Event, SubscriptionBuffer)
	errorsChan := make(chan error, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e notes.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					trySend(subCtx, errorsChan, fmt.Errorf("failed to unmarshal event: %w", err))
					continue
				}
				select {
				case eventsChan <- e:
				case <-subCtx.Done():
					return
				default:
					slog.Warn("closing subscription of slow subscriber",
						"owner", owner,
						"kind", e.Kind,
						"id", e.ID)
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancel,
	}, nil
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
