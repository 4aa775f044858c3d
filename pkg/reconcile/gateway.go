package reconcile

import (
	"context"

	"github.com/mrshanahan/notetaker/pkg/client"
	"github.com/mrshanahan/notetaker/pkg/notes"
)

// Gateway is the remote note collection: four calls plus three one-way
// notification streams scoped to an owner.
type Gateway interface {
	ListNotes(ctx context.Context) ([]*notes.Note, error)
	CreateNote(ctx context.Context, text string) (*notes.Note, error)
	UpdateNote(ctx context.Context, id string, text string) (*notes.Note, error)
	DeleteNote(ctx context.Context, id string) (*notes.DeletedNote, error)

	OnCreated(ctx context.Context, owner string) (Stream, error)
	OnUpdated(ctx context.Context, owner string) (Stream, error)
	OnDeleted(ctx context.Context, owner string) (Stream, error)
}

// Stream is a notification feed. Events is closed when the feed ends, after
// which Err tells why.
type Stream interface {
	Events() <-chan notes.Event
	Err() error
	Close() error
}

type remoteGateway struct {
	*client.Client
}

// Remote adapts a gateway HTTP client.
func Remote(c *client.Client) Gateway {
	return remoteGateway{c}
}

func (g remoteGateway) OnCreated(ctx context.Context, owner string) (Stream, error) {
	return g.subscribe(ctx, notes.EventCreated, owner)
}

func (g remoteGateway) OnUpdated(ctx context.Context, owner string) (Stream, error) {
	return g.subscribe(ctx, notes.EventUpdated, owner)
}

func (g remoteGateway) OnDeleted(ctx context.Context, owner string) (Stream, error) {
	return g.subscribe(ctx, notes.EventDeleted, owner)
}

func (g remoteGateway) subscribe(ctx context.Context, kind notes.EventKind, owner string) (Stream, error) {
	s, err := g.Client.Subscribe(ctx, kind, owner)
	if err != nil {
		return nil, err
	}
	return s, nil
}
