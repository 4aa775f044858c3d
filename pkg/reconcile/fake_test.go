package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func note(id string, minute int) notes.Note {
	at := epoch.Add(time.Duration(minute) * time.Minute)
	return notes.Note{ID: id, Text: "note " + id, Owner: "alice", CreatedAt: at, UpdatedAt: at}
}

func ids(list []notes.Note) []string {
	result := make([]string, len(list))
	for i, n := range list {
		result[i] = n.ID
	}
	return result
}

type updateCall struct {
	ID   string
	Text string
}

type fakeStream struct {
	kind   notes.EventKind
	owner  string
	events chan notes.Event

	mu     sync.Mutex
	err    error
	closed bool
}

func newFakeStream(kind notes.EventKind, owner string) *fakeStream {
	return &fakeStream{kind: kind, owner: owner, events: make(chan notes.Event, 16)}
}

func (s *fakeStream) Events() <-chan notes.Event { return s.events }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// end terminates the feed as the remote side would.
func (s *fakeStream) end(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.events)
}

// fakeGateway is an in-memory collection recording every call made to it.
type fakeGateway struct {
	mu sync.Mutex

	list    []*notes.Note
	listErr error
	// Runs inside ListNotes before it returns, after the result is taken.
	duringList func()

	createErr    error
	updateErr    error
	deleteErr    error
	subscribeErr error

	creates   []string
	updates   []updateCall
	deletes   []string
	listCalls int
	streams   []*fakeStream
	nextID    int
}

func newFakeGateway(list ...notes.Note) *fakeGateway {
	g := &fakeGateway{}
	for _, n := range list {
		n := n
		g.list = append(g.list, &n)
	}
	return g
}

func (g *fakeGateway) ListNotes(ctx context.Context) ([]*notes.Note, error) {
	g.mu.Lock()
	g.listCalls++
	result := append([]*notes.Note(nil), g.list...)
	err := g.listErr
	hook := g.duringList
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *fakeGateway) CreateNote(ctx context.Context, text string) (*notes.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates = append(g.creates, text)
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.nextID++
	n := note(fmt.Sprintf("new-%d", g.nextID), 100+g.nextID)
	n.Text = text
	return &n, nil
}

func (g *fakeGateway) UpdateNote(ctx context.Context, id string, text string) (*notes.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, updateCall{ID: id, Text: text})
	if g.updateErr != nil {
		return nil, g.updateErr
	}
	n := note(id, 0)
	n.Text = text
	return &n, nil
}

func (g *fakeGateway) DeleteNote(ctx context.Context, id string) (*notes.DeletedNote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes = append(g.deletes, id)
	if g.deleteErr != nil {
		return nil, g.deleteErr
	}
	return &notes.DeletedNote{ID: id}, nil
}

func (g *fakeGateway) OnCreated(ctx context.Context, owner string) (Stream, error) {
	return g.subscribe(notes.EventCreated, owner)
}

func (g *fakeGateway) OnUpdated(ctx context.Context, owner string) (Stream, error) {
	return g.subscribe(notes.EventUpdated, owner)
}

func (g *fakeGateway) OnDeleted(ctx context.Context, owner string) (Stream, error) {
	return g.subscribe(notes.EventDeleted, owner)
}

func (g *fakeGateway) subscribe(kind notes.EventKind, owner string) (Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.subscribeErr != nil {
		return nil, g.subscribeErr
	}
	s := newFakeStream(kind, owner)
	g.streams = append(g.streams, s)
	return s, nil
}

func (g *fakeGateway) set(fn func(g *fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *fakeGateway) calls() (creates []string, updates []updateCall, deletes []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.creates...), append([]updateCall(nil), g.updates...), append([]string(nil), g.deletes...)
}

func (g *fakeGateway) streamCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.streams)
}

// latest returns the most recent stream of the given kind.
func (g *fakeGateway) latest(kind notes.EventKind) *fakeStream {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.streams) - 1; i >= 0; i-- {
		if g.streams[i].kind == kind {
			return g.streams[i]
		}
	}
	return nil
}
