// Package reconcile keeps a local, rendered copy of the remote note
// collection consistent with the gateway. Three inputs feed it: a bulk
// load, this client's own call results, and the notification streams
// (which echo this client's changes too).
package reconcile

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

// InsertPolicy decides where a note unknown to the store is placed.
type InsertPolicy int

const (
	// InsertAtFront prepends new notes regardless of their timestamp, so the
	// list reads "most recent activity first" after the initial load.
	InsertAtFront InsertPolicy = iota
	// InsertByCreatedAt keeps the whole collection sorted by creation time,
	// newest first.
	InsertByCreatedAt
)

type ChangeKind string

const (
	ChangeLoaded  ChangeKind = "loaded"
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change describes one committed mutation. Notes is the collection as of
// that mutation and must not be modified.
type Change struct {
	Kind  ChangeKind
	ID    string
	Notes []notes.Note
}

type Option func(*Store)

func WithInsertPolicy(p InsertPolicy) Option {
	return func(s *Store) { s.policy = p }
}

type journalEntry struct {
	gen   uint64
	event notes.Event
}

// Store is the single source of truth for what is rendered. Every mutation
// builds a new slice and swaps it in atomically, so readers never observe a
// partially applied change.
type Store struct {
	gw     Gateway
	policy InsertPolicy

	snapshot atomic.Pointer[[]notes.Note]

	mu      sync.Mutex
	gen     uint64
	loading int
	// Applies committed while a load is in flight, replayed over its result.
	journal []journalEntry

	// notifyMu is taken before mu is released so listeners observe changes
	// in commit order.
	notifyMu     sync.Mutex
	listeners    map[int]func(Change)
	nextListener int
}

func NewStore(gw Gateway, opts ...Option) *Store {
	s := &Store{
		gw:        gw,
		policy:    InsertAtFront,
		listeners: map[int]func(Change){},
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := []notes.Note{}
	s.snapshot.Store(&empty)
	return s
}

// Notes returns the current collection. The slice is shared and must not be
// modified.
func (s *Store) Notes() []notes.Note {
	return *s.snapshot.Load()
}

func (s *Store) Get(id string) (notes.Note, bool) {
	list := s.Notes()
	if i := indexOf(list, id); i >= 0 {
		return list[i], true
	}
	return notes.Note{}, false
}

func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Subscribe registers fn to run after every committed change, on the
// goroutine that made it. fn must not mutate the store.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// LoadAll fetches the whole collection, sorts it newest first and makes it
// the new base. Notifications applied while the call was in flight are
// replayed on top of the result instead of being overwritten by it.
func (s *Store) LoadAll(ctx context.Context) error {
	s.mu.Lock()
	issued := s.gen
	s.loading++
	s.mu.Unlock()

	loaded, err := s.gw.ListNotes(ctx)

	s.mu.Lock()
	s.loading--
	if err != nil {
		if s.loading == 0 {
			s.journal = nil
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to load notes: %w", err)
	}

	next := sortNewestFirst(dedupe(loaded))
	for _, entry := range s.journal {
		if entry.gen > issued {
			next, _ = s.apply(next, entry.event)
		}
	}
	if s.loading == 0 {
		s.journal = nil
	}
	s.gen++
	s.commit(next, Change{Kind: ChangeLoaded})
	return nil
}

// ApplyCreated replaces the note in place if its id is known and inserts it
// otherwise. Duplicate deliveries leave the collection unchanged.
func (s *Store) ApplyCreated(n notes.Note) bool {
	return s.applyEvent(notes.Event{Kind: notes.EventCreated, ID: n.ID, Owner: n.Owner, Note: &n})
}

// ApplyUpdated replaces the note in place. Unknown ids are ignored.
func (s *Store) ApplyUpdated(n notes.Note) bool {
	return s.applyEvent(notes.Event{Kind: notes.EventUpdated, ID: n.ID, Owner: n.Owner, Note: &n})
}

// ApplyDeleted removes the note if present.
func (s *Store) ApplyDeleted(id string) bool {
	return s.applyEvent(notes.Event{Kind: notes.EventDeleted, ID: id})
}

// ApplyEvent dispatches a notification to the matching apply operation.
func (s *Store) ApplyEvent(e notes.Event) bool {
	if e.Kind != notes.EventDeleted {
		if e.Note == nil {
			return false
		}
		e.ID = e.Note.ID
	}
	return s.applyEvent(e)
}

func (s *Store) applyEvent(e notes.Event) bool {
	s.mu.Lock()
	next, changed := s.apply(s.Notes(), e)
	s.gen++
	if s.loading > 0 {
		s.journal = append(s.journal, journalEntry{gen: s.gen, event: e})
	}
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.commit(next, Change{Kind: changeKind(e.Kind), ID: e.ID})
	return true
}

// commit publishes next and notifies listeners. Called with mu held; returns
// with it released.
func (s *Store) commit(next []notes.Note, change Change) {
	s.snapshot.Store(&next)
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	change.Notes = next
	for _, fn := range s.listeners {
		fn(change)
	}
}

// apply returns the collection after e, never modifying list.
func (s *Store) apply(list []notes.Note, e notes.Event) ([]notes.Note, bool) {
	i := indexOf(list, e.ID)
	switch e.Kind {
	case notes.EventCreated:
		if i >= 0 {
			return replaceAt(list, i, *e.Note), true
		}
		return s.insert(list, *e.Note), true
	case notes.EventUpdated:
		if i < 0 {
			return list, false
		}
		return replaceAt(list, i, *e.Note), true
	case notes.EventDeleted:
		if i < 0 {
			return list, false
		}
		return slices.Delete(slices.Clone(list), i, i+1), true
	}
	return list, false
}

func (s *Store) insert(list []notes.Note, n notes.Note) []notes.Note {
	at := 0
	if s.policy == InsertByCreatedAt {
		at, _ = slices.BinarySearchFunc(list, n, func(have notes.Note, want notes.Note) int {
			// Newest first; equal timestamps keep the newcomer after them.
			if have.CreatedAt.Before(want.CreatedAt) {
				return 1
			}
			return -1
		})
	}
	next := make([]notes.Note, 0, len(list)+1)
	next = append(next, list[:at]...)
	next = append(next, n)
	return append(next, list[at:]...)
}

func replaceAt(list []notes.Note, i int, n notes.Note) []notes.Note {
	next := slices.Clone(list)
	next[i] = n
	return next
}

func indexOf(list []notes.Note, id string) int {
	return slices.IndexFunc(list, func(n notes.Note) bool { return n.ID == id })
}

func dedupe(loaded []*notes.Note) []notes.Note {
	seen := make(map[string]struct{}, len(loaded))
	result := make([]notes.Note, 0, len(loaded))
	for _, n := range loaded {
		if n == nil {
			continue
		}
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		result = append(result, *n)
	}
	return result
}

func sortNewestFirst(list []notes.Note) []notes.Note {
	slices.SortStableFunc(list, func(a, b notes.Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list
}

func changeKind(k notes.EventKind) ChangeKind {
	switch k {
	case notes.EventCreated:
		return ChangeCreated
	case notes.EventUpdated:
		return ChangeUpdated
	default:
		return ChangeDeleted
	}
}
