package notes

import "fmt"

type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

var EventKinds = []EventKind{EventCreated, EventUpdated, EventDeleted}

func ParseEventKind(s string) (EventKind, error) {
	for _, k := range EventKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind: %q", s)
}

// Event is a single change notification. Note is set for created and
// updated events; deleted events only carry the ID.
type Event struct {
	Kind  EventKind `json:"kind"`
	Owner string    `json:"owner"`
	ID    string    `json:"id"`
	Note  *Note     `json:"note,omitempty"`
}

func CreatedEvent(n *Note) Event {
	return Event{Kind: EventCreated, Owner: n.Owner, ID: n.ID, Note: n}
}

func UpdatedEvent(n *Note) Event {
	return Event{Kind: EventUpdated, Owner: n.Owner, ID: n.ID, Note: n}
}

func DeletedEvent(owner string, id string) Event {
	return Event{Kind: EventDeleted, Owner: owner, ID: id}
}
