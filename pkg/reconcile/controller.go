package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

type EditState int

const (
	Creating EditState = iota
	Editing
)

func (s EditState) String() string {
	if s == Editing {
		return "editing"
	}
	return "creating"
}

// Controller tracks the edit form: at most one selected note and the pending
// text. Submit creates or updates depending on the selection.
//
// The form is cleared only once the remote call succeeds; a failed submit
// leaves it as the user left it.
type Controller struct {
	store *Store
	gw    Gateway

	mu         sync.Mutex
	selectedID string
	text       string

	unsubscribe func()
}

func NewController(store *Store, gw Gateway) *Controller {
	c := &Controller{store: store, gw: gw}
	c.unsubscribe = store.Subscribe(c.onChange)
	return c
}

// Close detaches the controller from its store.
func (c *Controller) Close() {
	c.unsubscribe()
}

func (c *Controller) State() EditState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedID == "" {
		return Creating
	}
	return Editing
}

func (c *Controller) SelectedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedID
}

func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *Controller) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

// SelectNote enters editing mode for n, seeding the form with its text.
func (c *Controller) SelectNote(n notes.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedID = n.ID
	c.text = n.Text
}

// ClearSelection returns to creating mode and empties the form.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedID = ""
	c.text = ""
}

// Submit sends text. With a selected note still in the store it is an update
// of that note, otherwise a create. Empty text is rejected without a remote
// call.
func (c *Controller) Submit(ctx context.Context, text string) (*notes.Note, error) {
	if err := notes.ValidateText(text); err != nil {
		return nil, err
	}
	c.mu.Lock()
	id := c.selectedID
	c.text = text
	c.mu.Unlock()

	var note *notes.Note
	var err error
	if id != "" && c.store.Has(id) {
		note, err = c.gw.UpdateNote(ctx, id, text)
		if err != nil {
			if errors.Is(err, notes.ErrNotFound) {
				// Gone remotely. Dropping it clears the selection and the
				// text stays as a draft for a new note.
				c.store.ApplyDeleted(id)
			}
			return nil, fmt.Errorf("failed to update note %s: %w", id, err)
		}
		c.store.ApplyUpdated(*note)
	} else {
		note, err = c.gw.CreateNote(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to create note: %w", err)
		}
		c.store.ApplyCreated(*note)
	}

	c.mu.Lock()
	c.selectedID = ""
	c.text = ""
	c.mu.Unlock()
	return note, nil
}

// DeleteNote removes id remotely and locally. A note that no longer exists
// remotely is treated as deleted. The selection is not touched here; it is
// cleared by the store's deletion notice if it pointed at id.
func (c *Controller) DeleteNote(ctx context.Context, id string) error {
	if _, err := c.gw.DeleteNote(ctx, id); err != nil {
		if !errors.Is(err, notes.ErrNotFound) {
			return fmt.Errorf("failed to delete note %s: %w", id, err)
		}
		slog.Debug("note already gone remotely", "id", id)
	}
	c.store.ApplyDeleted(id)
	return nil
}

// onChange keeps the selection pointing at a note that exists.
func (c *Controller) onChange(ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedID == "" {
		return
	}
	switch ch.Kind {
	case ChangeDeleted:
		if ch.ID != c.selectedID {
			return
		}
	case ChangeLoaded:
		if indexOf(ch.Notes, c.selectedID) >= 0 {
			return
		}
	default:
		return
	}
	slog.Debug("selected note disappeared; clearing selection", "id", c.selectedID)
	c.selectedID = ""
}
