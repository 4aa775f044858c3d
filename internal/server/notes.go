package server

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/mrshanahan/notetaker/internal/middleware"
	"github.com/mrshanahan/notetaker/pkg/notes"
	notesdb "github.com/mrshanahan/notetaker/pkg/notes-db"
)

func (s *Server) ListNotes(c *fiber.Ctx) error {
	owner := middleware.GetOwner(c, OwnerLocalName)
	list, err := notesdb.GetNotes(s.db, owner)
	if err != nil {
		slog.Error("failed to execute query to retrieve notes",
			"owner", owner,
			"err", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(list)
}

func (s *Server) CreateNote(c *fiber.Ctx) error {
	data, err := parseNoteRequest(c)
	if err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.SendString(err.Error())
	}

	owner := middleware.GetOwner(c, OwnerLocalName)
	note, err := notesdb.NewNote(s.db, owner, data.Text)
	if err != nil {
		slog.Error("failed to create note",
			"owner", owner,
			"err", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	s.publish(c, notes.CreatedEvent(note))

	c.Status(fiber.StatusCreated)
	return c.JSON(note)
}

func (s *Server) GetNote(c *fiber.Ctx) error {
	return c.JSON(middleware.GetNote(c, NoteLocalName))
}

func (s *Server) UpdateNote(c *fiber.Ctx) error {
	existing := middleware.GetNote(c, NoteLocalName)

	data, err := parseNoteRequest(c)
	if err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.SendString(err.Error())
	}

	updated, err := notesdb.UpdateNote(s.db, existing.Owner, existing.ID, data.Text)
	if err != nil {
		slog.Error("failed to update note",
			"noteID", existing.ID,
			"err", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if updated == nil {
		// Deleted between the lookup and the update.
		c.Status(fiber.StatusNotFound)
		return c.SendString("no note with id: " + existing.ID)
	}
	s.publish(c, notes.UpdatedEvent(updated))

	return c.JSON(updated)
}

func (s *Server) DeleteNote(c *fiber.Ctx) error {
	note := middleware.GetNote(c, NoteLocalName)
	removed, err := notesdb.DeleteNote(s.db, note.Owner, note.ID)
	if err != nil {
		slog.Error("failed to remove note",
			"err", err,
			"noteID", note.ID)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if !removed {
		c.Status(fiber.StatusNotFound)
		return c.SendString("no note with id: " + note.ID)
	}
	s.publish(c, notes.DeletedEvent(note.Owner, note.ID))

	return c.JSON(notes.DeletedNote{ID: note.ID})
}

// publish failures are only logged since the write is already committed.
func (s *Server) publish(c *fiber.Ctx, e notes.Event) {
	if err := s.broker.Publish(c.UserContext(), e); err != nil {
		slog.Error("failed to publish note event",
			"kind", e.Kind,
			"noteID", e.ID,
			"err", err)
	}
}

func parseNoteRequest(c *fiber.Ctx) (*notes.NoteRequest, error) {
	data := &notes.NoteRequest{}
	if err := json.Unmarshal(c.Body(), data); err != nil {
		return nil, errors.New("invalid request body")
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}
