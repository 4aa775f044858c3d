package cli

import (
	"errors"

	"github.com/mrshanahan/notetaker/internal/printer"
	"github.com/mrshanahan/notetaker/pkg/notes"
)

// reportError prints err with a suggestion matching its class and returns the
// short error cobra exits with.
func reportError(action string, err error) error {
	var remote *notes.RemoteCallError
	switch {
	case errors.Is(err, notes.ErrUnauthorized):
		return printer.Error(
			"not authorized",
			"The gateway rejected the credentials for "+action+".",
			[]string{"Log in again:\n  notes login --token <token>"},
		)
	case errors.Is(err, notes.ErrNotFound):
		return printer.Error(
			"note not found",
			"No note with that id exists for this user.",
			[]string{"List notes and their ids:\n  notes list"},
		)
	case errors.Is(err, notes.ErrEmptyText):
		return printer.Error("note text is empty", "A note needs some text.", nil)
	case errors.As(err, &remote):
		return printer.Error(
			"gateway unavailable",
			"Could not "+action+": "+err.Error(),
			[]string{
				"Check that the gateway is running and reachable",
				"Point at another gateway with --server or NOTES_SERVER_URL",
			},
		)
	}
	return printer.Error("could not "+action, err.Error(), nil)
}

func configError(path string, err error) error {
	return printer.Error(
		"invalid configuration",
		err.Error(),
		[]string{"Fix or remove " + path + ", or run:\n  notes login --token <token> --server <url>"},
	)
}
