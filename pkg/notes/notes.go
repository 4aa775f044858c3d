package notes

import (
	"strings"
	"time"
)

type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteRequest is the body accepted by the create and update endpoints.
// Server-assigned fields are not part of it.
type NoteRequest struct {
	Text string `json:"text"`
}

func (r NoteRequest) Validate() error {
	return ValidateText(r.Text)
}

// DeletedNote is the response body of a delete, and the payload of a
// deleted notification.
type DeletedNote struct {
	ID string `json:"id"`
}

func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}
