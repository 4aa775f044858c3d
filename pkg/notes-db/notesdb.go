package notesdb

import (
	"database/sql"
	_ "embed"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

var (
	//go:embed files/create_notes_tables.sql
	CREATE_NOTES_TABLES_SQL string
)

const (
	noteColumns = "id, owner, text, created_on, updated_on"

	// Fixed-width so that stored timestamps sort lexically in time order.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// Initialize opens (creating if necessary) the SQLite database at path and
// ensures the schema exists. Use ":memory:" for a throwaway database.
func Initialize(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// writers, which SQLite does anyway.
	db.SetMaxOpenConns(1)

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, err
	}

	if _, err = tx.Exec(CREATE_NOTES_TABLES_SQL); err != nil {
		tx.Rollback()
		db.Close()
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func NewNote(db *sql.DB, owner string, text string) (*notes.Note, error) {
	stmt, err := db.Prepare("INSERT INTO notes (" + noteColumns + ") VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	id := uuid.NewString()
	now := time.Now().UTC()
	if _, err := stmt.Exec(id, owner, text, formatTime(now), formatTime(now)); err != nil {
		return nil, err
	}

	return GetNote(db, owner, id)
}

// GetNotes returns every note of owner, newest first.
func GetNotes(db *sql.DB, owner string) ([]*notes.Note, error) {
	stmt, err := db.Prepare("SELECT " + noteColumns + " FROM notes WHERE owner = ? ORDER BY created_on DESC, id")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*notes.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, note)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetNote returns (nil, nil) when no note with the id belongs to owner.
func GetNote(db *sql.DB, owner string, id string) (*notes.Note, error) {
	stmt, err := db.Prepare("SELECT " + noteColumns + " FROM notes WHERE owner = ? AND id = ?")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	note, err := scanNote(stmt.QueryRow(owner, id))
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return note, nil
}

// UpdateNote replaces the text of a note and returns the stored result, or
// (nil, nil) when the note does not exist for owner.
func UpdateNote(db *sql.DB, owner string, id string, text string) (*notes.Note, error) {
	stmt, err := db.Prepare("UPDATE notes SET text = ?, updated_on = ? WHERE owner = ? AND id = ?")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	result, err := stmt.Exec(text, formatTime(time.Now().UTC()), owner, id)
	if err != nil {
		return nil, err
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}

	return GetNote(db, owner, id)
}

// DeleteNote reports whether a row was removed.
func DeleteNote(db *sql.DB, owner string, id string) (bool, error) {
	stmt, err := db.Prepare("DELETE FROM notes WHERE owner = ? AND id = ?")
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	result, err := stmt.Exec(owner, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Private

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*notes.Note, error) {
	note := &notes.Note{}
	var createdOn, updatedOn string
	if err := row.Scan(&note.ID, &note.Owner, &note.Text, &createdOn, &updatedOn); err != nil {
		return nil, err
	}
	var err error
	note.CreatedAt, err = parseTime(createdOn)
	if err != nil {
		return nil, err
	}
	note.UpdatedAt, err = parseTime(updatedOn)
	if err != nil {
		return nil, err
	}
	return note, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
