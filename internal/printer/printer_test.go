package printer

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	oldOut, oldErr, oldNoColor := Stdout, Stderr, color.NoColor
	Stdout, Stderr, color.NoColor = stdout, stderr, true
	t.Cleanup(func() {
		Stdout, Stderr, color.NoColor = oldOut, oldErr, oldNoColor
	})
	return stdout, stderr
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "This is a test error", nil)
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, stderr.String(), "This is a test error")
	})

	t.Run("numbers multiple suggestions", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "Explanation", []string{"First option", "Second option"})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, stderr.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestSuccessAddsCheckmarkOnce(t *testing.T) {
	stdout, _ := capture(t)
	Success("done\n")
	Success("✓ already\n")
	assert.Equal(t, "✓ done\n✓ already\n", stdout.String())
}

func TestNoteFlattensText(t *testing.T) {
	stdout, _ := capture(t)
	Note(notes.Note{ID: "abc", Text: "line one\n  line two", UpdatedAt: time.Now()})
	out := stdout.String()
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "line one line two\n")
}

func TestEvent(t *testing.T) {
	stdout, _ := capture(t)
	n := notes.Note{ID: "n1", Text: "hi", UpdatedAt: time.Now()}
	Event(notes.CreatedEvent(&n))
	Event(notes.DeletedEvent("alice", "n2"))

	out := stdout.String()
	assert.Contains(t, out, "+ n1")
	assert.Contains(t, out, "- n2\n")
}

func TestColorEnabled(t *testing.T) {
	t.Run("buffer", func(t *testing.T) {
		assert.False(t, ColorEnabled(&bytes.Buffer{}))
	})

	t.Run("pipe", func(t *testing.T) {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		t.Cleanup(func() { r.Close(); w.Close() })
		assert.False(t, ColorEnabled(w))
	})

	t.Run("NO_COLOR", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		assert.False(t, ColorEnabled(os.Stdout))
	})

	t.Run("dumb terminal", func(t *testing.T) {
		t.Setenv("TERM", "dumb")
		assert.False(t, ColorEnabled(os.Stdout))
	})
}

func TestPipedEventsArePlain(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	oldOut, oldNoColor := Stdout, color.NoColor
	Stdout, color.NoColor = w, !ColorEnabled(w)
	t.Cleanup(func() { Stdout, color.NoColor = oldOut, oldNoColor })

	Event(notes.DeletedEvent("alice", "n1"))
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "- n1\n", string(out))
}
