package printer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

func init() {
	color.NoColor = !ColorEnabled(os.Stdout)
}

// ColorEnabled reports whether w is a terminal that should get color. Pipes,
// files, NO_COLOR and TERM=dumb all turn color off.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Success prints a message in green with a checkmark prefix.
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(Stdout, msg)
}

func Info(format string, a ...any) {
	fmt.Fprintf(Stdout, format, a...)
}

// Warning prints a message in yellow on stderr.
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(Stderr, msg)
}

// Error prints a formatted error with an explanation and suggested fixes to
// stderr, and returns a plain error carrying only the title for cobra.
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(Stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(Stderr, "%s\n", explanation)
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(Stderr, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(Stderr, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(Stderr, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(Stderr, "  %d. %s\n", i+1, suggestion)
			}
		}
	}
	return fmt.Errorf("%s", title)
}

// Step prints a progress message in cyan.
func Step(format string, a ...any) {
	cyan.Fprintf(Stdout, "→ %s", fmt.Sprintf(format, a...))
}

// Note prints one note as a single row: id, last change and text.
func Note(n notes.Note) {
	cyan.Fprint(Stdout, n.ID)
	faint.Fprintf(Stdout, "  %s  ", n.UpdatedAt.Local().Format(time.DateTime))
	fmt.Fprintln(Stdout, oneLine(n.Text))
}

// Event prints a live notification. Created notes get a "+", updates a "~"
// and deletions a "-".
func Event(e notes.Event) {
	switch e.Kind {
	case notes.EventCreated:
		green.Fprint(Stdout, "+ ")
	case notes.EventUpdated:
		yellow.Fprint(Stdout, "~ ")
	case notes.EventDeleted:
		red.Fprint(Stdout, "- ")
	}
	if e.Note == nil {
		cyan.Fprintln(Stdout, e.ID)
		return
	}
	Note(*e.Note)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
