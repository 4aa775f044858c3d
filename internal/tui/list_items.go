package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

type noteItem struct {
	note     notes.Note
	selected bool
}

func (i noteItem) FilterValue() string { return i.note.Text }

func (i noteItem) Title() string {
	title := firstLine(i.note.Text)
	if i.selected {
		return "✎ " + title
	}
	return title
}

func (i noteItem) Description() string {
	desc := i.note.ID + " · " + i.note.UpdatedAt.Local().Format("2006-01-02 15:04")
	if i.selected {
		return desc + " · editing"
	}
	return desc
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func newList() list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.BorderForeground(colorAccent).Foreground(colorAccent)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.BorderForeground(colorAccent)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Notes"
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

func toItems(ns []notes.Note, selectedID string) []list.Item {
	items := make([]list.Item, len(ns))
	for i, n := range ns {
		items[i] = noteItem{note: n, selected: n.ID == selectedID}
	}
	return items
}

// The list keeps its cursor on the same note across refreshes where possible.
func cursorFor(items []list.Item, id string, fallback int) int {
	for i, it := range items {
		if it.(noteItem).note.ID == id {
			return i
		}
	}
	if fallback >= len(items) {
		return max(len(items)-1, 0)
	}
	return fallback
}

