package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrshanahan/notetaker/pkg/notes"
	"github.com/mrshanahan/notetaker/pkg/reconcile"
)

type focus int

const (
	focusForm focus = iota
	focusList
)

type storeChangedMsg struct{ change reconcile.Change }

type submittedMsg struct {
	note *notes.Note
	err  error
}

type deletedMsg struct {
	id  string
	err error
}

type loadedMsg struct{ err error }

type connectedMsg struct {
	owner string
	err   error
}

type sessionErrMsg struct{ err error }

type identityMsg struct{ owner string }

type noticeMsg string

type model struct {
	ctx     context.Context
	store   *reconcile.Store
	ctrl    *reconcile.Controller
	session *reconcile.Session
	owner   string

	input textinput.Model
	list  list.Model
	focus focus

	// Selection as last rendered, to notice when it is cleared underneath us.
	editingID string
	// Set while a submit is in flight; further enters are ignored.
	submitting bool

	status    string
	statusErr bool

	width  int
	height int
}

func newModel(ctx context.Context, store *reconcile.Store, ctrl *reconcile.Controller, session *reconcile.Session, owner string) model {
	ti := textinput.New()
	ti.Placeholder = "write a note and press enter"
	ti.CharLimit = 2000
	ti.Prompt = "› "
	ti.Focus()

	m := model{
		ctx:     ctx,
		store:   store,
		ctrl:    ctrl,
		session: session,
		owner:   owner,
		input:   ti,
		list:    newList(),
		focus:   focusForm,
	}
	m.refresh(store.Notes())
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.connect(m.owner))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)
		m.list.SetSize(msg.Width, max(msg.Height-9, 3))
		return m, nil

	case storeChangedMsg:
		m.refresh(msg.change.Notes)
		return m, nil

	case submittedMsg:
		m.submitting = false
		m.refresh(m.store.Notes())
		if msg.err != nil {
			// A vanished note leaves its text behind as a draft.
			m.input.SetValue(m.ctrl.Text())
			m.setError(msg.err)
			return m, nil
		}
		m.input.SetValue("")
		m.setStatus(fmt.Sprintf("saved %s", msg.note.ID))
		return m, nil

	case deletedMsg:
		m.refresh(m.store.Notes())
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("deleted %s", msg.id))
		return m, nil

	case loadedMsg:
		m.refresh(m.store.Notes())
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("loaded %d notes", len(m.store.Notes())))
		return m, nil

	case connectedMsg:
		m.refresh(m.store.Notes())
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.owner = msg.owner
		m.setStatus("connected")
		return m, nil

	case sessionErrMsg:
		m.setError(msg.err)
		return m, nil

	case identityMsg:
		m.setStatus("identity changed, reconnecting")
		return m, m.reconnect(msg.owner)

	case noticeMsg:
		m.setStatus(string(msg))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.forward(msg)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.toggleFocus()
		return m, nil
	case "esc":
		m.ctrl.ClearSelection()
		m.input.SetValue("")
		m.setFocus(focusForm)
		m.refresh(m.store.Notes())
		return m, nil
	case "ctrl+r":
		if m.session != nil && !m.session.Running() {
			m.setStatus("reconnecting…")
			return m, m.connect(m.owner)
		}
		m.setStatus("reloading…")
		return m, m.reload()
	}

	if m.focus == focusList {
		switch msg.String() {
		case "enter":
			it, ok := m.list.SelectedItem().(noteItem)
			if !ok {
				return m, nil
			}
			m.ctrl.SelectNote(it.note)
			m.input.SetValue(it.note.Text)
			m.input.CursorEnd()
			m.setFocus(focusForm)
			m.refresh(m.store.Notes())
			return m, nil
		case "d", "delete":
			it, ok := m.list.SelectedItem().(noteItem)
			if !ok {
				return m, nil
			}
			if it.note.ID == m.ctrl.SelectedID() {
				m.setStatus("finish or cancel (esc) the edit before deleting this note")
				return m, nil
			}
			m.setStatus("deleting…")
			return m, m.delete(it.note.ID)
		}
		return m.forward(msg)
	}

	if msg.Type == tea.KeyEnter {
		if m.submitting {
			m.setStatus("still saving…")
			return m, nil
		}
		text := m.input.Value()
		if err := notes.ValidateText(text); err != nil {
			m.setError(err)
			return m, nil
		}
		m.submitting = true
		m.setStatus("saving…")
		return m, m.submit(text)
	}
	return m.forward(msg)
}

// forward hands a message to whichever component has focus.
func (m model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == focusList {
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetText(m.input.Value())
	return m, cmd
}

func (m *model) toggleFocus() {
	if m.focus == focusForm {
		m.setFocus(focusList)
	} else {
		m.setFocus(focusForm)
	}
}

func (m *model) setFocus(f focus) {
	m.focus = f
	if f == focusForm {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *model) refresh(ns []notes.Note) {
	selectedID := m.ctrl.SelectedID()
	if m.editingID != "" && selectedID == "" {
		if !m.store.Has(m.editingID) {
			m.setStatus("the note being edited was deleted; enter saves it as a new note")
		}
	}
	m.editingID = selectedID

	var cursorID string
	if it, ok := m.list.SelectedItem().(noteItem); ok {
		cursorID = it.note.ID
	}
	items := toItems(ns, selectedID)
	m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(cursorFor(items, cursorID, m.list.Index()))
	}
}

func (m *model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *model) setError(err error) {
	m.status = describe(err)
	m.statusErr = true
}

func describe(err error) string {
	switch {
	case errors.Is(err, notes.ErrUnauthorized):
		return "not authorized: re-authenticate with `notes login --token <token>`"
	case errors.Is(err, notes.ErrNotFound):
		return "that note no longer exists"
	case errors.Is(err, notes.ErrEmptyText):
		return "note text is empty"
	case errors.Is(err, notes.ErrRemoteCall):
		return "gateway unavailable: " + err.Error()
	}
	return err.Error()
}

func (m model) submit(text string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		n, err := ctrl.Submit(ctx, text)
		return submittedMsg{note: n, err: err}
	}
}

func (m model) delete(id string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return deletedMsg{id: id, err: ctrl.DeleteNote(ctx, id)}
	}
}

func (m model) reload() tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		return loadedMsg{err: store.LoadAll(ctx)}
	}
}

func (m model) connect(owner string) tea.Cmd {
	if m.session == nil {
		return m.reload()
	}
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		return connectedMsg{owner: owner, err: session.Start(ctx, owner)}
	}
}

func (m model) reconnect(owner string) tea.Cmd {
	if m.session == nil {
		return m.reload()
	}
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		return connectedMsg{owner: owner, err: session.SetIdentity(ctx, owner)}
	}
}

func (m model) View() string {
	var b strings.Builder

	mode := "new note"
	if id := m.ctrl.SelectedID(); id != "" {
		mode = "editing " + id
	}
	b.WriteString(headerStyle.Render("notes"))
	if m.owner != "" {
		b.WriteString(modeStyle.Render("  @" + m.owner))
	}
	b.WriteString(modeStyle.Render("  " + mode))
	b.WriteString("\n")

	form := formStyle
	if m.focus == focusForm {
		form = focusStyle
	}
	b.WriteString(form.Render(m.input.View()))
	b.WriteString("\n")

	if len(m.list.Items()) == 0 {
		b.WriteString(modeStyle.Render("  no notes yet"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.list.View())
		b.WriteString("\n")
	}

	status := statusStyle
	if m.statusErr {
		status = errorStyle
	}
	b.WriteString(status.Render(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter save/select · tab switch · d delete · esc cancel edit · ctrl+r reload · ctrl+c quit"))

	if m.width > 0 {
		return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
	}
	return b.String()
}
