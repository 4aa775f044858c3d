package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrshanahan/notetaker/pkg/notes"
	"github.com/mrshanahan/notetaker/pkg/reconcile"
)

// memoryGateway serves the four calls from a map. Its streams never carry
// events; they only end when told to.
type memoryGateway struct {
	mu        sync.Mutex
	notes     map[string]notes.Note
	next      int
	creates   int
	failAll   error
	streamErr error
	streams   []*memoryStream
}

type memoryStream struct {
	events chan notes.Event
	once   sync.Once

	mu  sync.Mutex
	err error
}

func (s *memoryStream) Events() <-chan notes.Event { return s.events }

func (s *memoryStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *memoryStream) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

func (s *memoryStream) end(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.Close()
}

func newMemoryGateway(texts ...string) *memoryGateway {
	g := &memoryGateway{notes: map[string]notes.Note{}}
	for _, text := range texts {
		g.add(text)
	}
	return g
}

func (g *memoryGateway) add(text string) notes.Note {
	g.next++
	at := time.Date(2024, 1, 1, 0, g.next, 0, 0, time.UTC)
	n := notes.Note{ID: fmt.Sprintf("n%d", g.next), Text: text, CreatedAt: at, UpdatedAt: at}
	g.notes[n.ID] = n
	return n
}

func (g *memoryGateway) ListNotes(ctx context.Context) ([]*notes.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll != nil {
		return nil, g.failAll
	}
	var result []*notes.Note
	for _, n := range g.notes {
		n := n
		result = append(result, &n)
	}
	return result, nil
}

func (g *memoryGateway) CreateNote(ctx context.Context, text string) (*notes.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll != nil {
		return nil, g.failAll
	}
	g.creates++
	n := g.add(text)
	return &n, nil
}

func (g *memoryGateway) UpdateNote(ctx context.Context, id string, text string) (*notes.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll != nil {
		return nil, g.failAll
	}
	n, ok := g.notes[id]
	if !ok {
		return nil, notes.ErrNotFound
	}
	n.Text = text
	g.notes[id] = n
	return &n, nil
}

func (g *memoryGateway) DeleteNote(ctx context.Context, id string) (*notes.DeletedNote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll != nil {
		return nil, g.failAll
	}
	if _, ok := g.notes[id]; !ok {
		return nil, notes.ErrNotFound
	}
	delete(g.notes, id)
	return &notes.DeletedNote{ID: id}, nil
}

func (g *memoryGateway) OnCreated(ctx context.Context, owner string) (reconcile.Stream, error) {
	return g.subscribe()
}

func (g *memoryGateway) OnUpdated(ctx context.Context, owner string) (reconcile.Stream, error) {
	return g.subscribe()
}

func (g *memoryGateway) OnDeleted(ctx context.Context, owner string) (reconcile.Stream, error) {
	return g.subscribe()
}

func (g *memoryGateway) subscribe() (reconcile.Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.streamErr != nil {
		return nil, g.streamErr
	}
	st := &memoryStream{events: make(chan notes.Event)}
	g.streams = append(g.streams, st)
	return st, nil
}

func (g *memoryGateway) setStreamErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.streamErr = err
}

func (g *memoryGateway) lastStream() *memoryStream {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.streams[len(g.streams)-1]
}

func setupModel(t *testing.T, texts ...string) (model, *reconcile.Store, *memoryGateway) {
	gw := newMemoryGateway(texts...)
	store := reconcile.NewStore(gw)
	require.NoError(t, store.LoadAll(context.Background()))
	ctrl := reconcile.NewController(store, gw)
	t.Cleanup(ctrl.Close)

	m := newModel(context.Background(), store, ctrl, nil, "alice")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(model), store, gw
}

// setupSessionModel builds a model backed by a live session. Nothing is
// connected until the returned model's connect command runs.
func setupSessionModel(t *testing.T, texts ...string) (model, *reconcile.Session, *memoryGateway) {
	gw := newMemoryGateway(texts...)
	store := reconcile.NewStore(gw)
	ctrl := reconcile.NewController(store, gw)
	t.Cleanup(ctrl.Close)
	session := reconcile.NewSession(gw, store)
	t.Cleanup(session.Close)

	m := newModel(context.Background(), store, ctrl, session, "alice")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(model), session, gw
}

// press runs one key through Update and then any command it returns, feeding
// the command's message back in, the way the program loop would.
func press(t *testing.T, m model, key tea.KeyMsg) model {
	t.Helper()
	next, cmd := m.Update(key)
	m = next.(model)
	return drain(t, m, cmd)
}

func drain(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case submittedMsg, deletedMsg, loadedMsg, connectedMsg:
		next, _ := m.Update(msg)
		return next.(model)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// typeText sends runes to the form. Their commands are only cursor blinks
// and are dropped.
func typeText(t *testing.T, m model, text string) model {
	for _, r := range text {
		next, _ := m.Update(key(string(r)))
		m = next.(model)
	}
	return m
}

func listIDs(m model) []string {
	var result []string
	for _, it := range m.list.Items() {
		result = append(result, it.(noteItem).note.ID)
	}
	return result
}

func TestCreateNoteFromForm(t *testing.T) {
	m, store, _ := setupModel(t, "first")

	m = typeText(t, m, "second")
	assert.Equal(t, "second", m.ctrl.Text())
	m = press(t, m, key("enter"))

	require.Len(t, store.Notes(), 2)
	assert.Equal(t, "second", store.Notes()[0].Text)
	assert.Equal(t, []string{store.Notes()[0].ID, store.Notes()[1].ID}, listIDs(m))
	assert.Empty(t, m.input.Value())
	assert.False(t, m.statusErr)
	assert.Contains(t, m.status, "saved")
}

func TestEmptySubmitIsRejectedLocally(t *testing.T) {
	m, store, _ := setupModel(t)

	m = typeText(t, m, "   ")
	next, cmd := m.Update(key("enter"))
	m = next.(model)

	assert.Nil(t, cmd)
	assert.True(t, m.statusErr)
	assert.Equal(t, "note text is empty", m.status)
	assert.Empty(t, store.Notes())
}

func TestSelectAndEditNote(t *testing.T) {
	m, store, _ := setupModel(t, "old text")
	id := store.Notes()[0].ID

	m = press(t, m, key("tab"))
	assert.Equal(t, focusList, m.focus)
	m = press(t, m, key("enter"))

	assert.Equal(t, focusForm, m.focus)
	assert.Equal(t, id, m.ctrl.SelectedID())
	assert.Equal(t, "old text", m.input.Value())
	assert.True(t, m.list.Items()[0].(noteItem).selected)
	assert.Contains(t, m.View(), "editing "+id)

	m = typeText(t, m, "!")
	m = press(t, m, key("enter"))

	got, _ := store.Get(id)
	assert.Equal(t, "old text!", got.Text)
	assert.Empty(t, m.ctrl.SelectedID())
	assert.Len(t, store.Notes(), 1)
}

func TestDeleteHighlightedNote(t *testing.T) {
	m, store, _ := setupModel(t, "a", "b")

	m = press(t, m, key("tab"))
	m = press(t, m, key("d"))

	require.Len(t, store.Notes(), 1)
	assert.Equal(t, "a", store.Notes()[0].Text)
	assert.Len(t, m.list.Items(), 1)
	assert.Contains(t, m.status, "deleted")
}

func TestSelectedNoteCannotBeDeleted(t *testing.T) {
	m, store, _ := setupModel(t, "a")

	m = press(t, m, key("tab"))
	m = press(t, m, key("enter"))
	m = press(t, m, key("tab"))
	next, cmd := m.Update(key("d"))
	m = next.(model)

	assert.Nil(t, cmd)
	assert.Len(t, store.Notes(), 1)
	assert.Contains(t, m.status, "before deleting")
}

func TestEscClearsSelection(t *testing.T) {
	m, _, _ := setupModel(t, "a")
	m = press(t, m, key("tab"))
	m = press(t, m, key("enter"))
	require.NotEmpty(t, m.ctrl.SelectedID())

	m = press(t, m, key("esc"))
	assert.Empty(t, m.ctrl.SelectedID())
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "new note")
}

func TestRemoteDeleteOfEditedNote(t *testing.T) {
	m, store, _ := setupModel(t, "a")
	m = press(t, m, key("tab"))
	m = press(t, m, key("enter"))

	var change reconcile.Change
	unsubscribe := store.Subscribe(func(c reconcile.Change) { change = c })
	store.ApplyDeleted(m.ctrl.SelectedID())
	unsubscribe()
	next, _ := m.Update(storeChangedMsg{change: change})
	m = next.(model)

	assert.Empty(t, m.ctrl.SelectedID())
	assert.Empty(t, m.list.Items())
	assert.Equal(t, "a", m.input.Value())
	assert.Contains(t, m.status, "deleted")
}

func TestUnauthorizedShowsReauthNotice(t *testing.T) {
	m, _, gw := setupModel(t)
	gw.failAll = notes.ErrUnauthorized

	m = typeText(t, m, "x")
	m = press(t, m, key("enter"))

	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "notes login")
	assert.Equal(t, "x", m.input.Value())
}

func TestReload(t *testing.T) {
	m, _, gw := setupModel(t, "a")
	gw.mu.Lock()
	gw.add("added elsewhere")
	gw.mu.Unlock()

	m = press(t, m, key("ctrl+r"))
	assert.Len(t, m.list.Items(), 2)
	assert.Equal(t, "loaded 2 notes", m.status)
}

func TestViewShowsEmptyState(t *testing.T) {
	m, _, _ := setupModel(t)
	view := m.View()
	assert.Contains(t, view, "no notes yet")
	assert.True(t, strings.Contains(view, "@alice"))
}

func TestQuit(t *testing.T) {
	m, _, _ := setupModel(t)
	_, cmd := m.Update(key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSubmitInFlightIgnoresEnter(t *testing.T) {
	m, store, gw := setupModel(t)

	m = typeText(t, m, "once")
	next, submit := m.Update(key("enter"))
	m = next.(model)
	require.NotNil(t, submit)
	assert.True(t, m.submitting)

	next, again := m.Update(key("enter"))
	m = next.(model)
	assert.Nil(t, again)
	assert.Equal(t, "still saving…", m.status)

	m = drain(t, m, submit)
	assert.False(t, m.submitting)
	assert.Equal(t, 1, gw.creates)
	require.Len(t, store.Notes(), 1)
	assert.Equal(t, "once", store.Notes()[0].Text)

	m = typeText(t, m, "twice")
	m = press(t, m, key("enter"))
	assert.Equal(t, 2, gw.creates)
}

func TestFailedSubmitAllowsRetry(t *testing.T) {
	m, store, gw := setupModel(t)
	gw.failAll = fmt.Errorf("%w: connection refused", notes.ErrRemoteCall)

	m = typeText(t, m, "x")
	m = press(t, m, key("enter"))
	assert.False(t, m.submitting)
	assert.True(t, m.statusErr)

	gw.failAll = nil
	m = press(t, m, key("enter"))
	assert.Len(t, store.Notes(), 1)
	assert.Contains(t, m.status, "saved")
}

func TestConnectStartsSession(t *testing.T) {
	m, session, _ := setupSessionModel(t, "a")

	m = drain(t, m, m.connect(m.owner))
	assert.Equal(t, "connected", m.status)
	assert.True(t, session.Running())
	assert.Equal(t, "alice", session.Owner())
	assert.Len(t, m.list.Items(), 1)
}

func TestReloadRestartsFailedConnect(t *testing.T) {
	m, session, gw := setupSessionModel(t, "a")
	gw.setStreamErr(fmt.Errorf("%w: GET /events: connection refused", notes.ErrRemoteCall))

	m = drain(t, m, m.connect(m.owner))
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "gateway unavailable")
	assert.Nil(t, session.Done())
	assert.False(t, session.Running())

	gw.setStreamErr(nil)
	next, cmd := m.Update(key("ctrl+r"))
	m = next.(model)
	assert.Equal(t, "reconnecting…", m.status)
	m = drain(t, m, cmd)

	require.NotNil(t, session.Done())
	assert.True(t, session.Running())
	assert.Equal(t, "connected", m.status)
	assert.False(t, m.statusErr)
	assert.Len(t, m.list.Items(), 1)
}

func TestReloadRestartsSessionEndedByUnauthorized(t *testing.T) {
	m, session, gw := setupSessionModel(t)
	m = drain(t, m, m.connect(m.owner))
	require.True(t, session.Running())
	ended := session.Done()

	gw.lastStream().end(notes.ErrUnauthorized)
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	assert.False(t, session.Running())

	m = press(t, m, key("ctrl+r"))
	assert.True(t, session.Running())
	assert.NotEqual(t, ended, session.Done())
	assert.Equal(t, "connected", m.status)
}

func TestReloadKeepsRunningSession(t *testing.T) {
	m, session, gw := setupSessionModel(t, "a")
	m = drain(t, m, m.connect(m.owner))
	running := session.Done()
	gw.mu.Lock()
	gw.add("added elsewhere")
	streams := len(gw.streams)
	gw.mu.Unlock()

	m = press(t, m, key("ctrl+r"))
	assert.Equal(t, "loaded 2 notes", m.status)
	assert.Equal(t, running, session.Done())
	gw.mu.Lock()
	assert.Equal(t, streams, len(gw.streams))
	gw.mu.Unlock()
}

func TestUnauthorizedConnect(t *testing.T) {
	m, session, gw := setupSessionModel(t)
	gw.setStreamErr(notes.ErrUnauthorized)

	m = drain(t, m, m.connect(m.owner))
	assert.Contains(t, m.status, "notes login")
	assert.False(t, session.Running())
}
