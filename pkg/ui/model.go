// Package ui is the terminal front end of a retro board: columns of cards
// rendered with lipgloss and driven by bubbletea. All board state lives in
// pkg/board; this package only renders it and turns keys into board calls.
package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/debug"
	"github.com/vanderheijden86/retro/pkg/model"
)

const (
	defaultWidth  = 120
	defaultHeight = 40
)

// Options configures a Model.
type Options struct {
	Theme     *Theme
	Anonymous bool // new cards start anonymous
	ShowNotes bool // open with the notes panel visible
}

// Model is the bubbletea model of one board.
type Model struct {
	ctx     context.Context
	board   *board.Board
	surf    *surface
	changes chan struct{}
	unsub   func()

	theme Theme
	keys  keyMap
	help  help.Model
	input textinput.Model

	notes      *notesEditor
	notesVP    viewport.Model
	md         *glamour.TermRenderer
	showNotes  bool
	showHelp   bool
	carousel   bool
	slide      int
	anonymous  bool
	marked     string
	committing bool

	width, height int
	status        string
	statusErr     bool
}

// New builds the model for b and attaches it as the board's surface.
func New(ctx context.Context, b *board.Board, opts Options) Model {
	theme := TestTheme()
	if opts.Theme != nil {
		theme = *opts.Theme
	}
	ti := textinput.New()
	ti.Placeholder = "What's on your mind?"
	ti.CharLimit = 500
	ti.Prompt = ""

	m := Model{
		ctx:       ctx,
		board:     b,
		surf:      newSurface(),
		changes:   make(chan struct{}, 1),
		theme:     theme,
		keys:      defaultKeyMap(),
		help:      help.New(),
		input:     ti,
		notesVP:   viewport.New(defaultWidth, defaultHeight/3),
		showNotes: opts.ShowNotes,
		anonymous: opts.Anonymous,
		width:     defaultWidth,
		height:    defaultHeight,
	}
	changes := m.changes
	m.unsub = b.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	b.SetSurface(m.surf)
	m.surf.sync(b.Columns())
	b.Navigator().FocusColumn(0)
	m.adoptFocus()
	if m.showNotes {
		m.refreshNotes()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), textinput.Blink)
}

// Close detaches the model from the board.
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
	m.board.SetSurface(nil)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The notes form gets every message, not only keys, so huh's internal
	// navigation messages reach it.
	if m.notes != nil {
		return m.updateNotes(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.notesVP.Width = msg.Width
		m.notesVP.Height = max(msg.Height/3, 5)
		m.md = nil
		if m.showNotes {
			m.refreshNotes()
		}
		return m, nil

	case boardChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case opDoneMsg:
		if msg.action == "create card" {
			m.committing = false
		}
		if msg.err != nil {
			m.setError(fmt.Errorf("%s: %w", msg.action, msg.err))
		} else {
			m.setStatus(msg.action + ": done")
		}
		m.refresh()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("copy %s: %w", msg.what, msg.err))
		} else {
			m.setStatus("Copied " + msg.what)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.editing() {
			return m.handleEditKeys(msg)
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if m.carousel {
			return m.handleCarouselKeys(msg)
		}
		return m.handleBoardKeys(msg)
	}

	if m.editing() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	if m.showNotes {
		var cmd tea.Cmd
		m.notesVP, cmd = m.notesVP.Update(msg)
		return m, cmd
	}
	return m, nil
}

// refresh brings the surface in line with the board, re-applies any focus
// the board captured, and copies the editor state into the text input.
func (m *Model) refresh() {
	m.surf.sync(m.board.Columns())
	m.board.RestoreFocus()
	m.adoptFocus()
	if m.marked != "" {
		if _, ok := m.board.Card(m.marked); !ok {
			m.marked = ""
		}
	}
	if m.showNotes {
		m.refreshNotes()
	}
	if slides := len(m.board.Carousel()); m.slide >= slides {
		m.slide = max(slides-1, 0)
	}
}

func (m *Model) adoptFocus() {
	ed := m.surf.takeEditor()
	el, ok := m.surf.ActiveElement()
	if !ok || el.Kind != board.ElementTextField {
		m.input.Blur()
		return
	}
	if ed.moved {
		m.input.SetValue(ed.value)
		m.input.SetCursor(ed.end)
	}
	m.input.Focus()
}

func (m Model) editing() bool {
	el, ok := m.surf.ActiveElement()
	return ok && el.Kind == board.ElementTextField
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(err error) {
	debug.Log("ui: %v", err)
	m.status, m.statusErr = err.Error(), true
}

func (m *Model) refreshNotes() {
	if m.md == nil {
		m.md = newMarkdownRenderer(m.width)
	}
	m.notesVP.SetContent(renderNotes(m.md, m.board.Columns()))
}

func (m Model) handleEditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.committing {
		return m, nil
	}
	cardID, columnID := m.surf.focusedCard()
	switch {
	case key.Matches(msg, m.keys.Submit):
		value := m.input.Value()
		if cardID == model.EmptyCardID {
			m.committing = true
			anonymous := m.anonymous
			return m, runOp(m.ctx, "create card", func(ctx context.Context) error {
				_, err := m.board.CommitCard(ctx, columnID, value, anonymous)
				return err
			})
		}
		m.surf.endEdit()
		m.adoptFocus()
		return m, runOp(m.ctx, "rename", func(ctx context.Context) error {
			return m.board.UpdateTitle(ctx, cardID, value)
		})

	case key.Matches(msg, m.keys.Cancel):
		if cardID == model.EmptyCardID {
			m.board.RemoveCard(columnID, model.EmptyCardID, true)
		} else {
			m.surf.endEdit()
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.surf.setEditorText(m.input.Value(), m.input.Position())
	return m, cmd
}

// navKey maps a key press to the navigator's vocabulary.
func (m Model) navKey(msg tea.KeyMsg) (board.KeyEvent, bool) {
	target, _ := m.surf.ActiveElement()
	ev := board.KeyEvent{Target: target}
	switch {
	case key.Matches(msg, m.keys.Left):
		ev.Key = board.KeyLeft
	case key.Matches(msg, m.keys.Right):
		ev.Key = board.KeyRight
	case key.Matches(msg, m.keys.Up):
		ev.Key = board.KeyUp
	case key.Matches(msg, m.keys.Down):
		ev.Key = board.KeyDown
	case key.Matches(msg, m.keys.Column):
		ev.Key = board.KeyDigit
		ev.Digit = int(msg.Runes[0] - '0')
	default:
		return ev, false
	}
	return ev, true
}

// focusedColumn returns the column holding focus, or the navigator's.
func (m Model) focusedColumn() string {
	if _, col := m.surf.focusedCard(); col != "" {
		return col
	}
	ids := m.board.ColumnIDs()
	if i := m.board.Navigator().FocusedColumn(); i >= 0 && i < len(ids) {
		return ids[i]
	}
	if len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// focusedSavedCard returns the focused card unless it is the placeholder.
func (m Model) focusedSavedCard() (model.Card, bool) {
	id, _ := m.surf.focusedCard()
	if id == "" || id == model.EmptyCardID {
		return model.Card{}, false
	}
	return m.board.Card(id)
}

// adjacentColumn returns the id of the column step places from columnID.
func (m Model) adjacentColumn(columnID string, step int) string {
	ids := m.board.ColumnIDs()
	for i, id := range ids {
		if id == columnID {
			return ids[((i+step)%len(ids)+len(ids))%len(ids)]
		}
	}
	return ""
}

func (m Model) handleBoardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if ev, ok := m.navKey(msg); ok {
		m.board.Navigator().HandleKey(ev)
		m.adoptFocus()
		return m, nil
	}

	card, hasCard := m.focusedSavedCard()
	needCard := func() bool {
		if !hasCard {
			m.setError(errors.New("no card selected"))
		}
		return hasCard
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.New):
		if err := m.board.CreateEmptyCard(m.focusedColumn()); err != nil {
			m.setError(err)
			break
		}
		m.refresh()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Edit):
		if !needCard() {
			break
		}
		m.surf.beginEdit(card.ID, card.ColumnID, card.Title)
		m.adoptFocus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Delete):
		if !needCard() {
			break
		}
		return m, runOp(m.ctx, "delete", func(ctx context.Context) error {
			return m.board.Delete(ctx, card.ID)
		})

	case key.Matches(msg, m.keys.Vote), key.Matches(msg, m.keys.Unvote):
		if !needCard() {
			break
		}
		decrement := key.Matches(msg, m.keys.Unvote)
		return m, runOp(m.ctx, "vote", func(ctx context.Context) error {
			return m.board.Vote(ctx, card.ID, decrement)
		})

	case key.Matches(msg, m.keys.Mark):
		if !needCard() {
			break
		}
		if m.marked == "" || m.marked == card.ID {
			if m.marked == card.ID {
				m.marked = ""
				m.setStatus("Unmarked")
			} else {
				m.marked = card.ID
				m.setStatus("Marked; select a card and press g to group")
			}
			break
		}
		moved := m.marked
		m.marked = ""
		return m, runOp(m.ctx, "group", func(ctx context.Context) error {
			return m.board.Group(ctx, card.ID, moved)
		})

	case key.Matches(msg, m.keys.Ungroup):
		if !needCard() {
			break
		}
		// Children are not focusable on their own, so ungrouping a head
		// releases its whole group.
		ids := []string{card.ID}
		if !card.IsChild() {
			ids = card.ChildIDs
		}
		if len(ids) == 0 {
			m.setError(fmt.Errorf("%q is not in a group", truncate(card.Title, 30)))
			break
		}
		return m, runOp(m.ctx, "ungroup", func(ctx context.Context) error {
			for _, id := range ids {
				if err := m.board.Ungroup(ctx, id, ""); err != nil {
					return err
				}
			}
			return nil
		})

	case key.Matches(msg, m.keys.MoveNext), key.Matches(msg, m.keys.MovePrev):
		if !needCard() {
			break
		}
		step := 1
		if key.Matches(msg, m.keys.MovePrev) {
			step = -1
		}
		target := m.adjacentColumn(card.ColumnID, step)
		return m, runOp(m.ctx, "move", func(ctx context.Context) error {
			return m.board.Move(ctx, card.ID, target)
		})

	case key.Matches(msg, m.keys.Timer):
		if !needCard() {
			break
		}
		return m, runOp(m.ctx, "timer", func(ctx context.Context) error {
			return m.board.ToggleTimer(ctx, card.ID)
		})

	case key.Matches(msg, m.keys.ResetTimer):
		if !needCard() {
			break
		}
		return m, runOp(m.ctx, "reset timer", func(ctx context.Context) error {
			return m.board.ResetTimer(ctx, card.ID)
		})

	case key.Matches(msg, m.keys.Phase):
		next := m.board.Phase().Next()
		return m, runOp(m.ctx, "phase "+next.Title(), func(ctx context.Context) error {
			return m.board.SetPhase(ctx, next)
		})

	case key.Matches(msg, m.keys.EditNotes):
		col, ok := m.board.Column(m.focusedColumn())
		if !ok {
			break
		}
		m.notes = newNotesEditor(col, m.width)
		m.surf.setModal(true)
		return m, m.notes.form.Init()

	case key.Matches(msg, m.keys.Notes):
		m.showNotes = !m.showNotes
		if m.showNotes {
			m.refreshNotes()
		}

	case key.Matches(msg, m.keys.Carousel):
		m.carousel = true
		m.slide = 0

	case key.Matches(msg, m.keys.Copy):
		if !needCard() {
			break
		}
		return m, copyCmd("card", card.Title)

	case key.Matches(msg, m.keys.Anonymous):
		m.anonymous = !m.anonymous
		if m.anonymous {
			m.setStatus("New cards are anonymous")
		} else {
			m.setStatus("New cards show your name")
		}

	case key.Matches(msg, m.keys.Refresh):
		return m, runOp(m.ctx, "refresh", m.board.Refresh)

	case key.Matches(msg, m.keys.Cancel):
		m.marked = ""
		m.status = ""
	}
	return m, nil
}

func (m Model) handleCarouselKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	slides := m.board.Carousel()
	switch {
	case key.Matches(msg, m.keys.Carousel), key.Matches(msg, m.keys.Cancel):
		m.carousel = false
	case key.Matches(msg, m.keys.Right), key.Matches(msg, m.keys.Down):
		if m.slide < len(slides)-1 {
			m.slide++
		}
	case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Up):
		if m.slide > 0 {
			m.slide--
		}
	case key.Matches(msg, m.keys.Copy):
		if m.slide < len(slides) {
			return m, copyCmd("card", slides[m.slide].Card.Title)
		}
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	}
	return m, nil
}

func (m Model) updateNotes(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
		return m, tea.Quit
	}
	f, cmd := m.notes.form.Update(msg)
	if form, ok := f.(*huh.Form); ok {
		m.notes.form = form
	}
	switch m.notes.form.State {
	case huh.StateCompleted:
		columnID, notes := m.notes.columnID, *m.notes.value
		m.closeNotes()
		return m, runOp(m.ctx, "save notes", func(ctx context.Context) error {
			return m.board.UpdateColumnNotes(ctx, columnID, notes)
		})
	case huh.StateAborted:
		m.closeNotes()
		return m, nil
	}
	return m, cmd
}

func (m *Model) closeNotes() {
	m.notes = nil
	m.surf.setModal(false)
}

// statusStyle picks the status line style.
func (m Model) statusStyle() lipgloss.Style {
	if m.statusErr {
		return m.theme.Error
	}
	return m.theme.Status
}
