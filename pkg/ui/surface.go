package ui

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/model"
)

// editorState mirrors the card title input. The bubbles textinput lives in
// the Model and is only touched from Update; the board reads this copy from
// whichever goroutine reconciles.
type editorState struct {
	cardID   string
	columnID string
	value    string
	start    int
	end      int
	// moved is set when the board placed the caret; the Model applies it to
	// the textinput on its next sync.
	moved bool
}

// surface implements board.Surface over the rendered layout. The board calls
// it while holding its own lock, so nothing here may call back into the
// board.
type surface struct {
	mu      sync.Mutex
	columns []string
	cards   map[string]string // card id -> column id, for rendered cards
	active  *board.Element
	editor  editorState
	modal   bool
}

var _ board.Surface = (*surface)(nil)

func newSurface() *surface {
	return &surface{cards: make(map[string]string)}
}

func inputID(cardID string) string { return cardID + "/input" }

func columnElemID(id string) string { return "column:" + id }

// sync records the rendered layout. Focus on a card that disappeared falls
// back to its column.
func (s *surface) sync(cols []board.ColumnItems) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = s.columns[:0]
	clear(s.cards)
	for _, col := range cols {
		s.columns = append(s.columns, col.Column.ID)
		for _, c := range col.Cards {
			s.cards[c.ID] = col.Column.ID
		}
	}
	if _, ok := s.cards[s.editor.cardID]; !ok {
		s.editor = editorState{}
	}
	if s.active == nil || s.active.Kind == board.ElementColumn {
		return
	}
	colID, ok := s.cards[s.active.CardID]
	if !ok {
		if s.hasColumnLocked(s.active.ColumnID) {
			el := columnElement(s.active.ColumnID)
			s.active = &el
		} else {
			s.active = nil
		}
		return
	}
	s.active.ColumnID = colID
}

func (s *surface) hasColumnLocked(id string) bool {
	for _, c := range s.columns {
		if c == id {
			return true
		}
	}
	return false
}

func columnElement(id string) board.Element {
	return board.Element{ID: columnElemID(id), ColumnID: id, Kind: board.ElementColumn}
}

func cardElement(cardID, columnID string) board.Element {
	return board.Element{ID: cardID, CardID: cardID, ColumnID: columnID, Kind: board.ElementCard}
}

func inputElement(cardID, columnID string) board.Element {
	return board.Element{ID: inputID(cardID), CardID: cardID, ColumnID: columnID, Kind: board.ElementTextField}
}

func (s *surface) ActiveElement() (board.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return board.Element{}, false
	}
	return *s.active, true
}

func (s *surface) IsWithin(el board.Element, columnID string) bool {
	return el.ColumnID != "" && el.ColumnID == columnID
}

func (s *surface) TextSelection(el board.Element) (int, *int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el.Kind != board.ElementTextField || el.CardID != s.editor.cardID {
		return 0, nil, false
	}
	end := s.editor.end
	return s.editor.start, &end, true
}

// EditableOffset always fails: the terminal UI has no free-form editable
// regions outside modals.
func (s *surface) EditableOffset(board.Element) (int, bool) {
	return 0, false
}

// Elements lists a card's inputs. The placeholder is always rendered as an
// input; a saved card only while its title is being edited.
func (s *surface) Elements(cardID string) []board.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	colID, ok := s.cards[cardID]
	if !ok {
		return nil
	}
	if cardID == model.EmptyCardID || cardID == s.editor.cardID {
		return []board.Element{inputElement(cardID, colID)}
	}
	return nil
}

func (s *surface) CardElement(cardID string) (board.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	colID, ok := s.cards[cardID]
	if !ok {
		return board.Element{}, false
	}
	return cardElement(cardID, colID), true
}

func (s *surface) ColumnElement(columnID string) (board.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasColumnLocked(columnID) {
		return board.Element{}, false
	}
	return columnElement(columnID), true
}

func (s *surface) Focus(el board.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch el.Kind {
	case board.ElementColumn:
		if !s.hasColumnLocked(el.ColumnID) {
			return fmt.Errorf("column %s is not rendered", el.ColumnID)
		}
	case board.ElementCard, board.ElementTextField:
		if _, ok := s.cards[el.CardID]; !ok {
			return fmt.Errorf("card %s is not rendered", el.CardID)
		}
	default:
		return fmt.Errorf("cannot focus %s element", el.Kind)
	}
	switch {
	case el.Kind != board.ElementTextField:
		s.editor = editorState{}
	case s.editor.cardID != el.CardID:
		// Entering a fresh input: only the placeholder starts empty.
		s.editor = editorState{cardID: el.CardID, columnID: el.ColumnID, moved: true}
	}
	s.active = &el
	return nil
}

func (s *surface) SetTextSelection(el board.Element, start, end int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el.Kind != board.ElementTextField || el.CardID != s.editor.cardID {
		return fmt.Errorf("no text field for card %s", el.CardID)
	}
	n := utf8.RuneCountInString(s.editor.value)
	if start < 0 || end < start || end > n {
		return fmt.Errorf("selection %d..%d out of range 0..%d", start, end, n)
	}
	s.editor.start, s.editor.end = start, end
	s.editor.moved = true
	return nil
}

func (s *surface) SetEditableCursor(el board.Element, _ int) error {
	return fmt.Errorf("element %s has no editable region", el.ID)
}

func (s *surface) TextLength(el board.Element) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el.CardID != s.editor.cardID {
		return 0
	}
	return utf8.RuneCountInString(s.editor.value)
}

func (s *surface) ModalOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modal
}

func (s *surface) setModal(open bool) {
	s.mu.Lock()
	s.modal = open
	s.mu.Unlock()
}

// beginEdit puts the title input on a saved card.
func (s *surface) beginEdit(cardID, columnID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := utf8.RuneCountInString(title)
	s.editor = editorState{cardID: cardID, columnID: columnID, value: title, start: n, end: n, moved: true}
	el := inputElement(cardID, columnID)
	s.active = &el
}

// endEdit leaves the input, focusing its card when it is still rendered.
func (s *surface) endEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, col := s.editor.cardID, s.editor.columnID
	s.editor = editorState{}
	if s.active == nil || s.active.Kind != board.ElementTextField {
		return
	}
	if c, ok := s.cards[id]; ok {
		el := cardElement(id, c)
		s.active = &el
		return
	}
	el := columnElement(col)
	s.active = &el
}

// setEditorText records what the user typed and where the caret is.
func (s *surface) setEditorText(value string, pos int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.value = value
	s.editor.start, s.editor.end = pos, pos
}

// takeEditor returns the editor state and clears its moved flag.
func (s *surface) takeEditor() editorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ed := s.editor
	s.editor.moved = false
	return ed
}

// focusedCard returns the card under focus, if any.
func (s *surface) focusedCard() (cardID, columnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", ""
	}
	return s.active.CardID, s.active.ColumnID
}
