package board

import (
	"github.com/vanderheijden86/retro/pkg/debug"
	"github.com/vanderheijden86/retro/pkg/model"
)

// Direction is a vertical movement within a column.
type Direction int

const (
	DirNext Direction = iota
	DirPrev
)

// ColumnCommands is the imperative handle each column registers with the
// board, replacing a view framework's ref mechanism.
type ColumnCommands interface {
	Navigate(dir Direction)
	Focus()
	CreateEmptyCard()
}

// Key identifies a navigation key.
type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyDigit
)

// KeyEvent is a key press as the navigator sees it. Target is the element
// the event was delivered to.
type KeyEvent struct {
	Key    Key
	Digit  int // 1-9 when Key is KeyDigit
	Target Element
}

// ColumnNavigator implements ColumnCommands for one column. Its focused
// index is only a cache; the surface's active element is authoritative.
type ColumnNavigator struct {
	board    *Board
	columnID string
	focused  int
}

// NavigableCards returns the column's cards in the order keyboard movement
// follows: the phase comparator, with grouped children left out (they are
// reached by expanding their group) and the creation placeholder first.
func (c *ColumnNavigator) NavigableCards() []model.Card {
	col, ok := c.board.Column(c.columnID)
	if !ok {
		return nil
	}
	var placeholder []model.Card
	var cards []model.Card
	for _, card := range col.Cards {
		switch {
		case card.IsPlaceholder():
			placeholder = append(placeholder, card)
		case card.IsChild():
		default:
			cards = append(cards, card)
		}
	}
	model.SortCards(cards, model.ComparatorFor(c.board.Phase()))
	return append(placeholder, cards...)
}

// Navigate moves focus one card down (DirNext) or up (DirPrev). Next stops at
// the last card; prev does nothing on the first.
func (c *ColumnNavigator) Navigate(dir Direction) {
	cards := c.NavigableCards()
	if len(cards) == 0 {
		return
	}
	s := c.board.view()

	current := -1
	if s != nil {
		if el, ok := s.ActiveElement(); ok {
			id := el.CardID
			if id == "" && el.Kind == ElementCard {
				id = el.ID
			}
			for i, card := range cards {
				if card.ID == id {
					current = i
					break
				}
			}
		}
	}

	next := 0
	if current >= 0 {
		switch dir {
		case DirNext:
			next = min(current+1, len(cards)-1)
		case DirPrev:
			if current == 0 {
				return
			}
			next = current - 1
		}
	}
	c.focusCard(cards, next)
}

// Focus focuses the column and its first navigable card.
func (c *ColumnNavigator) Focus() {
	s := c.board.view()
	if s == nil {
		return
	}
	cards := c.NavigableCards()
	if len(cards) > 0 {
		c.focusCard(cards, 0)
		return
	}
	if el, ok := s.ColumnElement(c.columnID); ok {
		if err := s.Focus(el); err != nil {
			debug.Warn("focusing column %s: %v", c.columnID, err)
		}
	}
}

// CreateEmptyCard starts a new card at the top of the column.
func (c *ColumnNavigator) CreateEmptyCard() {
	if err := c.board.CreateEmptyCard(c.columnID); err != nil {
		debug.Log("create empty card in %s: %v", c.columnID, err)
	}
}

// FocusedIndex returns the cached position of the last card this column
// focused.
func (c *ColumnNavigator) FocusedIndex() int { return c.focused }

func (c *ColumnNavigator) focusCard(cards []model.Card, i int) {
	c.focused = i
	s := c.board.view()
	if s == nil {
		return
	}
	el, ok := s.CardElement(cards[i].ID)
	if !ok {
		return
	}
	if err := s.Focus(el); err != nil {
		debug.Warn("focusing card %s: %v", cards[i].ID, err)
	}
}

// Navigator maps key events to focus movement across columns and cards.
type Navigator struct {
	board   *Board
	focused int
}

// FocusedColumn returns the index of the focused column.
func (n *Navigator) FocusedColumn() int { return n.focused }

// Suppressed reports whether navigation must ignore ev: typing in a field or
// editable region, or a dialog owning the keyboard.
func (n *Navigator) Suppressed(ev KeyEvent) bool {
	if ev.Target.Kind.IsTextEntry() {
		return true
	}
	s := n.board.view()
	return s != nil && s.ModalOpen()
}

// HandleKey acts on ev and reports whether it was consumed.
func (n *Navigator) HandleKey(ev KeyEvent) bool {
	if n.Suppressed(ev) {
		return false
	}
	ids := n.board.ColumnIDs()
	if len(ids) == 0 {
		return false
	}
	n.syncFromFocus(ids)

	switch ev.Key {
	case KeyLeft:
		n.FocusColumn((n.focused - 1 + len(ids)) % len(ids))
	case KeyRight:
		n.FocusColumn((n.focused + 1) % len(ids))
	case KeyUp:
		n.navigate(ids, DirPrev)
	case KeyDown:
		n.navigate(ids, DirNext)
	case KeyDigit:
		if ev.Digit < 1 || ev.Digit > 9 || ev.Digit > len(ids) {
			return false
		}
		n.FocusColumn(ev.Digit - 1)
	default:
		return false
	}
	return true
}

// Navigate moves within the focused column.
func (n *Navigator) Navigate(dir Direction) {
	ids := n.board.ColumnIDs()
	if len(ids) == 0 {
		return
	}
	n.syncFromFocus(ids)
	n.navigate(ids, dir)
}

// FocusColumn focuses the column at index i, if it exists.
func (n *Navigator) FocusColumn(i int) {
	ids := n.board.ColumnIDs()
	if i < 0 || i >= len(ids) {
		return
	}
	n.focused = i
	if cmds, ok := n.board.Commands(ids[i]); ok {
		cmds.Focus()
	}
}

// CreateEmptyCard starts a new card in the focused column.
func (n *Navigator) CreateEmptyCard() {
	ids := n.board.ColumnIDs()
	if n.focused < 0 || n.focused >= len(ids) {
		return
	}
	if cmds, ok := n.board.Commands(ids[n.focused]); ok {
		cmds.CreateEmptyCard()
	}
}

func (n *Navigator) navigate(ids []string, dir Direction) {
	if n.focused >= len(ids) {
		n.focused = len(ids) - 1
	}
	if cmds, ok := n.board.Commands(ids[n.focused]); ok {
		cmds.Navigate(dir)
	}
}

// syncFromFocus adopts the column of the focused element, since focus may
// have moved without the navigator (a click, a restored caret).
func (n *Navigator) syncFromFocus(ids []string) {
	s := n.board.view()
	if s == nil {
		return
	}
	el, ok := s.ActiveElement()
	if !ok || el.ColumnID == "" {
		return
	}
	for i, id := range ids {
		if id == el.ColumnID {
			n.focused = i
			return
		}
	}
}
