package board

import (
	"fmt"

	"github.com/vanderheijden86/retro/pkg/debug"
	"github.com/vanderheijden86/retro/pkg/metrics"
)

// ElementKind classifies a focusable element of the rendered board.
type ElementKind int

const (
	ElementOther ElementKind = iota
	// ElementTextField is a single-value input with a start/end selection.
	ElementTextField
	// ElementEditable is a free-form editable region with a single caret.
	ElementEditable
	// ElementCard is a card container.
	ElementCard
	// ElementColumn is a column container.
	ElementColumn
)

func (k ElementKind) String() string {
	switch k {
	case ElementTextField:
		return "text-field"
	case ElementEditable:
		return "editable"
	case ElementCard:
		return "card"
	case ElementColumn:
		return "column"
	default:
		return "other"
	}
}

// IsTextEntry reports whether keystrokes on this element are typed text.
func (k ElementKind) IsTextEntry() bool {
	return k == ElementTextField || k == ElementEditable
}

// Element is a handle to something the view layer can focus.
type Element struct {
	ID       string
	CardID   string // nearest enclosing card, "" when outside any card
	ColumnID string
	Kind     ElementKind
}

// Surface is the view capability the core needs. It is implemented by the
// rendering layer; the core never inspects rendered output directly.
type Surface interface {
	// ActiveElement returns the element holding input focus.
	ActiveElement() (Element, bool)
	// IsWithin reports whether el is inside the given column.
	IsWithin(el Element, columnID string) bool
	// TextSelection returns a text field's selection. end is nil when the
	// field reports no end.
	TextSelection(el Element) (start int, end *int, ok bool)
	// EditableOffset returns the caret offset of the active selection's
	// first range in an editable region.
	EditableOffset(el Element) (offset int, ok bool)
	// Elements returns the focusable elements inside a card, in order.
	Elements(cardID string) []Element
	// CardElement returns the container element of a card.
	CardElement(cardID string) (Element, bool)
	// ColumnElement returns the container element of a column.
	ColumnElement(columnID string) (Element, bool)
	Focus(el Element) error
	SetTextSelection(el Element, start, end int) error
	SetEditableCursor(el Element, offset int) error
	TextLength(el Element) int
	// ModalOpen reports whether a dialog currently owns the keyboard.
	ModalOpen() bool
}

// FocusSnapshot records which card held focus and where the caret was.
type FocusSnapshot struct {
	ColumnID string
	CardID   string
	Kind     ElementKind

	// Text field selection.
	Start, End   int
	HasSelection bool

	// Editable region caret.
	Offset    int
	HasOffset bool
}

// EditingCardID returns the card whose text is being typed, or "".
func EditingCardID(s Surface) string {
	if s == nil {
		return ""
	}
	el, ok := s.ActiveElement()
	if !ok || !el.Kind.IsTextEntry() {
		return ""
	}
	return el.CardID
}

// Capture records the focused element if it lies within columnID.
func Capture(s Surface, columnID string) *FocusSnapshot {
	if s == nil {
		return nil
	}
	el, ok := s.ActiveElement()
	if !ok || !s.IsWithin(el, columnID) {
		return nil
	}

	snap := &FocusSnapshot{ColumnID: columnID, CardID: el.CardID, Kind: el.Kind}
	if snap.CardID == "" {
		snap.CardID = el.ID
	}

	switch el.Kind {
	case ElementTextField:
		if start, end, ok := s.TextSelection(el); ok {
			snap.Start = start
			snap.End = start
			if end != nil {
				snap.End = *end
			}
			snap.HasSelection = true
		}
	case ElementEditable:
		if off, ok := s.EditableOffset(el); ok {
			snap.Offset = off
			snap.HasOffset = true
		}
	}
	return snap
}

// Restore re-focuses the snapshot's card and re-applies its selection. It is
// best effort: failures are recorded as warnings and never propagate.
func Restore(s Surface, snap *FocusSnapshot) {
	if s == nil || snap == nil || snap.CardID == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.FocusFailures.Inc()
			debug.Warn("focus restore for %s panicked: %v", snap.CardID, r)
		}
	}()

	target, ok := restoreTarget(s, snap.CardID)
	if !ok {
		debug.Log("focus restore: card %s no longer rendered", snap.CardID)
		return
	}
	if err := s.Focus(target); err != nil {
		metrics.FocusFailures.Inc()
		debug.Warn("focus restore for %s: %v", snap.CardID, err)
		return
	}

	if err := restoreSelection(s, target, snap); err != nil {
		metrics.FocusFailures.Inc()
		debug.Warn("selection restore for %s: %v", snap.CardID, err)
	}
}

// restoreTarget prefers an input, then an editable region, then the card.
func restoreTarget(s Surface, cardID string) (Element, bool) {
	els := s.Elements(cardID)
	for _, el := range els {
		if el.Kind == ElementTextField {
			return el, true
		}
	}
	for _, el := range els {
		if el.Kind == ElementEditable {
			return el, true
		}
	}
	return s.CardElement(cardID)
}

func restoreSelection(s Surface, el Element, snap *FocusSnapshot) error {
	switch {
	case el.Kind == ElementTextField && snap.HasSelection:
		n := s.TextLength(el)
		start := clamp(snap.Start, 0, n)
		end := clamp(snap.End, start, n)
		return s.SetTextSelection(el, start, end)
	case el.Kind == ElementEditable && snap.HasOffset:
		off := min(snap.Offset, s.TextLength(el))
		if off < 0 {
			return fmt.Errorf("negative caret offset %d", off)
		}
		return s.SetEditableCursor(el, off)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
