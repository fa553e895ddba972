package board

import (
	"testing"

	"github.com/vanderheijden86/retro/pkg/debug"
	"github.com/vanderheijden86/retro/pkg/metrics"
)

func intPtr(v int) *int { return &v }

func TestCapture_TextFieldSelection(t *testing.T) {
	s := newFakeSurface()
	s.setActive(&Element{ID: "x/input", CardID: "x", ColumnID: "A", Kind: ElementTextField})
	s.start, s.end = 3, intPtr(7)

	snap := Capture(s, "A")
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if snap.CardID != "x" || !snap.HasSelection || snap.Start != 3 || snap.End != 7 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestCapture_NilEndCollapsesToStart(t *testing.T) {
	s := newFakeSurface()
	s.setActive(&Element{ID: "x/input", CardID: "x", ColumnID: "A", Kind: ElementTextField})
	s.start, s.end = 5, nil

	snap := Capture(s, "A")
	if snap == nil || snap.Start != 5 || snap.End != 5 {
		t.Errorf("snapshot = %+v, want collapsed selection at 5", snap)
	}
}

func TestCapture_EditableOffset(t *testing.T) {
	s := newFakeSurface()
	s.setActive(&Element{ID: "x/notes", CardID: "x", ColumnID: "A", Kind: ElementEditable})
	s.offset, s.hasOff = 4, true

	snap := Capture(s, "A")
	if snap == nil || !snap.HasOffset || snap.Offset != 4 {
		t.Errorf("snapshot = %+v", snap)
	}

	s.hasOff = false
	snap = Capture(s, "A")
	if snap == nil || snap.HasOffset {
		t.Errorf("no selection should mean no offset, got %+v", snap)
	}
}

func TestCapture_OutsideColumn(t *testing.T) {
	s := newFakeSurface()
	s.setActive(&Element{ID: "x", CardID: "x", ColumnID: "B", Kind: ElementCard})
	if snap := Capture(s, "A"); snap != nil {
		t.Errorf("focus in B should not be captured for A, got %+v", snap)
	}
	s.setActive(nil)
	if snap := Capture(s, "A"); snap != nil {
		t.Errorf("no focus should yield nil, got %+v", snap)
	}
}

func TestCapture_FallsBackToElementID(t *testing.T) {
	s := newFakeSurface()
	s.setActive(&Element{ID: "column:A", ColumnID: "A", Kind: ElementColumn})
	snap := Capture(s, "A")
	if snap == nil || snap.CardID != "column:A" {
		t.Errorf("snapshot = %+v, want element id", snap)
	}
}

func TestRestore_PrefersInputAndClamps(t *testing.T) {
	s := newFakeSurface()
	s.cardCol["x"] = "A"
	s.inputs["x"] = ElementTextField
	s.textLen["x/input"] = 4

	Restore(s, &FocusSnapshot{ColumnID: "A", CardID: "x", Kind: ElementTextField, Start: 2, End: 9, HasSelection: true})

	el, ok := s.ActiveElement()
	if !ok || el.ID != "x/input" {
		t.Fatalf("focused %+v, want the card's input", el)
	}
	if s.selSet != [2]int{2, 4} {
		t.Errorf("selection = %v, want [2 4]", s.selSet)
	}
}

func TestRestore_EditableCaretUsesMin(t *testing.T) {
	s := newFakeSurface()
	s.cardCol["x"] = "A"
	s.inputs["x"] = ElementEditable
	s.textLen["x/input"] = 3

	Restore(s, &FocusSnapshot{CardID: "x", Kind: ElementEditable, Offset: 10, HasOffset: true})
	if s.caretSet != 3 {
		t.Errorf("caret = %d, want 3", s.caretSet)
	}
}

func TestRestore_FallsBackToCard(t *testing.T) {
	s := newFakeSurface()
	s.cardCol["x"] = "A"
	Restore(s, &FocusSnapshot{CardID: "x", Kind: ElementTextField, HasSelection: true})
	el, ok := s.ActiveElement()
	if !ok || el.Kind != ElementCard || el.CardID != "x" {
		t.Errorf("focused %+v, want card container", el)
	}
}

func TestRestore_SwallowsPanicsAndErrors(t *testing.T) {
	metrics.SetEnabled(true)
	metrics.ResetAll()
	debug.ResetWarnings()

	s := newFakeSurface()
	s.cardCol["x"] = "A"
	s.inputs["x"] = ElementTextField
	s.panicSel = true

	Restore(s, &FocusSnapshot{CardID: "x", Kind: ElementTextField, Start: 1, End: 1, HasSelection: true})
	if metrics.FocusFailures.Value() != 1 {
		t.Errorf("FocusFailures = %d, want 1", metrics.FocusFailures.Value())
	}
	if debug.LastWarning() == "" {
		t.Error("expected a warning to be recorded")
	}

	s.panicSel = false
	s.focusErr = errBoom
	Restore(s, &FocusSnapshot{CardID: "x"})
	if metrics.FocusFailures.Value() != 2 {
		t.Errorf("FocusFailures = %d, want 2", metrics.FocusFailures.Value())
	}
}

func TestRestore_NilInputs(t *testing.T) {
	Restore(nil, &FocusSnapshot{CardID: "x"})
	Restore(newFakeSurface(), nil)
	Restore(newFakeSurface(), &FocusSnapshot{CardID: "gone"})
}

func TestEditingCardID(t *testing.T) {
	s := newFakeSurface()
	if got := EditingCardID(s); got != "" {
		t.Errorf("no focus: %q", got)
	}
	s.setActive(&Element{ID: "x", CardID: "x", Kind: ElementCard})
	if got := EditingCardID(s); got != "" {
		t.Errorf("card container is not editing: %q", got)
	}
	s.setActive(&Element{ID: "x/input", CardID: "x", Kind: ElementTextField})
	if got := EditingCardID(s); got != "x" {
		t.Errorf("EditingCardID = %q, want x", got)
	}
}
