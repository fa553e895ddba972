package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/retro/pkg/board"
)

// notesEditor is the modal form for a column's notes.
type notesEditor struct {
	form     *huh.Form
	columnID string
	value    *string
}

func newNotesEditor(col board.ColumnItems, width int) *notesEditor {
	value := col.Column.Notes
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title(fmt.Sprintf("Notes for %s", col.Column.Title)).
				Description("Markdown. Everyone on the board sees these.").
				CharLimit(4000).
				Lines(8).
				Value(&value),
		),
	).WithTheme(huh.ThemeDracula()).WithShowHelp(true)
	if width > 0 {
		form = form.WithWidth(min(width-4, 80))
	}
	return &notesEditor{form: form, columnID: col.Column.ID, value: &value}
}

// notesMarkdown gathers every column's notes into one document.
func notesMarkdown(cols []board.ColumnItems) string {
	var sb strings.Builder
	for _, col := range cols {
		notes := strings.TrimSpace(col.Column.Notes)
		if notes == "" {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", col.Column.Title, notes)
	}
	if sb.Len() == 0 {
		return "_No notes yet. Press N on a column to add some._\n"
	}
	return sb.String()
}

// renderNotes renders the notes panel. Falls back to plain markdown when
// glamour cannot render.
func renderNotes(md *glamour.TermRenderer, cols []board.ColumnItems) string {
	src := notesMarkdown(cols)
	if md == nil {
		return src
	}
	out, err := md.Render(src)
	if err != nil {
		return src
	}
	return strings.TrimRight(out, "\n ")
}

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}
