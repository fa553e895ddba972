package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/model"
)

const (
	minColumnWidth = 24
	maxTitleLines  = 4
)

func (m Model) View() string {
	v := m.board.Snapshot()
	header := m.renderHeader(v)
	footer := m.renderFooter()

	var body string
	switch {
	case m.notes != nil:
		body = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, m.notes.form.View())
	case m.showHelp:
		box := m.theme.Card.BorderForeground(m.theme.Primary).Render(
			m.help.FullHelpView(m.keys.FullHelp()))
		body = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
	case m.carousel:
		body = m.renderCarousel(v)
	default:
		body = m.renderColumns(v)
	}
	if m.showNotes && m.notes == nil {
		panel := m.theme.Card.Width(max(m.width-2, 10)).Render(m.notesVP.View())
		body = lipgloss.JoinVertical(lipgloss.Left, body, panel)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) bodyHeight() int {
	h := m.height - 2
	if m.showNotes {
		h -= m.notesVP.Height + 2
	}
	return max(h, 3)
}

func (m Model) renderHeader(v board.View) string {
	title := v.Board.Title
	if title == "" {
		title = "Retrospective"
	}
	parts := []string{m.theme.Header.Render(title)}

	phase := m.theme.Renderer.NewStyle().
		Foreground(m.theme.PhaseColor(v.Board.Phase)).
		Bold(true).
		Render("● " + v.Board.Phase.Title())
	parts = append(parts, phase)

	if v.Board.Phase == model.PhaseVote {
		spent := 0
		for _, col := range v.Columns {
			for _, c := range col.Cards {
				spent += c.VotesBy(v.User.ID)
			}
		}
		parts = append(parts, m.theme.Votes.Render(fmt.Sprintf("votes %d/%d", spent, v.Board.VoteCap())))
	}
	if m.anonymous {
		parts = append(parts, m.theme.MutedText.Render("anonymous"))
	}
	if v.User.DisplayName != "" {
		parts = append(parts, m.theme.MutedText.Render("as "+v.User.DisplayName))
	}
	if !v.Loaded {
		parts = append(parts, m.theme.Error.Render("offline: showing last known cards"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderFooter() string {
	if m.status != "" {
		return m.statusStyle().Render(truncate(m.status, max(m.width, 10)))
	}
	return m.help.ShortHelpView(m.keys.ShortHelp())
}

// columnWidth splits the terminal width across n columns.
func (m Model) columnWidth(n int) int {
	if n <= 0 {
		return m.width
	}
	return max((m.width-n)/n, minColumnWidth)
}

func (m Model) renderColumns(v board.View) string {
	if len(v.Columns) == 0 {
		return m.theme.MutedText.Render("This board has no columns.")
	}
	width := m.columnWidth(len(v.Columns))
	focusedID, focusedCol := m.surf.focusedCard()

	rendered := make([]string, 0, len(v.Columns))
	for _, col := range v.Columns {
		rendered = append(rendered, m.renderColumn(v, col, width, focusedID, focusedCol))
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	return m.theme.Renderer.NewStyle().MaxHeight(m.bodyHeight()).Render(out)
}

// columnOrder returns a column's top-level cards in display order, the
// placeholder first.
func columnOrder(col board.ColumnItems, phase model.Phase) []model.Card {
	var placeholder, heads []model.Card
	for _, c := range col.Cards {
		switch {
		case c.IsPlaceholder():
			placeholder = append(placeholder, c)
		case c.IsChild():
		default:
			heads = append(heads, c)
		}
	}
	model.SortCards(heads, model.ComparatorFor(phase))
	return append(placeholder, heads...)
}

func (m Model) renderColumn(v board.View, col board.ColumnItems, width int, focusedID, focusedCol string) string {
	accent := AccentColor(col.Column)
	count := 0
	for _, c := range col.Cards {
		if !c.IsPlaceholder() {
			count++
		}
	}
	headStyle := m.theme.Renderer.NewStyle().
		Foreground(accent).
		Bold(true).
		Width(width).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(accent)
	if focusedID == "" && focusedCol == col.Column.ID {
		headStyle = headStyle.Underline(true)
	}
	title := col.Column.Title
	if col.Column.Notes != "" {
		title += " ✎"
	}
	lines := []string{headStyle.Render(truncate(fmt.Sprintf("%s (%d)", title, count), width))}

	byID := make(map[string]model.Card, len(col.Cards))
	for _, c := range col.Cards {
		byID[c.ID] = c
	}
	for _, c := range columnOrder(col, v.Board.Phase) {
		var children []model.Card
		for _, id := range c.ChildIDs {
			if child, ok := byID[id]; ok {
				children = append(children, child)
			}
		}
		lines = append(lines, m.renderCard(v, c, children, width, c.ID == focusedID))
	}
	return m.theme.Renderer.NewStyle().Width(width).MarginRight(1).Render(
		lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderCard(v board.View, c model.Card, children []model.Card, width int, focused bool) string {
	style := m.theme.Card
	switch {
	case focused:
		style = m.theme.Focused
	case c.ID == m.marked:
		style = m.theme.Marked
	}
	inner := max(width-4, 8)

	var body []string
	switch {
	case focused && m.editing():
		in := m.input
		in.Width = inner
		body = append(body, in.View())
	case c.IsPlaceholder():
		body = append(body, m.theme.MutedText.Render("…"))
	default:
		body = append(body, wrapTitle(c.Title, inner, maxTitleLines)...)
	}
	if !c.IsPlaceholder() {
		body = append(body, m.cardMeta(v, c, inner))
	}
	for _, child := range children {
		body = append(body, m.theme.Child.Render("↳ "+truncate(child.Title, inner-4)))
	}
	return style.Width(width - 2).Render(strings.Join(body, "\n"))
}

// cardMeta renders the author, vote, group and timer line of a card.
func (m Model) cardMeta(v board.View, c model.Card, width int) string {
	parts := []string{m.theme.MutedText.Render(truncate(authorLabel(c), width/2))}
	if c.UpVotes > 0 || v.Board.Phase == model.PhaseVote {
		votes := fmt.Sprintf("▲%d", c.UpVotes)
		if mine := c.VotesBy(v.User.ID); mine > 0 {
			votes += fmt.Sprintf(" (%d)", mine)
		}
		parts = append(parts, m.theme.Votes.Render(votes))
	}
	if n := len(c.ChildIDs); n > 0 {
		parts = append(parts, m.theme.MutedText.Render(fmt.Sprintf("+%d", n)))
	}
	if c.TimerSecs > 0 || c.TimerRunning || v.Board.Phase == model.PhaseAct {
		timer := "⏱ " + model.FormatTimer(c.TimerSecs)
		if c.TimerRunning {
			parts = append(parts, m.theme.TimerLive.Render(timer))
		} else {
			parts = append(parts, m.theme.Timer.Render(timer))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderCarousel(v board.View) string {
	slides := board.CarouselOf(v.Columns, v.Board.Phase)
	if len(slides) == 0 {
		return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center,
			m.theme.MutedText.Render("No cards yet. Press f to go back."))
	}
	i := min(m.slide, len(slides)-1)
	s := slides[i]
	width := min(m.width-4, 80)
	inner := max(width-4, 10)

	colStyle := m.theme.Renderer.NewStyle().Foreground(AccentColor(s.Column)).Bold(true)
	lines := []string{colStyle.Render(s.Column.Title), ""}
	lines = append(lines, wrapTitle(s.Card.Title, inner, 10)...)
	lines = append(lines, "", m.cardMeta(v, s.Card, inner))
	for _, child := range s.Children {
		lines = append(lines, m.theme.Child.Render("↳ "+truncate(child.Title, inner-4)))
	}
	lines = append(lines, "", m.theme.MutedText.Render(fmt.Sprintf("%d / %d   ←/→ to browse, f to exit", i+1, len(slides))))

	box := m.theme.Focused.Width(width).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
}
