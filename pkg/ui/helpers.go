package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/retro/pkg/model"
)

// truncateRunesHelper truncates a string to max visual width (cells), adding suffix if needed.
// Uses go-runewidth to handle wide characters correctly.
func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}

	width := runewidth.StringWidth(s)
	if width <= maxWidth {
		return s
	}

	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		// Even suffix is too wide, truncate suffix
		return runewidth.Truncate(suffix, maxWidth, "")
	}

	targetWidth := maxWidth - suffixWidth
	return runewidth.Truncate(s, targetWidth, "") + suffix
}

// truncate truncates string s to maxWidth cells
func truncate(s string, maxWidth int) string {
	return truncateRunesHelper(s, maxWidth, "…")
}

// wrapTitle breaks a card title into at most maxLines lines of width cells,
// truncating the last one.
func wrapTitle(title string, width, maxLines int) []string {
	if width <= 0 || maxLines <= 0 {
		return nil
	}
	words := strings.Fields(title)
	var lines []string
	var cur strings.Builder
	curWidth := 0
	for i, w := range words {
		ww := runewidth.StringWidth(w)
		if curWidth > 0 && curWidth+1+ww > width {
			lines = append(lines, truncate(cur.String(), width))
			cur.Reset()
			curWidth = 0
			if len(lines) == maxLines-1 {
				rest := strings.Join(words[i:], " ")
				return append(lines, truncate(rest, width))
			}
		}
		if curWidth > 0 {
			cur.WriteByte(' ')
			curWidth++
		}
		cur.WriteString(w)
		curWidth += ww
	}
	if cur.Len() > 0 {
		lines = append(lines, truncate(cur.String(), width))
	}
	return lines
}

// authorLabel names a card's creator for display.
func authorLabel(c model.Card) string {
	if c.Anonymous || c.CreatedBy == nil {
		return "anonymous"
	}
	if c.CreatedBy.DisplayName != "" {
		return c.CreatedBy.DisplayName
	}
	return c.CreatedBy.ID
}
