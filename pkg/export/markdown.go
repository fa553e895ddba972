// Package export renders a board and its cards as a Markdown summary that
// can be pasted into meeting notes or a wiki.
package export

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/model"
)

var slugNonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Summary holds the headline numbers of a board.
type Summary struct {
	Cards        int
	Groups       int
	Votes        int
	Participants int
	TimedSecs    int

	// Vote spread across top-level cards.
	VoteMean   float64
	VoteStdDev float64
}

// Columns buckets cards into the board's columns, in board order. Cards of
// unknown columns are dropped.
func Columns(def model.Board, cards []model.Card) []board.ColumnItems {
	idx := make(map[string]int, len(def.Columns))
	out := make([]board.ColumnItems, len(def.Columns))
	for i, col := range def.Columns {
		idx[col.ID] = i
		out[i] = board.ColumnItems{Column: col}
	}
	for _, c := range cards {
		if c.IsPlaceholder() {
			continue
		}
		if i, ok := idx[c.ColumnID]; ok {
			out[i].Cards = append(out[i].Cards, c)
		}
	}
	return out
}

// Summarize counts cards, groups, votes and distinct named authors.
func Summarize(cols []board.ColumnItems) Summary {
	var s Summary
	authors := make(map[string]bool)
	var votes []float64
	for _, col := range cols {
		for _, c := range col.Cards {
			if !c.IsChild() {
				votes = append(votes, float64(c.UpVotes))
			}
			s.Cards++
			s.Votes += c.UpVotes
			s.TimedSecs += c.TimerSecs
			if c.IsGroupHead() {
				s.Groups++
			}
			if !c.Anonymous && c.CreatedBy != nil {
				authors[c.CreatedBy.ID] = true
			}
		}
	}
	s.Participants = len(authors)
	switch len(votes) {
	case 0:
	case 1:
		s.VoteMean = votes[0]
	default:
		s.VoteMean, s.VoteStdDev = stat.MeanStdDev(votes, nil)
	}
	return s
}

// GenerateMarkdown renders the board. Cards follow the ordering of the
// board's current phase and grouped cards are nested under their head.
func GenerateMarkdown(def model.Board, cards []model.Card, now time.Time) string {
	var sb strings.Builder
	cols := Columns(def, cards)
	sum := Summarize(cols)

	title := def.Title
	if title == "" {
		title = "Retrospective"
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeInline(title)))
	sb.WriteString(fmt.Sprintf("*Exported: %s · phase: %s*\n\n", now.Format(time.RFC1123), def.Phase.Title()))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **Cards** | %d |\n", sum.Cards))
	sb.WriteString(fmt.Sprintf("| Groups | %d |\n", sum.Groups))
	sb.WriteString(fmt.Sprintf("| Votes | %d |\n", sum.Votes))
	if sum.Votes > 0 {
		sb.WriteString(fmt.Sprintf("| Votes per card | %.1f ± %.1f |\n", sum.VoteMean, sum.VoteStdDev))
	}
	sb.WriteString(fmt.Sprintf("| Participants | %d |\n", sum.Participants))
	if sum.TimedSecs > 0 {
		sb.WriteString(fmt.Sprintf("| Discussion time | %s |\n", model.FormatTimer(sum.TimedSecs)))
	}
	sb.WriteString("\n")

	slugCounts := make(map[string]int, len(cols))
	slugs := make([]string, len(cols))
	for i, col := range cols {
		slugs[i] = uniqueSlug(createSlug(col.Column.Title), slugCounts)
	}

	sb.WriteString("## Columns\n\n")
	for i, col := range cols {
		sb.WriteString(fmt.Sprintf("- [%s](#%s) (%d)\n", escapeInline(col.Column.Title), slugs[i], len(col.Cards)))
	}
	sb.WriteString("\n---\n\n")

	slides := board.CarouselOf(cols, def.Phase)
	for i, col := range cols {
		sb.WriteString(fmt.Sprintf("<a id=\"%s\"></a>\n\n", slugs[i]))
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeInline(col.Column.Title)))
		if notes := strings.TrimSpace(col.Column.Notes); notes != "" {
			sb.WriteString(notes + "\n\n")
		}
		n := 0
		for _, s := range slides {
			if s.Column.ID != col.Column.ID {
				continue
			}
			n++
			sb.WriteString(fmt.Sprintf("- %s%s\n", escapeInline(s.Card.Title), cardSuffix(s.Card)))
			for _, child := range s.Children {
				sb.WriteString(fmt.Sprintf("  - %s%s\n", escapeInline(child.Title), cardSuffix(child)))
			}
		}
		if n == 0 {
			sb.WriteString("_No cards._\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// SaveMarkdownToFile writes the rendered board to filename.
func SaveMarkdownToFile(def model.Board, cards []model.Card, filename string) error {
	content := GenerateMarkdown(def, cards, time.Now())
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return nil
}

func cardSuffix(c model.Card) string {
	var parts []string
	if c.UpVotes > 0 {
		parts = append(parts, fmt.Sprintf("▲%d", c.UpVotes))
	}
	if c.TimerSecs > 0 {
		parts = append(parts, "⏱ "+model.FormatTimer(c.TimerSecs))
	}
	switch {
	case c.Anonymous || c.CreatedBy == nil:
	case c.CreatedBy.DisplayName != "":
		parts = append(parts, "@"+escapeInline(c.CreatedBy.DisplayName))
	}
	if len(parts) == 0 {
		return ""
	}
	return " · " + strings.Join(parts, " · ")
}

// escapeInline flattens newlines so a value stays on one list line.
func escapeInline(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}

func uniqueSlug(base string, counts map[string]int) string {
	if base == "" {
		base = "section"
	}
	if count, ok := counts[base]; ok {
		count++
		counts[base] = count
		return fmt.Sprintf("%s-%d", base, count)
	}
	counts[base] = 0
	return base
}

func createSlug(text string) string {
	slug := strings.ToLower(text)
	slug = slugNonAlphanumericRegex.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
