package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultAccentColor is used for columns configured without a color.
const DefaultAccentColor = "#0078d4"

// DefaultMaxVotesPerUser caps how many votes one participant can spend.
const DefaultMaxVotesPerUser = 5

// Phase is the board's workflow stage. It gates which operations are allowed.
type Phase string

const (
	PhaseCollect Phase = "collect"
	PhaseGroup   Phase = "group"
	PhaseVote    Phase = "vote"
	PhaseAct     Phase = "act"
)

// Phases lists the workflow stages in order.
var Phases = []Phase{PhaseCollect, PhaseGroup, PhaseVote, PhaseAct}

// IsValid reports whether p is a known phase.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseCollect, PhaseGroup, PhaseVote, PhaseAct:
		return true
	}
	return false
}

// Next returns the following phase, wrapping from act back to collect.
func (p Phase) Next() Phase {
	for i, ph := range Phases {
		if ph == p {
			return Phases[(i+1)%len(Phases)]
		}
	}
	return PhaseCollect
}

// Title returns the display name of the phase.
func (p Phase) Title() string {
	if p == "" {
		return "Collect"
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// ParsePhase converts user input into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PhaseCollect, nil
	}
	if !p.IsValid() {
		return "", fmt.Errorf("unknown phase %q (want collect, group, vote or act)", s)
	}
	return p, nil
}

// Column is a named bucket of cards.
type Column struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	AccentColor string `json:"accent_color,omitempty" yaml:"accent_color,omitempty"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Notes       string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Board describes a retrospective board and its column layout.
type Board struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	Phase           Phase     `json:"phase" yaml:"phase"`
	Columns         []Column  `json:"columns" yaml:"columns"`
	MaxVotesPerUser int       `json:"max_votes_per_user,omitempty" yaml:"max_votes_per_user,omitempty"`
	CreatedBy       *User     `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	ModifiedAt      time.Time `json:"modified_at" yaml:"modified_at"`
}

// VoteCap returns the per-user vote limit, falling back to the default.
func (b Board) VoteCap() int {
	if b.MaxVotesPerUser <= 0 {
		return DefaultMaxVotesPerUser
	}
	return b.MaxVotesPerUser
}

// ColumnByID returns the column definition with the given id.
func (b Board) ColumnByID(id string) (Column, bool) {
	for _, c := range b.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}
