// Package model defines the value types shared by the board core, the
// persistence layer and the terminal UI.
package model

import (
	"fmt"
	"slices"
	"time"
)

// EmptyCardID is the id carried by a card that is still being typed and has
// never been sent to the server.
const EmptyCardID = "emptyFeedbackItem"

// User identifies a board participant.
type User struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// Card is a single feedback entry on the board.
type Card struct {
	ID               string         `json:"id"`
	BoardID          string         `json:"board_id"`
	ColumnID         string         `json:"column_id"`
	OriginalColumnID string         `json:"original_column_id"`
	Title            string         `json:"title"`
	UpVotes          int            `json:"upvotes"`
	Voters           map[string]int `json:"voters,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	CreatedBy        *User          `json:"created_by,omitempty"` // nil when anonymous
	Anonymous        bool           `json:"anonymous"`
	TimerSecs        int            `json:"timer_secs"`
	TimerRunning     bool           `json:"timer_running"`
	TimerID          string         `json:"timer_id,omitempty"`
	ParentID         string         `json:"parent_id,omitempty"`
	ChildIDs         []string       `json:"child_ids,omitempty"`

	// NewlyCreated marks a card created by this client that the server has
	// not yet echoed back in a full refresh. Never persisted.
	NewlyCreated bool `json:"-"`
}

// IsPlaceholder reports whether the card is the local mid-creation sentinel.
func (c Card) IsPlaceholder() bool {
	return c.ID == EmptyCardID
}

// IsGroupHead reports whether the card has grouped children.
func (c Card) IsGroupHead() bool {
	return len(c.ChildIDs) > 0
}

// IsChild reports whether the card is nested under a group head.
func (c Card) IsChild() bool {
	return c.ParentID != ""
}

// HasChild reports whether id is listed among the card's children.
func (c Card) HasChild(id string) bool {
	return slices.Contains(c.ChildIDs, id)
}

// VotesBy returns how many votes the given user has placed on the card.
func (c Card) VotesBy(userID string) int {
	if c.Voters == nil {
		return 0
	}
	return c.Voters[userID]
}

// Clone returns a deep copy so callers can mutate slices and maps freely.
func (c Card) Clone() Card {
	out := c
	if c.Voters != nil {
		out.Voters = make(map[string]int, len(c.Voters))
		for k, v := range c.Voters {
			out.Voters[k] = v
		}
	}
	if c.ChildIDs != nil {
		out.ChildIDs = slices.Clone(c.ChildIDs)
	}
	if c.CreatedBy != nil {
		u := *c.CreatedBy
		out.CreatedBy = &u
	}
	return out
}

// ProvenanceColumnID returns the column the card was originally written in.
func (c Card) ProvenanceColumnID() string {
	if c.OriginalColumnID != "" {
		return c.OriginalColumnID
	}
	return c.ColumnID
}

// FormatTimer renders elapsed timer seconds as m:ss.
func FormatTimer(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
