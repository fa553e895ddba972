package board

import "errors"

var (
	// ErrCardNotFound is returned when an operation names an unknown card.
	ErrCardNotFound = errors.New("card not found")
	// ErrColumnNotFound is returned when an operation names an unknown column.
	ErrColumnNotFound = errors.New("column not found")
	// ErrSelfGroup is returned when a card would become its own ancestor.
	ErrSelfGroup = errors.New("card cannot be grouped under itself")
	// ErrNotGrouped is returned by Ungroup for a card that has no parent.
	ErrNotGrouped = errors.New("card is not part of a group")
	// ErrPlaceholder is returned when an operation targets a card that has
	// not been persisted yet.
	ErrPlaceholder = errors.New("card has not been saved yet")
	// ErrWrongPhase is returned when the board's phase does not allow the
	// requested operation.
	ErrWrongPhase = errors.New("operation not allowed in the current phase")
	// ErrEmptyTitle is returned when a saved card would lose its title.
	ErrEmptyTitle = errors.New("card title cannot be empty")
	// ErrVoteLimit is returned when the user has spent all their votes.
	ErrVoteLimit = errors.New("vote limit reached")
	// ErrNoVote is returned when removing a vote the user never cast.
	ErrNoVote = errors.New("no vote to remove")
	// ErrNotLoaded is returned by operations that need a loaded board.
	ErrNotLoaded = errors.New("board not loaded")
)
