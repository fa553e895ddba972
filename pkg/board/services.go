package board

import (
	"context"

	"github.com/vanderheijden86/retro/pkg/model"
)

// Persistence is the data-access layer the board talks to. Every call may
// block on I/O and may fail; the board never holds its own lock across one.
type Persistence interface {
	GetBoard(ctx context.Context, boardID string) (model.Board, error)
	// SaveBoard stores the board definition and returns it with ModifiedAt
	// advanced.
	SaveBoard(ctx context.Context, def model.Board) (model.Board, error)
	// GetAllItemsForBoard returns every card on the board. A nil slice
	// means "no data" and is treated like a failed fetch; a board without
	// cards returns an empty, non-nil slice.
	GetAllItemsForBoard(ctx context.Context, boardID string) ([]model.Card, error)
	GetItem(ctx context.Context, boardID, id string) (model.Card, error)
	CreateItem(ctx context.Context, boardID, title, columnID string, creator *model.User, anonymous bool) (model.Card, error)
	UpdateTitle(ctx context.Context, boardID, id, title string) (model.Card, error)
	UpdateVote(ctx context.Context, boardID, id, userID string, decrement bool) (model.Card, error)
	// UpdateTimer adds one second to the card's timer, or zeroes it when
	// reset is true.
	UpdateTimer(ctx context.Context, boardID, id string, reset bool) (model.Card, error)
	// FlipTimer records whether the card's timer is running and which
	// handle owns it.
	FlipTimer(ctx context.Context, boardID, id string, running bool, timerID string) (model.Card, error)
	// DeleteItem removes the card and returns the cards that changed as a
	// side effect (detached children, the refreshed group head).
	DeleteItem(ctx context.Context, boardID, id string) ([]model.Card, error)
	// AddItemAsChild groups childID under parentID and returns every card
	// the operation touched.
	AddItemAsChild(ctx context.Context, boardID, parentID, childID string) ([]model.Card, error)
	// AddItemAsMainItemToColumn makes id a top-level card in columnID and
	// returns every card the operation touched.
	AddItemAsMainItemToColumn(ctx context.Context, boardID, id, columnID string) ([]model.Card, error)
	UpdateColumnNotes(ctx context.Context, boardID, columnID, notes string) (model.Board, error)
}

// Broadcaster announces card changes to other participants so their boards
// converge before the next poll.
type Broadcaster interface {
	AnnounceCreated(ctx context.Context, columnID, id string) error
	AnnounceUpdated(ctx context.Context, columnID, id string) error
	AnnounceDeleted(ctx context.Context, columnID, id string) error
}

// IdentityResolver returns the participant using this client.
type IdentityResolver interface {
	CurrentUser(ctx context.Context) (model.User, error)
}

type nopBroadcaster struct{}

func (nopBroadcaster) AnnounceCreated(context.Context, string, string) error { return nil }
func (nopBroadcaster) AnnounceUpdated(context.Context, string, string) error { return nil }
func (nopBroadcaster) AnnounceDeleted(context.Context, string, string) error { return nil }
