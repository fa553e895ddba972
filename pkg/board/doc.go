// Package board is the reconciliation core of a collaborative retrospective
// board.
//
// A Board keeps a locally edited view of the board's cards consistent with
// an eventually consistent server. Three sources feed it: a periodic full
// refresh (Refresh / polling), push notifications naming a single card
// (HandleCreated, HandleUpdated, HandleDeleted) and local user actions
// (CommitCard, Vote, Group, RequestTimerStart, ...). All of them go through
// the same two merge entry points:
//
//   - Reconcile merges a full server snapshot, keeping cards that are being
//     typed, cards still being created and cards created here that the
//     server has not echoed yet.
//   - ApplyPatch merges individual updated cards by id, moving a card
//     between columns rather than showing it twice.
//
// Grouping (Group, Ungroup, RemoveFromBoard, Move) is computed as a Patch by
// pure functions and applied in one step, so a card is never observed
// without its parent mid-operation and groups never nest deeper than one
// level. Timer starts and stops are funnelled through a single TimerSlot so
// at most one card's timer runs across the whole board.
//
// The view layer plugs in through Surface, a small capability interface
// used to find the element being edited and to capture and restore focus
// and caret position when a column's card count changes.
package board
