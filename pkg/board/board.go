package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/retro/pkg/debug"
	"github.com/vanderheijden86/retro/pkg/metrics"
	"github.com/vanderheijden86/retro/pkg/model"
)

var errNoData = errors.New("server returned no data")

// BoardAnnouncer is implemented by broadcasters that can also tell other
// participants the board's settings changed.
type BoardAnnouncer interface {
	AnnounceBoardUpdated(ctx context.Context) error
}

// Options configures a Board.
type Options struct {
	Persistence Persistence
	Broadcaster Broadcaster      // optional
	Identity    IdentityResolver // optional; anonymous when nil
	Surface     Surface          // optional; focus handling is skipped when nil
	TimerTick   time.Duration    // defaults to DefaultTimerTick
}

// AddOptions controls AddCards.
type AddOptions struct {
	Broadcast    bool // announce each card to other participants
	NewlyCreated bool // protect the cards from the next full refresh
	Focus        bool // focus the first card after the next render
}

// View is a consistent read of the board for rendering.
type View struct {
	Board   model.Board
	Columns []ColumnItems
	Loaded  bool
	User    model.User
}

// Board owns the board-wide state and wires the reconciler, grouping
// engine, timer slot, focus preserver and navigator together.
type Board struct {
	persist Persistence
	bcast   Broadcaster
	ident   IdentityResolver
	surface Surface

	mu           sync.Mutex
	def          model.Board
	store        *Store
	loaded       bool
	user         model.User
	commands     map[string]ColumnCommands
	pendingFocus *FocusSnapshot

	pollParent   context.Context
	pollInterval time.Duration
	pollCancel   context.CancelFunc
	pollBoard    string

	timers  *TimerSlot
	nav     *Navigator
	fetches singleflight.Group

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// New creates an empty board. Call Load before use.
func New(opts Options) (*Board, error) {
	if opts.Persistence == nil {
		return nil, fmt.Errorf("board: persistence is required")
	}
	b := &Board{
		persist:  opts.Persistence,
		bcast:    opts.Broadcaster,
		ident:    opts.Identity,
		surface:  opts.Surface,
		store:    NewStore(nil),
		commands: make(map[string]ColumnCommands),
		subs:     make(map[int]func()),
	}
	if b.bcast == nil {
		b.bcast = nopBroadcaster{}
	}
	b.timers = newTimerSlot(b, opts.TimerTick)
	b.nav = &Navigator{board: b}
	return b, nil
}

// SetSurface attaches the view capability. The UI calls it once its
// element tree exists.
func (b *Board) SetSurface(s Surface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surface = s
}

func (b *Board) view() Surface {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surface
}

// normalizeBoard fills defaults the column definitions may omit.
func normalizeBoard(def model.Board) model.Board {
	def.Columns = slices.Clone(def.Columns)
	for i := range def.Columns {
		if def.Columns[i].AccentColor == "" {
			def.Columns[i].AccentColor = model.DefaultAccentColor
		}
	}
	if !def.Phase.IsValid() {
		def.Phase = model.PhaseCollect
	}
	return def
}

// Load rebuilds the board wholesale from def: one column per definition,
// then a first fetch of all cards. A failed fetch leaves the columns empty
// and the board marked not loaded; the next poll retries.
func (b *Board) Load(ctx context.Context, def model.Board) error {
	defer debug.LogEnterExit("board.Load " + def.ID)()
	def = normalizeBoard(def)

	var (
		user     model.User
		items    []model.Card
		itemsErr error
		g        errgroup.Group
	)
	g.Go(func() error {
		if b.ident == nil {
			return nil
		}
		u, err := b.ident.CurrentUser(ctx)
		if err != nil {
			return fmt.Errorf("resolving current user: %w", err)
		}
		user = u
		return nil
	})
	g.Go(func() error {
		items, itemsErr = b.persist.GetAllItemsForBoard(ctx, def.ID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	b.mu.Lock()
	sameBoard := b.def.ID == def.ID
	b.mu.Unlock()
	if !sameBoard {
		b.timers.Close()
	}

	b.mu.Lock()
	b.def = def
	b.user = user
	b.store = NewStore(def.Columns)
	b.pendingFocus = nil
	b.commands = make(map[string]ColumnCommands, len(def.Columns))
	for _, col := range def.Columns {
		b.commands[col.ID] = &ColumnNavigator{board: b, columnID: col.ID}
	}
	b.loaded = false
	if itemsErr == nil && items != nil {
		b.store.Replace(Reconcile(b.store.columns, items, ""))
		b.loaded = true
	} else {
		if itemsErr == nil {
			itemsErr = errNoData
		}
		metrics.RefreshFailures.Inc()
		debug.Warn("initial load of board %s: %v", def.ID, itemsErr)
	}
	b.syncPollerLocked()
	b.mu.Unlock()

	if sameBoard {
		b.timers.resync()
	}
	b.notify()
	return nil
}

// SetBoard adopts a new board definition. The board is rebuilt when the id
// changes or when ModifiedAt advanced (someone changed its settings).
func (b *Board) SetBoard(ctx context.Context, def model.Board) (bool, error) {
	b.mu.Lock()
	cur := b.def
	b.mu.Unlock()

	if cur.ID == "" || def.ID != cur.ID || def.ModifiedAt.After(cur.ModifiedAt) {
		return true, b.Load(ctx, def)
	}
	return false, nil
}

// CheckBoard fetches the board definition and rebuilds if it changed.
func (b *Board) CheckBoard(ctx context.Context) (bool, error) {
	id := b.ID()
	if id == "" {
		return false, ErrNotLoaded
	}
	def, err := b.persist.GetBoard(ctx, id)
	if err != nil {
		debug.Warn("checking board %s: %v", id, err)
		return false, fmt.Errorf("fetching board %s: %w", id, err)
	}
	return b.SetBoard(ctx, def)
}

// SetPhase moves the board to another workflow phase.
func (b *Board) SetPhase(ctx context.Context, phase model.Phase) error {
	if !phase.IsValid() {
		return fmt.Errorf("invalid phase %q", phase)
	}
	b.mu.Lock()
	def := b.def
	b.mu.Unlock()
	if def.ID == "" {
		return ErrNotLoaded
	}
	def.Phase = phase
	saved, err := b.persist.SaveBoard(ctx, def)
	if err != nil {
		metrics.MutationFailures.Inc()
		debug.Warn("saving phase %s: %v", phase, err)
		return fmt.Errorf("saving phase: %w", err)
	}

	b.mu.Lock()
	b.def.Phase = saved.Phase
	b.def.ModifiedAt = saved.ModifiedAt
	b.syncPollerLocked()
	b.mu.Unlock()

	if phase != model.PhaseAct {
		if active := b.timers.Active(); active != "" {
			if err := b.timers.Stop(ctx, active); err != nil {
				debug.Warn("stopping timer on phase change: %v", err)
			}
		}
	}
	b.announceBoard(ctx)
	b.notify()
	return nil
}

// Refresh fetches every card and reconciles it into the store. On failure
// the store is left untouched and the board is marked not loaded.
func (b *Board) Refresh(ctx context.Context) error {
	defer metrics.Timer(metrics.Refresh)()
	id := b.ID()
	if id == "" {
		return ErrNotLoaded
	}

	items, err := b.persist.GetAllItemsForBoard(ctx, id)
	if err == nil && items == nil {
		err = errNoData
	}
	if err != nil {
		metrics.RefreshFailures.Inc()
		debug.Warn("refresh of board %s: %v", id, err)
		b.mu.Lock()
		b.loaded = false
		b.mu.Unlock()
		b.notify()
		return fmt.Errorf("refreshing board %s: %w", id, err)
	}

	b.mu.Lock()
	if b.def.ID != id {
		b.mu.Unlock()
		return nil
	}
	b.replaceLocked(Reconcile(b.store.columns, items, EditingCardID(b.surface)))
	b.loaded = true
	b.mu.Unlock()

	b.notify()
	return nil
}

// Poll refreshes the board every interval while it is in the
// collect phase. Polling stops when ctx ends or the phase changes and
// resumes when the board returns to collect.
func (b *Board) Poll(ctx context.Context, interval time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pollParent = ctx
	b.pollInterval = interval
	b.syncPollerLocked()
}

// Polling reports whether the refresh poller is running.
func (b *Board) Polling() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pollCancel != nil
}

func (b *Board) syncPollerLocked() {
	want := b.pollParent != nil && b.pollParent.Err() == nil &&
		b.pollInterval > 0 && b.def.ID != "" && b.def.Phase == model.PhaseCollect
	if !want {
		if b.pollCancel != nil {
			b.pollCancel()
			b.pollCancel = nil
			debug.Log("poller stopped (phase %s)", b.def.Phase)
		}
		return
	}
	if b.pollCancel != nil && b.pollBoard == b.def.ID {
		return
	}
	if b.pollCancel != nil {
		b.pollCancel()
	}
	ctx, cancel := context.WithCancel(b.pollParent)
	b.pollCancel = cancel
	b.pollBoard = b.def.ID
	go b.poll(ctx, b.pollInterval)
	debug.Log("poller started for %s every %v", b.def.ID, b.pollInterval)
}

func (b *Board) poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.Phase() != model.PhaseCollect {
				return
			}
			_ = b.Refresh(ctx)
		}
	}
}

// Close stops the poller and the local timer ticker.
func (b *Board) Close() {
	b.mu.Lock()
	if b.pollCancel != nil {
		b.pollCancel()
		b.pollCancel = nil
	}
	b.pollParent = nil
	b.mu.Unlock()
	b.timers.Close()
}

// HandleCreated re-fetches a card another participant created.
func (b *Board) HandleCreated(ctx context.Context, columnID, id string) error {
	return b.refetch(ctx, id)
}

// HandleUpdated re-fetches a card another participant changed.
func (b *Board) HandleUpdated(ctx context.Context, columnID, id string) error {
	if err := b.refetch(ctx, id); err != nil {
		return err
	}
	if c, ok := b.Card(id); ok && !c.TimerRunning {
		b.timers.NotifyStopped(id)
	}
	return nil
}

// HandleDeleted removes a card another participant deleted.
func (b *Board) HandleDeleted(ctx context.Context, columnID, id string) error {
	b.mu.Lock()
	patch, err := RemoveFromBoard(b.store, id)
	if err != nil {
		b.mu.Unlock()
		return nil
	}
	b.replaceLocked(patch.Apply(b.store.columns))
	b.mu.Unlock()

	b.timers.NotifyStopped(id)
	b.notify()
	return nil
}

func (b *Board) refetch(ctx context.Context, id string) error {
	defer metrics.Timer(metrics.SingleRefetch)()
	boardID := b.ID()
	if boardID == "" {
		return ErrNotLoaded
	}
	v, err, _ := b.fetches.Do(id, func() (any, error) {
		return b.persist.GetItem(ctx, boardID, id)
	})
	if err != nil {
		metrics.RefreshFailures.Inc()
		debug.Warn("fetching card %s: %v", id, err)
		return fmt.Errorf("fetching card %s: %w", id, err)
	}
	card := v.(model.Card)
	if card.BoardID != "" && card.BoardID != boardID {
		return nil
	}
	b.applyServerCards(ctx, []model.Card{card}, false)
	return nil
}

// RefreshCards re-fetches the named cards and merges them.
func (b *Board) RefreshCards(ctx context.Context, ids ...string) error {
	var errs []error
	for _, id := range ids {
		if err := b.refetch(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddCards merges cards into the store.
func (b *Board) AddCards(ctx context.Context, cards []model.Card, opts AddOptions) {
	if len(cards) == 0 {
		return
	}
	patch := make([]model.Card, len(cards))
	for i, c := range cards {
		patch[i] = c.Clone()
		if opts.NewlyCreated {
			patch[i].NewlyCreated = true
		}
	}

	b.mu.Lock()
	if opts.Focus {
		b.pendingFocus = &FocusSnapshot{ColumnID: patch[0].ColumnID, CardID: patch[0].ID, Kind: ElementCard}
	}
	b.replaceLocked(ApplyPatch(b.store.columns, patch))
	b.mu.Unlock()

	if opts.Broadcast {
		for _, c := range patch {
			b.announce(ctx, announceUpdated, c.ColumnID, c.ID)
		}
	}
	b.notify()
}

// RemoveCard drops a card from a column. With focusFirst the column's first
// card takes focus afterwards.
func (b *Board) RemoveCard(columnID, id string, focusFirst bool) {
	b.mu.Lock()
	b.replaceLocked(RemoveCards(b.store.columns, columnID, id))
	cmds := b.commands[columnID]
	b.mu.Unlock()

	b.notify()
	if focusFirst && cmds != nil {
		cmds.Focus()
	}
}

// applyServerCards merges cards and optionally announces them.
func (b *Board) applyServerCards(ctx context.Context, cards []model.Card, broadcast bool) {
	if len(cards) == 0 {
		return
	}
	b.mu.Lock()
	b.replaceLocked(ApplyPatch(b.store.columns, cards))
	b.mu.Unlock()

	if broadcast {
		for _, c := range cards {
			b.announce(ctx, announceUpdated, c.ColumnID, c.ID)
		}
	}
	b.notify()
}

// replaceLocked swaps in next, capturing focus first when a column's card
// count changes. b.mu must be held.
func (b *Board) replaceLocked(next []ColumnItems) {
	before := b.store.Counts()
	for _, col := range next {
		if before[col.Column.ID] == len(col.Cards) {
			continue
		}
		if b.pendingFocus == nil {
			b.pendingFocus = Capture(b.surface, col.Column.ID)
		}
	}
	b.store.Replace(next)
}

// PendingFocus returns the focus the next RestoreFocus will re-apply.
func (b *Board) PendingFocus() *FocusSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pendingFocus == nil {
		return nil
	}
	snap := *b.pendingFocus
	return &snap
}

// RestoreFocus re-applies the focus captured before the last card-count
// change. The view calls it once the new cards are rendered.
func (b *Board) RestoreFocus() {
	b.mu.Lock()
	snap := b.pendingFocus
	b.pendingFocus = nil
	s := b.surface
	b.mu.Unlock()
	Restore(s, snap)
}

// CreateEmptyCard puts a placeholder card at the top of a column and asks
// for it to be focused. An existing placeholder is focused instead.
func (b *Board) CreateEmptyCard(columnID string) error {
	b.mu.Lock()
	if b.def.Phase != model.PhaseCollect {
		b.mu.Unlock()
		return fmt.Errorf("%w: cards are added in the collect phase", ErrWrongPhase)
	}
	idx := b.store.columnIndex(columnID)
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrColumnNotFound, columnID)
	}
	b.pendingFocus = &FocusSnapshot{ColumnID: columnID, CardID: model.EmptyCardID, Kind: ElementTextField}
	if _, ok := b.store.Placeholder(columnID); !ok {
		var creator *model.User
		if b.user.ID != "" {
			u := b.user
			creator = &u
		}
		placeholder := model.Card{
			ID:               model.EmptyCardID,
			BoardID:          b.def.ID,
			ColumnID:         columnID,
			OriginalColumnID: columnID,
			CreatedAt:        time.Now(),
			CreatedBy:        creator,
		}
		cols := b.store.Columns()
		cols[idx].Cards = append([]model.Card{placeholder}, cols[idx].Cards...)
		b.replaceLocked(cols)
	}
	b.mu.Unlock()

	b.notify()
	return nil
}

// CommitCard saves the placeholder of columnID with the given title. An
// empty title abandons the card instead.
func (b *Board) CommitCard(ctx context.Context, columnID, title string, anonymous bool) (model.Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		b.RemoveCard(columnID, model.EmptyCardID, false)
		return model.Card{}, nil
	}

	b.mu.Lock()
	boardID := b.def.ID
	user := b.user
	hadFocus := EditingCardID(b.surface) == model.EmptyCardID
	b.mu.Unlock()

	var creator *model.User
	if !anonymous && user.ID != "" {
		creator = &user
	}
	card, err := b.persist.CreateItem(ctx, boardID, title, columnID, creator, anonymous)
	if err != nil {
		metrics.MutationFailures.Inc()
		debug.Warn("creating card in %s: %v", columnID, err)
		return model.Card{}, fmt.Errorf("creating card: %w", err)
	}
	card.NewlyCreated = true

	b.mu.Lock()
	cols := RemoveCards(b.store.columns, columnID, model.EmptyCardID)
	if hadFocus {
		b.pendingFocus = &FocusSnapshot{ColumnID: card.ColumnID, CardID: card.ID, Kind: ElementCard}
	}
	b.replaceLocked(ApplyPatch(cols, []model.Card{card}))
	b.mu.Unlock()

	b.announce(ctx, announceCreated, card.ColumnID, card.ID)
	b.notify()
	return card, nil
}

// UpdateTitle renames a saved card.
func (b *Board) UpdateTitle(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	card, err := b.savedCard(id)
	if err != nil {
		return err
	}
	card.Title = title
	b.applyServerCards(ctx, []model.Card{card}, false)

	updated, err := b.persist.UpdateTitle(ctx, b.ID(), id, title)
	if err != nil {
		return b.mutationFailed("renaming", id, err)
	}
	b.applyServerCards(ctx, []model.Card{updated}, true)
	return nil
}

// VotesSpent returns how many votes the current user has placed.
func (b *Board) VotesSpent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.votesSpentLocked()
}

func (b *Board) votesSpentLocked() int {
	n := 0
	for _, c := range b.store.Cards() {
		n += c.VotesBy(b.user.ID)
	}
	return n
}

// Vote adds (or with decrement removes) one of the user's votes on a card.
func (b *Board) Vote(ctx context.Context, id string, decrement bool) error {
	b.mu.Lock()
	phase := b.def.Phase
	user := b.user
	spent := b.votesSpentLocked()
	limit := b.def.VoteCap()
	card, ok := b.store.Card(id)
	b.mu.Unlock()

	switch {
	case phase != model.PhaseVote:
		return fmt.Errorf("%w: voting happens in the vote phase", ErrWrongPhase)
	case !ok:
		return fmt.Errorf("%w: %s", ErrCardNotFound, id)
	case card.IsPlaceholder():
		return ErrPlaceholder
	case decrement && card.VotesBy(user.ID) == 0:
		return ErrNoVote
	case !decrement && spent >= limit:
		return fmt.Errorf("%w: %d of %d used", ErrVoteLimit, spent, limit)
	}

	if card.Voters == nil {
		card.Voters = make(map[string]int)
	}
	if decrement {
		card.UpVotes--
		card.Voters[user.ID]--
		if card.Voters[user.ID] <= 0 {
			delete(card.Voters, user.ID)
		}
	} else {
		card.UpVotes++
		card.Voters[user.ID]++
	}
	b.applyServerCards(ctx, []model.Card{card}, false)

	updated, err := b.persist.UpdateVote(ctx, b.ID(), id, user.ID, decrement)
	if err != nil {
		return b.mutationFailed("voting on", id, err)
	}
	b.applyServerCards(ctx, []model.Card{updated}, true)
	return nil
}

// Delete removes a card. A group head's children become standalone.
func (b *Board) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	card, _ := b.store.Card(id)
	patch, err := RemoveFromBoard(b.store, id)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.replaceLocked(patch.Apply(b.store.columns))
	b.mu.Unlock()
	b.notify()
	b.timers.NotifyStopped(id)

	related, err := b.persist.DeleteItem(ctx, b.ID(), id)
	if err != nil {
		return b.mutationFailed("deleting", id, err)
	}
	related = slices.DeleteFunc(related, func(c model.Card) bool { return c.ID == id })
	b.applyServerCards(ctx, related, true)
	b.announce(ctx, announceDeleted, card.ColumnID, id)
	return nil
}

// Group moves movedID into targetID's group.
func (b *Board) Group(ctx context.Context, targetID, movedID string) error {
	if ph := b.Phase(); ph != model.PhaseCollect && ph != model.PhaseGroup {
		return fmt.Errorf("%w: grouping happens in the collect and group phases", ErrWrongPhase)
	}
	b.mu.Lock()
	patch, err := Group(b.store, targetID, movedID)
	if err != nil || patch.IsEmpty() {
		b.mu.Unlock()
		return err
	}
	parentID := patch.Updated[0].ID
	b.replaceLocked(patch.Apply(b.store.columns))
	b.mu.Unlock()
	b.notify()

	updated, err := b.persist.AddItemAsChild(ctx, b.ID(), parentID, movedID)
	if err != nil {
		return b.mutationFailed("grouping", movedID, err)
	}
	b.applyServerCards(ctx, updated, true)
	return nil
}

// Ungroup takes a grouped card out of its group, leaving it in columnID
// (its current column when empty).
func (b *Board) Ungroup(ctx context.Context, id, columnID string) error {
	b.mu.Lock()
	patch, err := Ungroup(b.store, id, columnID)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	target := columnID
	for _, c := range patch.Updated {
		if c.ID == id {
			target = c.ColumnID
		}
	}
	b.replaceLocked(patch.Apply(b.store.columns))
	b.mu.Unlock()
	b.notify()

	updated, err := b.persist.AddItemAsMainItemToColumn(ctx, b.ID(), id, target)
	if err != nil {
		return b.mutationFailed("ungrouping", id, err)
	}
	b.applyServerCards(ctx, updated, true)
	return nil
}

// Move makes a card a top-level card of another column, taking any grouped
// children along.
func (b *Board) Move(ctx context.Context, id, columnID string) error {
	b.mu.Lock()
	if b.store.columnIndex(columnID) < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrColumnNotFound, columnID)
	}
	patch, err := Move(b.store, id, columnID)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.replaceLocked(patch.Apply(b.store.columns))
	b.mu.Unlock()
	b.notify()

	updated, err := b.persist.AddItemAsMainItemToColumn(ctx, b.ID(), id, columnID)
	if err != nil {
		return b.mutationFailed("moving", id, err)
	}
	b.applyServerCards(ctx, updated, true)
	return nil
}

// UpdateColumnNotes edits a column's notes. Unlike other mutations, a
// failed save reverts the notes to their previous value.
func (b *Board) UpdateColumnNotes(ctx context.Context, columnID, notes string) error {
	b.mu.Lock()
	col, ok := b.store.Column(columnID)
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrColumnNotFound, columnID)
	}
	prev := col.Column.Notes
	b.setNotesLocked(columnID, notes)
	boardID := b.def.ID
	b.mu.Unlock()
	b.notify()

	saved, err := b.persist.UpdateColumnNotes(ctx, boardID, columnID, notes)
	if err != nil {
		b.mu.Lock()
		b.setNotesLocked(columnID, prev)
		b.mu.Unlock()
		b.notify()
		return b.mutationFailed("saving notes of", columnID, err)
	}

	b.mu.Lock()
	if saved.ID == b.def.ID && saved.ModifiedAt.After(b.def.ModifiedAt) {
		b.def.ModifiedAt = saved.ModifiedAt
	}
	b.mu.Unlock()
	b.announceBoard(ctx)
	return nil
}

func (b *Board) setNotesLocked(columnID, notes string) {
	for i := range b.def.Columns {
		if b.def.Columns[i].ID == columnID {
			b.def.Columns[i].Notes = notes
			b.store.SetColumn(b.def.Columns[i])
		}
	}
}

// RequestTimerStart starts a card's timer, stopping any other one first.
func (b *Board) RequestTimerStart(ctx context.Context, id string) error {
	return b.timers.Start(ctx, id)
}

// StopTimer stops a card's timer.
func (b *Board) StopTimer(ctx context.Context, id string) error {
	return b.timers.Stop(ctx, id)
}

// ToggleTimer starts a stopped timer or stops a running one.
func (b *Board) ToggleTimer(ctx context.Context, id string) error {
	c, ok := b.Card(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	if c.TimerRunning {
		return b.timers.Stop(ctx, id)
	}
	return b.timers.Start(ctx, id)
}

// ResetTimer zeroes a card's elapsed time.
func (b *Board) ResetTimer(ctx context.Context, id string) error {
	return b.timers.Reset(ctx, id)
}

// NotifyTimerStopped tells the board a timer was stopped elsewhere.
func (b *Board) NotifyTimerStopped(id string) {
	b.timers.NotifyStopped(id)
}

// ActiveTimer returns the card whose timer this client runs.
func (b *Board) ActiveTimer() string {
	return b.timers.Active()
}

func (b *Board) mutationFailed(action, id string, err error) error {
	metrics.MutationFailures.Inc()
	debug.Warn("%s %s: %v", action, id, err)
	return fmt.Errorf("%s %s: %w", action, id, err)
}

func (b *Board) savedCard(id string) (model.Card, error) {
	if id == model.EmptyCardID {
		return model.Card{}, ErrPlaceholder
	}
	c, ok := b.Card(id)
	if !ok {
		return model.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	return c, nil
}

func (b *Board) runningTimers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for _, c := range b.store.Cards() {
		if c.TimerRunning {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

type announceKind int

const (
	announceCreated announceKind = iota
	announceUpdated
	announceDeleted
)

func (b *Board) announce(ctx context.Context, kind announceKind, columnID, id string) {
	var err error
	switch kind {
	case announceCreated:
		err = b.bcast.AnnounceCreated(ctx, columnID, id)
	case announceUpdated:
		err = b.bcast.AnnounceUpdated(ctx, columnID, id)
	case announceDeleted:
		err = b.bcast.AnnounceDeleted(ctx, columnID, id)
	}
	if err != nil {
		debug.Warn("broadcasting %s: %v", id, err)
		return
	}
	metrics.BroadcastsSent.Inc()
}

func (b *Board) announceBoard(ctx context.Context) {
	ba, ok := b.bcast.(BoardAnnouncer)
	if !ok {
		return
	}
	if err := ba.AnnounceBoardUpdated(ctx); err != nil {
		debug.Warn("broadcasting board update: %v", err)
	}
}

// Subscribe registers fn to run after every state change. The returned
// function unregisters it.
func (b *Board) Subscribe(fn func()) func() {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Board) notify() {
	b.subMu.Lock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// ID returns the loaded board's id.
func (b *Board) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.def.ID
}

// Definition returns the loaded board definition.
func (b *Board) Definition() model.Board {
	b.mu.Lock()
	defer b.mu.Unlock()
	def := b.def
	def.Columns = slices.Clone(b.def.Columns)
	return def
}

// Phase returns the board's workflow phase.
func (b *Board) Phase() model.Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.def.Phase
}

// Loaded reports whether the last fetch succeeded.
func (b *Board) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// User returns the current participant.
func (b *Board) User() model.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.user
}

// Card returns a copy of a card by id.
func (b *Board) Card(id string) (model.Card, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Card(id)
}

// Column returns a copy of a column and its cards.
func (b *Board) Column(id string) (ColumnItems, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Column(id)
}

// Columns returns a copy of every column.
func (b *Board) Columns() []ColumnItems {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Columns()
}

// ColumnIDs returns column ids in board order.
func (b *Board) ColumnIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.ColumnIDs()
}

// Snapshot returns a consistent view for rendering.
func (b *Board) Snapshot() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	def := b.def
	def.Columns = slices.Clone(b.def.Columns)
	return View{Board: def, Columns: b.store.Columns(), Loaded: b.loaded, User: b.user}
}

// Navigator returns the board's keyboard navigation controller.
func (b *Board) Navigator() *Navigator { return b.nav }

// RegisterColumn replaces the command handle of a column.
func (b *Board) RegisterColumn(columnID string, cmds ColumnCommands) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands[columnID] = cmds
}

// Commands returns the command handle registered for a column.
func (b *Board) Commands(columnID string) (ColumnCommands, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.commands[columnID]
	return c, ok
}
