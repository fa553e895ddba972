package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vanderheijden86/retro/pkg/model"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return baseTime.Add(time.Duration(sec) * time.Second) }

// fakePersistence is an in-memory server. Group and move calls run the
// same grouping engine a real backend would mirror.
type fakePersistence struct {
	mu       sync.Mutex
	board    model.Board
	cards    map[string]model.Card
	order    []string
	nextID   int
	fail     map[string]error
	nilItems bool
	log      []string
	gets     atomic.Int32
}

func newFakePersistence(def model.Board, cards ...model.Card) *fakePersistence {
	f := &fakePersistence{board: def, cards: make(map[string]model.Card), fail: make(map[string]error)}
	for _, c := range cards {
		f.put(c)
	}
	return f
}

func (f *fakePersistence) put(c model.Card) {
	if c.BoardID == "" {
		c.BoardID = f.board.ID
	}
	if _, ok := f.cards[c.ID]; !ok {
		f.order = append(f.order, c.ID)
	}
	f.cards[c.ID] = c.Clone()
}

func (f *fakePersistence) failOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, method)
		return
	}
	f.fail[method] = err
}

func (f *fakePersistence) errFor(method string) error {
	return f.fail[method]
}

func (f *fakePersistence) record(format string, args ...any) {
	f.log = append(f.log, fmt.Sprintf(format, args...))
}

func (f *fakePersistence) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.log)
}

func (f *fakePersistence) edit(id string, fn func(*model.Card)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cards[id]
	fn(&c)
	f.cards[id] = c
}

// serverLookup gives the grouping engine unlocked access to the fake's
// cards; callers hold f.mu.
type serverLookup struct{ f *fakePersistence }

func (l serverLookup) Card(id string) (model.Card, bool) {
	c, ok := l.f.cards[id]
	return c.Clone(), ok
}

func (l serverLookup) Cards() []model.Card {
	out := make([]model.Card, 0, len(l.f.order))
	for _, id := range l.f.order {
		if c, ok := l.f.cards[id]; ok {
			out = append(out, c.Clone())
		}
	}
	return out
}

func (f *fakePersistence) applyLocked(p Patch) []model.Card {
	for _, id := range p.Removed {
		delete(f.cards, id)
		f.order = slices.DeleteFunc(f.order, func(s string) bool { return s == id })
	}
	for _, c := range p.Updated {
		f.put(c)
	}
	return p.Updated
}

func (f *fakePersistence) GetBoard(_ context.Context, boardID string) (model.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor("GetBoard"); err != nil {
		return model.Board{}, err
	}
	return f.board, nil
}

func (f *fakePersistence) SaveBoard(_ context.Context, def model.Board) (model.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor("SaveBoard"); err != nil {
		return model.Board{}, err
	}
	def.ModifiedAt = f.board.ModifiedAt.Add(time.Second)
	f.board = def
	return def, nil
}

func (f *fakePersistence) GetAllItemsForBoard(_ context.Context, boardID string) ([]model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor("GetAllItemsForBoard"); err != nil {
		return nil, err
	}
	if f.nilItems {
		return nil, nil
	}
	return serverLookup{f}.Cards(), nil
}

func (f *fakePersistence) GetItem(_ context.Context, boardID, id string) (model.Card, error) {
	f.gets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor("GetItem"); err != nil {
		return model.Card{}, err
	}
	c, ok := f.cards[id]
	if !ok {
		return model.Card{}, fmt.Errorf("item %s: %w", id, ErrCardNotFound)
	}
	return c.Clone(), nil
}

func (f *fakePersistence) CreateItem(_ context.Context, boardID, title, columnID string, creator *model.User, anonymous bool) (model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor("CreateItem"); err != nil {
		return model.Card{}, err
	}
	f.nextID++
	c := model.Card{
		ID:               fmt.Sprintf("card-%d", f.nextID),
		BoardID:          boardID,
		ColumnID:         columnID,
		OriginalColumnID: columnID,
		Title:            title,
		CreatedAt:        at(1000 + f.nextID),
		CreatedBy:        creator,
		Anonymous:        anonymous,
	}
	f.put(c)
	f.record("create:%s", c.ID)
	return c.Clone(), nil
}

func (f *fakePersistence) update(method, id string, fn func(*model.Card)) (model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor(method); err != nil {
		return model.Card{}, err
	}
	c, ok := f.cards[id]
	if !ok {
		return model.Card{}, fmt.Errorf("item %s: %w", id, ErrCardNotFound)
	}
	fn(&c)
	f.cards[id] = c
	return c.Clone(), nil
}

func (f *fakePersistence) UpdateTitle(_ context.Context, boardID, id, title string) (model.Card, error) {
	return f.update("UpdateTitle", id, func(c *model.Card) { c.Title = title })
}

func (f *fakePersistence) UpdateVote(_ context.Context, boardID, id, userID string, decrement bool) (model.Card, error) {
	return f.update("UpdateVote", id, func(c *model.Card) {
		if c.Voters == nil {
			c.Voters = make(map[string]int)
		}
		if decrement {
			c.UpVotes--
			c.Voters[userID]--
			if c.Voters[userID] <= 0 {
				delete(c.Voters, userID)
			}
			return
		}
		c.UpVotes++
		c.Voters[userID]++
	})
}

func (f *fakePersistence) UpdateTimer(_ context.Context, boardID, id string, reset bool) (model.Card, error) {
	return f.update("UpdateTimer", id, func(c *model.Card) {
		if reset {
			c.TimerSecs = 0
			return
		}
		c.TimerSecs++
	})
}

func (f *fakePersistence) FlipTimer(_ context.Context, boardID, id string, running bool, timerID string) (model.Card, error) {
	c, err := f.update("FlipTimer", id, func(c *model.Card) {
		c.TimerRunning = running
		c.TimerID = timerID
	})
	if err == nil {
		f.mu.Lock()
		f.record("flip:%s:%t", id, running)
		f.mu.Unlock()
	}
	return c, err
}

func (f *fakePersistence) DeleteItem(_ context.Context, boardID, id string) ([]model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor("DeleteItem"); err != nil {
		return nil, err
	}
	p, err := RemoveFromBoard(serverLookup{f}, id)
	if err != nil {
		return nil, err
	}
	return f.applyLocked(p), nil
}

func (f *fakePersistence) AddItemAsChild(_ context.Context, boardID, parentID, childID string) ([]model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor("AddItemAsChild"); err != nil {
		return nil, err
	}
	p, err := Group(serverLookup{f}, parentID, childID)
	if err != nil {
		return nil, err
	}
	return f.applyLocked(p), nil
}

func (f *fakePersistence) AddItemAsMainItemToColumn(_ context.Context, boardID, id, columnID string) ([]model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor("AddItemAsMainItemToColumn"); err != nil {
		return nil, err
	}
	p, err := Move(serverLookup{f}, id, columnID)
	if err != nil {
		return nil, err
	}
	return f.applyLocked(p), nil
}

func (f *fakePersistence) UpdateColumnNotes(_ context.Context, boardID, columnID, notes string) (model.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor("UpdateColumnNotes"); err != nil {
		return model.Board{}, err
	}
	for i := range f.board.Columns {
		if f.board.Columns[i].ID == columnID {
			f.board.Columns[i].Notes = notes
		}
	}
	f.board.ModifiedAt = f.board.ModifiedAt.Add(time.Second)
	return f.board, nil
}

type announcement struct {
	kind     string
	columnID string
	id       string
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []announcement
	err  error
}

func (b *fakeBroadcaster) add(kind, columnID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, announcement{kind, columnID, id})
	return nil
}

func (b *fakeBroadcaster) AnnounceCreated(_ context.Context, columnID, id string) error {
	return b.add("created", columnID, id)
}

func (b *fakeBroadcaster) AnnounceUpdated(_ context.Context, columnID, id string) error {
	return b.add("updated", columnID, id)
}

func (b *fakeBroadcaster) AnnounceDeleted(_ context.Context, columnID, id string) error {
	return b.add("deleted", columnID, id)
}

func (b *fakeBroadcaster) AnnounceBoardUpdated(context.Context) error {
	return b.add("board", "", "")
}

func (b *fakeBroadcaster) kinds(id string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, a := range b.sent {
		if a.id == id {
			out = append(out, a.kind)
		}
	}
	return out
}

type staticIdentity struct{ user model.User }

func (s staticIdentity) CurrentUser(context.Context) (model.User, error) { return s.user, nil }

// fakeSurface stands in for the rendered board. Cards are known to it once
// render has been called.
type fakeSurface struct {
	mu       sync.Mutex
	active   *Element
	modal    bool
	cardCol  map[string]string      // card id -> column id
	inputs   map[string]ElementKind // card id -> kind of its first control
	textLen  map[string]int         // element id -> text length
	start    int
	end      *int
	offset   int
	hasOff   bool
	focusErr error
	panicSel bool
	selSet   [2]int
	caretSet int
	focused  []string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		cardCol: make(map[string]string),
		inputs:  make(map[string]ElementKind),
		textLen: make(map[string]int),
	}
}

func (s *fakeSurface) render(b *Board) {
	cols := b.Columns()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cardCol = make(map[string]string)
	for _, col := range cols {
		for _, c := range col.Cards {
			s.cardCol[c.ID] = col.Column.ID
		}
	}
}

func (s *fakeSurface) setActive(el *Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = el
}

func (s *fakeSurface) current() (Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Element{}, false
	}
	return *s.active, true
}

func (s *fakeSurface) ActiveElement() (Element, bool) { return s.current() }

func (s *fakeSurface) IsWithin(el Element, columnID string) bool { return el.ColumnID == columnID }

func (s *fakeSurface) TextSelection(el Element) (int, *int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.end, el.Kind == ElementTextField
}

func (s *fakeSurface) EditableOffset(el Element) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, s.hasOff
}

func (s *fakeSurface) Elements(cardID string) []Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.inputs[cardID]
	if !ok {
		return nil
	}
	return []Element{{ID: cardID + "/input", CardID: cardID, ColumnID: s.cardCol[cardID], Kind: kind}}
}

func (s *fakeSurface) CardElement(cardID string) (Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.cardCol[cardID]
	if !ok {
		return Element{}, false
	}
	return Element{ID: cardID, CardID: cardID, ColumnID: col, Kind: ElementCard}, true
}

func (s *fakeSurface) ColumnElement(columnID string) (Element, bool) {
	return Element{ID: "column:" + columnID, ColumnID: columnID, Kind: ElementColumn}, true
}

func (s *fakeSurface) Focus(el Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focusErr != nil {
		return s.focusErr
	}
	s.active = &el
	s.focused = append(s.focused, el.ID)
	return nil
}

func (s *fakeSurface) SetTextSelection(el Element, start, end int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicSel {
		panic("selection range out of bounds")
	}
	s.selSet = [2]int{start, end}
	return nil
}

func (s *fakeSurface) SetEditableCursor(el Element, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicSel {
		panic("range construction failed")
	}
	s.caretSet = offset
	return nil
}

func (s *fakeSurface) TextLength(el Element) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textLen[el.ID]
}

func (s *fakeSurface) ModalOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modal
}

var errBoom = errors.New("boom")

func twoColumnBoard(phase model.Phase) model.Board {
	return model.Board{
		ID:         "b1",
		Title:      "Sprint 42",
		Phase:      phase,
		ModifiedAt: baseTime,
		Columns: []model.Column{
			{ID: "A", Title: "Went well"},
			{ID: "B", Title: "To improve", AccentColor: "#ff0000"},
		},
	}
}

type testBoard struct {
	*Board
	persist *fakePersistence
	bcast   *fakeBroadcaster
	surface *fakeSurface
}

func newTestBoard(t *testing.T, def model.Board, cards ...model.Card) testBoard {
	t.Helper()
	tb := testBoard{
		persist: newFakePersistence(def, cards...),
		bcast:   &fakeBroadcaster{},
		surface: newFakeSurface(),
	}
	b, err := New(Options{
		Persistence: tb.persist,
		Broadcaster: tb.bcast,
		Identity:    staticIdentity{model.User{ID: "u1", DisplayName: "Ada"}},
		Surface:     tb.surface,
		TimerTick:   time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Load(context.Background(), def); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(b.Close)
	tb.Board = b
	tb.surface.render(b)
	return tb
}

func cardIDs(col ColumnItems) []string {
	ids := make([]string, len(col.Cards))
	for i, c := range col.Cards {
		ids[i] = c.ID
	}
	return ids
}

func mustColumn(t *testing.T, b *Board, id string) ColumnItems {
	t.Helper()
	col, ok := b.Column(id)
	if !ok {
		t.Fatalf("column %s missing", id)
	}
	return col
}

func mustCard(t *testing.T, b *Board, id string) model.Card {
	t.Helper()
	c, ok := b.Card(id)
	if !ok {
		t.Fatalf("card %s missing", id)
	}
	return c
}
