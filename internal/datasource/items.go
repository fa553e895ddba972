package datasource

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/model"
)

const itemColumns = `id, board_id, column_id, original_column_id, title, upvotes, voters, created_at,
	created_by, anonymous, timer_secs, timer_running, timer_id, parent_id, child_ids`

func scanItem(sc scanner) (model.Card, error) {
	var (
		c                       model.Card
		voters, childIDs        string
		createdAt               string
		createdBy               sql.NullString
		anonymous, timerRunning int
	)
	err := sc.Scan(&c.ID, &c.BoardID, &c.ColumnID, &c.OriginalColumnID, &c.Title, &c.UpVotes, &voters, &createdAt,
		&createdBy, &anonymous, &c.TimerSecs, &timerRunning, &c.TimerID, &c.ParentID, &childIDs)
	if err != nil {
		return model.Card{}, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.Anonymous = anonymous != 0
	c.TimerRunning = timerRunning != 0
	if voters != "" && voters != "{}" {
		if err := json.Unmarshal([]byte(voters), &c.Voters); err != nil {
			return model.Card{}, fmt.Errorf("decoding voters of %s: %w", c.ID, err)
		}
	}
	if childIDs != "" && childIDs != "[]" {
		if err := json.Unmarshal([]byte(childIDs), &c.ChildIDs); err != nil {
			return model.Card{}, fmt.Errorf("decoding children of %s: %w", c.ID, err)
		}
	}
	if createdBy.Valid && createdBy.String != "" {
		var u model.User
		if err := json.Unmarshal([]byte(createdBy.String), &u); err == nil {
			c.CreatedBy = &u
		}
	}
	return c, nil
}

func upsertItem(ctx context.Context, q queryer, c model.Card) error {
	voters := []byte("{}")
	if len(c.Voters) > 0 {
		raw, err := json.Marshal(c.Voters)
		if err != nil {
			return fmt.Errorf("encoding voters: %w", err)
		}
		voters = raw
	}
	childIDs := []byte("[]")
	if len(c.ChildIDs) > 0 {
		raw, err := json.Marshal(c.ChildIDs)
		if err != nil {
			return fmt.Errorf("encoding children: %w", err)
		}
		childIDs = raw
	}
	var createdBy sql.NullString
	if c.CreatedBy != nil {
		raw, err := json.Marshal(c.CreatedBy)
		if err != nil {
			return fmt.Errorf("encoding creator: %w", err)
		}
		createdBy = sql.NullString{String: string(raw), Valid: true}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 15), ", ")
	_, err := q.ExecContext(ctx, `INSERT OR REPLACE INTO items (`+itemColumns+`) VALUES (`+placeholders+`)`,
		c.ID, c.BoardID, c.ColumnID, c.OriginalColumnID, c.Title, c.UpVotes, string(voters), formatTime(c.CreatedAt),
		createdBy, boolInt(c.Anonymous), c.TimerSecs, boolInt(c.TimerRunning), c.TimerID, c.ParentID, string(childIDs))
	if err != nil {
		return fmt.Errorf("saving card %s: %w", c.ID, err)
	}
	return nil
}

func getItem(ctx context.Context, q queryer, boardID, id string) (model.Card, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE board_id = ? AND id = ?`, boardID, id)
	c, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Card{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Card{}, fmt.Errorf("loading card %s: %w", id, err)
	}
	return c, nil
}

func listItems(ctx context.Context, q queryer, boardID string) ([]model.Card, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE board_id = ?`, boardID)
	if err != nil {
		return nil, fmt.Errorf("listing cards of %s: %w", boardID, err)
	}
	defer rows.Close()

	out := []model.Card{}
	for rows.Next() {
		c, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	slices.SortFunc(out, func(a, b model.Card) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// cardSet is a board.Lookup over the cards of one board read inside a
// transaction.
type cardSet struct {
	cards []model.Card
	byID  map[string]int
}

func loadCardSet(ctx context.Context, q queryer, boardID string) (*cardSet, error) {
	cards, err := listItems(ctx, q, boardID)
	if err != nil {
		return nil, err
	}
	cs := &cardSet{cards: cards, byID: make(map[string]int, len(cards))}
	for i, c := range cards {
		cs.byID[c.ID] = i
	}
	return cs, nil
}

func (cs *cardSet) Card(id string) (model.Card, bool) {
	i, ok := cs.byID[id]
	if !ok {
		return model.Card{}, false
	}
	return cs.cards[i].Clone(), true
}

func (cs *cardSet) Cards() []model.Card {
	out := make([]model.Card, len(cs.cards))
	for i, c := range cs.cards {
		out[i] = c.Clone()
	}
	return out
}

// applyPatch writes a grouping patch and returns the updated cards as stored.
func applyPatch(ctx context.Context, tx *sql.Tx, p board.Patch) ([]model.Card, error) {
	for _, id := range p.Removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("deleting card %s: %w", id, err)
		}
	}
	out := make([]model.Card, 0, len(p.Updated))
	for _, c := range p.Updated {
		c.NewlyCreated = false
		if err := upsertItem(ctx, tx, c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// GetAllItemsForBoard returns every card on the board, oldest first.
func (s *Store) GetAllItemsForBoard(ctx context.Context, boardID string) ([]model.Card, error) {
	return listItems(ctx, s.db, boardID)
}

// GetItem returns one card.
func (s *Store) GetItem(ctx context.Context, boardID, id string) (model.Card, error) {
	return getItem(ctx, s.db, boardID, id)
}

// CreateItem stores a new card.
func (s *Store) CreateItem(ctx context.Context, boardID, title, columnID string, creator *model.User, anonymous bool) (model.Card, error) {
	if strings.TrimSpace(title) == "" {
		return model.Card{}, fmt.Errorf("card title is required")
	}
	c := model.Card{
		ID:               uuid.NewString(),
		BoardID:          boardID,
		ColumnID:         columnID,
		OriginalColumnID: columnID,
		Title:            title,
		CreatedAt:        s.now().UTC(),
		Anonymous:        anonymous,
	}
	if !anonymous && creator != nil {
		u := *creator
		c.CreatedBy = &u
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBoard(ctx, tx, boardID); err != nil {
			return err
		}
		return upsertItem(ctx, tx, c)
	})
	if err != nil {
		return model.Card{}, err
	}
	return c, nil
}

// updateItem is the read-modify-write shared by the single-card mutations.
func (s *Store) updateItem(ctx context.Context, boardID, id string, fn func(*model.Card) error) (model.Card, error) {
	var out model.Card
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := getItem(ctx, tx, boardID, id)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		if err := upsertItem(ctx, tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// UpdateTitle replaces a card's title.
func (s *Store) UpdateTitle(ctx context.Context, boardID, id, title string) (model.Card, error) {
	return s.updateItem(ctx, boardID, id, func(c *model.Card) error {
		c.Title = title
		return nil
	})
}

// UpdateVote adds or withdraws one vote by userID. Withdrawing a vote the
// user never placed is a no-op.
func (s *Store) UpdateVote(ctx context.Context, boardID, id, userID string, decrement bool) (model.Card, error) {
	return s.updateItem(ctx, boardID, id, func(c *model.Card) error {
		if c.Voters == nil {
			c.Voters = map[string]int{}
		}
		if decrement {
			if c.Voters[userID] == 0 {
				return nil
			}
			c.Voters[userID]--
			if c.Voters[userID] == 0 {
				delete(c.Voters, userID)
			}
			c.UpVotes = max(c.UpVotes-1, 0)
			return nil
		}
		c.Voters[userID]++
		c.UpVotes++
		return nil
	})
}

// UpdateTimer adds one second to the card's timer, or zeroes it.
func (s *Store) UpdateTimer(ctx context.Context, boardID, id string, reset bool) (model.Card, error) {
	return s.updateItem(ctx, boardID, id, func(c *model.Card) error {
		if reset {
			c.TimerSecs = 0
		} else {
			c.TimerSecs++
		}
		return nil
	})
}

// FlipTimer records the running state of a card's timer.
func (s *Store) FlipTimer(ctx context.Context, boardID, id string, running bool, timerID string) (model.Card, error) {
	return s.updateItem(ctx, boardID, id, func(c *model.Card) error {
		c.TimerRunning = running
		if running {
			c.TimerID = timerID
		} else {
			c.TimerID = ""
		}
		return nil
	})
}

// groupOp runs a grouping computation against the stored cards and writes
// the resulting patch in the same transaction.
func (s *Store) groupOp(ctx context.Context, boardID string, op func(board.Lookup) (board.Patch, error)) ([]model.Card, error) {
	var out []model.Card
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cs, err := loadCardSet(ctx, tx, boardID)
		if err != nil {
			return err
		}
		p, err := op(cs)
		if err != nil {
			if errors.Is(err, board.ErrCardNotFound) {
				return fmt.Errorf("%w: %w", ErrNotFound, err)
			}
			return err
		}
		out, err = applyPatch(ctx, tx, p)
		return err
	})
	return out, err
}

// DeleteItem removes a card and returns the cards updated as a side effect.
func (s *Store) DeleteItem(ctx context.Context, boardID, id string) ([]model.Card, error) {
	return s.groupOp(ctx, boardID, func(lk board.Lookup) (board.Patch, error) {
		return board.RemoveFromBoard(lk, id)
	})
}

// AddItemAsChild groups childID under parentID.
func (s *Store) AddItemAsChild(ctx context.Context, boardID, parentID, childID string) ([]model.Card, error) {
	return s.groupOp(ctx, boardID, func(lk board.Lookup) (board.Patch, error) {
		return board.Group(lk, parentID, childID)
	})
}

// AddItemAsMainItemToColumn makes id a top-level card of columnID.
func (s *Store) AddItemAsMainItemToColumn(ctx context.Context, boardID, id, columnID string) ([]model.Card, error) {
	return s.groupOp(ctx, boardID, func(lk board.Lookup) (board.Patch, error) {
		return board.Move(lk, id, columnID)
	})
}
