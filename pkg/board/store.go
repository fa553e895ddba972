package board

import (
	"github.com/vanderheijden86/retro/pkg/model"
)

// ColumnItems is one column and its cards, in insertion order. Display order
// is applied at render time with the phase comparator.
type ColumnItems struct {
	Column model.Column
	Cards  []model.Card
}

// Len returns the number of cards in the column.
func (c ColumnItems) Len() int { return len(c.Cards) }

// Store is the board's column store: ordered columns of cards plus an id
// index. Parent/child links are ids into the same store, never pointers.
// Store is not safe for concurrent use; Board guards it.
type Store struct {
	columns []ColumnItems
	index   map[string]int // card id -> column position
}

// NewStore creates a store with one empty column per definition.
func NewStore(defs []model.Column) *Store {
	cols := make([]ColumnItems, len(defs))
	for i, d := range defs {
		cols[i] = ColumnItems{Column: d}
	}
	s := &Store{}
	s.Replace(cols)
	return s
}

// Replace swaps in a new set of columns. The store keeps its own copy.
func (s *Store) Replace(cols []ColumnItems) {
	s.columns = cloneColumns(cols)
	s.reindex()
}

func (s *Store) reindex() {
	s.index = make(map[string]int)
	for i, col := range s.columns {
		for _, c := range col.Cards {
			if c.IsPlaceholder() {
				continue
			}
			s.index[c.ID] = i
		}
	}
}

// Columns returns a deep copy of every column.
func (s *Store) Columns() []ColumnItems {
	return cloneColumns(s.columns)
}

// ColumnIDs returns the column ids in board order.
func (s *Store) ColumnIDs() []string {
	ids := make([]string, len(s.columns))
	for i, c := range s.columns {
		ids[i] = c.Column.ID
	}
	return ids
}

// Column returns a copy of the column with the given id.
func (s *Store) Column(id string) (ColumnItems, bool) {
	i := s.columnIndex(id)
	if i < 0 {
		return ColumnItems{}, false
	}
	return cloneColumn(s.columns[i]), true
}

func (s *Store) columnIndex(id string) int {
	return indexOfColumn(s.columns, id)
}

// Card returns a copy of the persisted card with the given id. Placeholders
// are not indexed; use Placeholder for those.
func (s *Store) Card(id string) (model.Card, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Card{}, false
	}
	for _, c := range s.columns[i].Cards {
		if c.ID == id {
			return c.Clone(), true
		}
	}
	return model.Card{}, false
}

// Placeholder returns the mid-creation card of a column, if any.
func (s *Store) Placeholder(columnID string) (model.Card, bool) {
	i := s.columnIndex(columnID)
	if i < 0 {
		return model.Card{}, false
	}
	for _, c := range s.columns[i].Cards {
		if c.IsPlaceholder() {
			return c.Clone(), true
		}
	}
	return model.Card{}, false
}

// Cards returns copies of every card on the board, column by column.
func (s *Store) Cards() []model.Card {
	var out []model.Card
	for _, col := range s.columns {
		for _, c := range col.Cards {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Counts returns the number of cards per column id.
func (s *Store) Counts() map[string]int {
	out := make(map[string]int, len(s.columns))
	for _, col := range s.columns {
		out[col.Column.ID] = len(col.Cards)
	}
	return out
}

// SetColumn replaces a column's definition, keeping its cards.
func (s *Store) SetColumn(def model.Column) bool {
	i := s.columnIndex(def.ID)
	if i < 0 {
		return false
	}
	s.columns[i].Column = def
	return true
}

func indexOfColumn(cols []ColumnItems, id string) int {
	for i, c := range cols {
		if c.Column.ID == id {
			return i
		}
	}
	return -1
}

func cloneColumn(c ColumnItems) ColumnItems {
	out := ColumnItems{Column: c.Column}
	if c.Cards != nil {
		out.Cards = make([]model.Card, len(c.Cards))
		for i, card := range c.Cards {
			out.Cards[i] = card.Clone()
		}
	}
	return out
}

func cloneColumns(cols []ColumnItems) []ColumnItems {
	out := make([]ColumnItems, len(cols))
	for i, c := range cols {
		out[i] = cloneColumn(c)
	}
	return out
}
