package board

import (
	"github.com/vanderheijden86/retro/pkg/model"
)

// CarouselItem is one slide of the single-card presentation mode: a
// top-level card, the column it lives in and its grouped children.
type CarouselItem struct {
	Card     model.Card
	Column   model.Column
	Children []model.Card
}

// Carousel flattens the board into the slides of the focus mode. Columns
// keep board order and cards follow the phase comparator. Children travel
// with their head instead of getting slides of their own, placeholders are
// skipped, and an id never appears twice.
func (b *Board) Carousel() []CarouselItem {
	v := b.Snapshot()
	return CarouselOf(v.Columns, v.Board.Phase)
}

// CarouselOf builds carousel slides from a column snapshot.
func CarouselOf(cols []ColumnItems, phase model.Phase) []CarouselItem {
	byID := make(map[string]model.Card)
	for _, col := range cols {
		for _, c := range col.Cards {
			if !c.IsPlaceholder() {
				byID[c.ID] = c
			}
		}
	}

	less := model.ComparatorFor(phase)
	seen := make(map[string]bool)
	var out []CarouselItem
	for _, col := range cols {
		var heads []model.Card
		for _, c := range col.Cards {
			if c.IsPlaceholder() || seen[c.ID] {
				continue
			}
			if c.IsChild() {
				if _, ok := byID[c.ParentID]; ok {
					continue
				}
			}
			seen[c.ID] = true
			heads = append(heads, c)
		}
		model.SortCards(heads, less)

		for _, h := range heads {
			item := CarouselItem{Card: h, Column: col.Column}
			for _, id := range childrenIDs(byID, h) {
				if seen[id] {
					continue
				}
				seen[id] = true
				item.Children = append(item.Children, byID[id])
			}
			model.SortCards(item.Children, less)
			out = append(out, item)
		}
	}
	return out
}

// childrenIDs lists the ids grouped under head, from either side of the
// parent/child link.
func childrenIDs(byID map[string]model.Card, head model.Card) []string {
	var ids []string
	added := make(map[string]bool)
	for _, id := range head.ChildIDs {
		if _, ok := byID[id]; ok && !added[id] {
			added[id] = true
			ids = append(ids, id)
		}
	}
	for id, c := range byID {
		if c.ParentID == head.ID && !added[id] {
			added[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
