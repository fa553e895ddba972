package board

import (
	"fmt"
	"slices"

	"github.com/vanderheijden86/retro/pkg/model"
)

// Lookup is the read access the grouping engine needs. Store implements it.
type Lookup interface {
	Card(id string) (model.Card, bool)
	Cards() []model.Card
}

// Patch is the set of changes one grouping operation produces. Callers apply
// Updated and Removed together so no intermediate state is observable.
type Patch struct {
	Updated []model.Card
	Removed []string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Updated) == 0 && len(p.Removed) == 0
}

// Apply applies the patch to columns.
func (p Patch) Apply(cols []ColumnItems) []ColumnItems {
	out := cols
	if len(p.Removed) > 0 {
		out = RemoveCards(out, "", p.Removed...)
	}
	if len(p.Updated) > 0 {
		out = ApplyPatch(out, p.Updated)
	}
	return out
}

func (p *Patch) put(c model.Card) {
	for i := range p.Updated {
		if p.Updated[i].ID == c.ID {
			p.Updated[i] = c
			return
		}
	}
	p.Updated = append(p.Updated, c)
}

func lookupSaved(lk Lookup, id string) (model.Card, error) {
	if id == model.EmptyCardID {
		return model.Card{}, ErrPlaceholder
	}
	c, ok := lk.Card(id)
	if !ok {
		return model.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	return c, nil
}

// childrenOf returns the ids listed as children of c plus any card naming c
// as its parent, so a half-applied remote update cannot hide one.
func childrenOf(lk Lookup, c model.Card) []string {
	ids := slices.Clone(c.ChildIDs)
	for _, other := range lk.Cards() {
		if other.ParentID == c.ID && !slices.Contains(ids, other.ID) {
			ids = append(ids, other.ID)
		}
	}
	return ids
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// Group moves movedID under targetID.
//
// If the target is itself a grouped card, its head becomes the target, so
// groups never nest. The moved card's own children are re-parented to the
// target directly. The patch holds the new parent, the moved card, any
// re-parented grandchildren and the moved card's previous parent.
func Group(lk Lookup, targetID, movedID string) (Patch, error) {
	if targetID == movedID {
		return Patch{}, ErrSelfGroup
	}
	target, err := lookupSaved(lk, targetID)
	if err != nil {
		return Patch{}, err
	}
	moved, err := lookupSaved(lk, movedID)
	if err != nil {
		return Patch{}, err
	}

	if target.IsChild() {
		head, err := lookupSaved(lk, target.ParentID)
		if err != nil {
			return Patch{}, fmt.Errorf("resolving group head of %s: %w", target.ID, err)
		}
		target = head
	}
	if target.ID == moved.ID {
		return Patch{}, ErrSelfGroup
	}
	if moved.ParentID == target.ID && target.HasChild(moved.ID) {
		return Patch{}, nil
	}

	var p Patch
	parent := target.Clone()

	var oldParent *model.Card
	if moved.ParentID != "" && moved.ParentID != target.ID {
		if old, ok := lk.Card(moved.ParentID); ok {
			old.ChildIDs = removeID(old.ChildIDs, moved.ID)
			oldParent = &old
		}
	}

	child := moved.Clone()
	if child.OriginalColumnID == "" {
		child.OriginalColumnID = moved.ColumnID
	}
	child.ParentID = parent.ID
	child.ColumnID = parent.ColumnID
	parent.ChildIDs = appendUnique(parent.ChildIDs, child.ID)

	var grandchildren []model.Card
	for _, gid := range childrenOf(lk, moved) {
		g, ok := lk.Card(gid)
		if !ok || g.ID == parent.ID {
			continue
		}
		if g.OriginalColumnID == "" {
			g.OriginalColumnID = g.ColumnID
		}
		g.ParentID = parent.ID
		g.ColumnID = parent.ColumnID
		parent.ChildIDs = appendUnique(parent.ChildIDs, g.ID)
		grandchildren = append(grandchildren, g)
	}
	child.ChildIDs = nil

	p.put(parent)
	p.put(child)
	for _, g := range grandchildren {
		p.put(g)
	}
	if oldParent != nil {
		p.put(*oldParent)
	}
	return p, nil
}

// Ungroup detaches a grouped card from its head. The card stays in columnID,
// or in the column it currently lives in when columnID is empty.
func Ungroup(lk Lookup, cardID, columnID string) (Patch, error) {
	card, err := lookupSaved(lk, cardID)
	if err != nil {
		return Patch{}, err
	}
	if !card.IsChild() {
		return Patch{}, fmt.Errorf("%w: %s", ErrNotGrouped, cardID)
	}

	var p Patch
	if head, ok := lk.Card(card.ParentID); ok {
		head.ChildIDs = removeID(head.ChildIDs, card.ID)
		p.put(head)
	}
	card.ParentID = ""
	if columnID != "" {
		card.ColumnID = columnID
	}
	p.put(card)
	return p, nil
}

// Move makes cardID a top-level card of columnID. A grouped card leaves its
// group; a group head takes its children along.
func Move(lk Lookup, cardID, columnID string) (Patch, error) {
	card, err := lookupSaved(lk, cardID)
	if err != nil {
		return Patch{}, err
	}
	if columnID == "" {
		return Patch{}, fmt.Errorf("%w: empty column id", ErrColumnNotFound)
	}

	var p Patch
	if card.IsChild() {
		if head, ok := lk.Card(card.ParentID); ok {
			head.ChildIDs = removeID(head.ChildIDs, card.ID)
			p.put(head)
		}
		card.ParentID = ""
	}
	if card.OriginalColumnID == "" {
		card.OriginalColumnID = card.ColumnID
	}
	card.ColumnID = columnID
	p.put(card)

	for _, cid := range childrenOf(lk, card) {
		child, ok := lk.Card(cid)
		if !ok {
			continue
		}
		child.ColumnID = columnID
		p.put(child)
	}
	return p, nil
}

// RemoveFromBoard computes the patch for deleting cardID. Deleting a group
// head turns its children into standalone cards; deleting a grouped card
// refreshes its head so the group count stays right.
func RemoveFromBoard(lk Lookup, cardID string) (Patch, error) {
	card, err := lookupSaved(lk, cardID)
	if err != nil {
		return Patch{}, err
	}

	p := Patch{Removed: []string{card.ID}}
	for _, cid := range childrenOf(lk, card) {
		child, ok := lk.Card(cid)
		if !ok {
			continue
		}
		child.ParentID = ""
		p.put(child)
	}
	if card.IsChild() {
		if head, ok := lk.Card(card.ParentID); ok {
			head.ChildIDs = removeID(head.ChildIDs, card.ID)
			p.put(head)
		}
	}
	return p, nil
}
