package board

import (
	"github.com/vanderheijden86/retro/pkg/debug"
	"github.com/vanderheijden86/retro/pkg/metrics"
	"github.com/vanderheijden86/retro/pkg/model"
)

// isProtected reports whether a local card must survive a full refresh as-is.
func isProtected(c model.Card, editingID string) bool {
	return c.NewlyCreated || c.IsPlaceholder() || (editingID != "" && c.ID == editingID)
}

// Reconcile merges a full server snapshot into the local columns.
//
// A local card is kept unchanged when it is newly created here, is the
// mid-creation placeholder, or is the card being edited (editingID). Every
// other local card is dropped in favour of the server's copy, and server
// cards unknown locally are appended to their column. Cards are matched by
// id only. A server card whose id is protected anywhere on the board is not
// added again, so no id ever appears twice.
//
// A protected newly created card that the snapshot already contains has its
// NewlyCreated flag cleared: the server has caught up and the next refresh
// may overwrite it.
func Reconcile(local []ColumnItems, server []model.Card, editingID string) []ColumnItems {
	defer metrics.Timer(metrics.Reconcile)()

	protected := make(map[string]bool)
	for _, col := range local {
		for _, c := range col.Cards {
			if isProtected(c, editingID) {
				protected[c.ID] = true
			}
		}
	}

	known := make(map[string]bool, len(local))
	for _, col := range local {
		known[col.Column.ID] = true
	}

	inSnapshot := make(map[string]bool, len(server))
	byColumn := make(map[string][]model.Card)
	for _, sc := range server {
		if inSnapshot[sc.ID] {
			debug.Log("reconcile: duplicate id %s in server snapshot, keeping first", sc.ID)
			continue
		}
		inSnapshot[sc.ID] = true
		if protected[sc.ID] {
			continue
		}
		if !known[sc.ColumnID] {
			debug.Log("reconcile: card %s targets unknown column %q", sc.ID, sc.ColumnID)
			continue
		}
		byColumn[sc.ColumnID] = append(byColumn[sc.ColumnID], sc.Clone())
	}

	out := make([]ColumnItems, len(local))
	for i, col := range local {
		var cards []model.Card
		for _, c := range col.Cards {
			if !protected[c.ID] {
				continue
			}
			kept := c.Clone()
			if kept.NewlyCreated && inSnapshot[kept.ID] {
				kept.NewlyCreated = false
			}
			cards = append(cards, kept)
		}
		cards = append(cards, byColumn[col.Column.ID]...)
		out[i] = ColumnItems{Column: col.Column, Cards: cards}
	}
	return out
}

// ApplyPatch merges individually updated cards into the columns.
//
// A card already present in its target column is replaced in place. A card
// present in a different column is removed there and appended to its target,
// so a move never shows the card twice. Unknown cards are appended. Patches
// naming an unknown column are dropped.
func ApplyPatch(existing []ColumnItems, updated []model.Card) []ColumnItems {
	defer metrics.Timer(metrics.ApplyPatch)()

	out := cloneColumns(existing)
	for _, u := range updated {
		target := indexOfColumn(out, u.ColumnID)
		if target < 0 {
			debug.Log("apply patch: card %s targets unknown column %q", u.ID, u.ColumnID)
			continue
		}

		placed := false
		for i := range out {
			if u.IsPlaceholder() && i != target {
				continue
			}
			kept := out[i].Cards[:0]
			for _, c := range out[i].Cards {
				if c.ID != u.ID {
					kept = append(kept, c)
					continue
				}
				if i == target && !placed {
					kept = append(kept, u.Clone())
					placed = true
				}
			}
			out[i].Cards = kept
		}
		if !placed {
			out[target].Cards = append(out[target].Cards, u.Clone())
		}
	}
	return out
}

// RemoveCards drops the given ids from the columns. An empty columnID
// removes the cards wherever they are.
func RemoveCards(existing []ColumnItems, columnID string, ids ...string) []ColumnItems {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	out := cloneColumns(existing)
	for i := range out {
		if columnID != "" && out[i].Column.ID != columnID {
			continue
		}
		kept := out[i].Cards[:0]
		for _, c := range out[i].Cards {
			if !drop[c.ID] {
				kept = append(kept, c)
			}
		}
		out[i].Cards = kept
	}
	return out
}
