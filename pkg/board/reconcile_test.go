package board

import (
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/retro/pkg/model"
)

func columnsAB(a, b []model.Card) []ColumnItems {
	return []ColumnItems{
		{Column: model.Column{ID: "A"}, Cards: a},
		{Column: model.Column{ID: "B"}, Cards: b},
	}
}

func TestReconcile_AppendsNewServerCards(t *testing.T) {
	c1 := model.Card{ID: "c1", ColumnID: "A", CreatedAt: at(1)}
	c2 := model.Card{ID: "c2", ColumnID: "A", CreatedAt: at(2)}
	c3 := model.Card{ID: "c3", ColumnID: "A", CreatedAt: at(3)}

	out := Reconcile(columnsAB([]model.Card{c1, c2}, nil), []model.Card{c1, c2, c3}, "")

	got := cardIDs(out[0])
	if !slices.Equal(got, []string{"c1", "c2", "c3"}) {
		t.Fatalf("column A = %v, want [c1 c2 c3]", got)
	}
	if len(out[1].Cards) != 0 {
		t.Errorf("column B should stay empty, got %v", cardIDs(out[1]))
	}

	sorted := slices.Clone(out[0].Cards)
	model.SortCards(sorted, model.ComparatorFor(model.PhaseCollect))
	if sorted[0].ID != "c3" || sorted[2].ID != "c1" {
		t.Errorf("display order = %v, want newest first", cardIDs(ColumnItems{Cards: sorted}))
	}
}

func TestReconcile_ServerVersionWins(t *testing.T) {
	local := model.Card{ID: "x", ColumnID: "A", Title: "old"}
	server := model.Card{ID: "x", ColumnID: "A", Title: "new"}

	out := Reconcile(columnsAB([]model.Card{local}, nil), []model.Card{server}, "")
	if out[0].Cards[0].Title != "new" {
		t.Errorf("title = %q, want server title", out[0].Cards[0].Title)
	}
}

func TestReconcile_PreservesCardUnderEdit(t *testing.T) {
	local := model.Card{ID: "x", ColumnID: "A", Title: "typing in progr"}
	server := model.Card{ID: "x", ColumnID: "A", Title: "someone else's title"}

	out := Reconcile(columnsAB([]model.Card{local}, nil), []model.Card{server}, "x")
	if len(out[0].Cards) != 1 {
		t.Fatalf("expected exactly one x, got %v", cardIDs(out[0]))
	}
	if out[0].Cards[0].Title != "typing in progr" {
		t.Errorf("title = %q, local edit was overwritten", out[0].Cards[0].Title)
	}
}

func TestReconcile_KeepsNewlyCreatedUntilEchoed(t *testing.T) {
	fresh := model.Card{ID: "n1", ColumnID: "A", Title: "mine", NewlyCreated: true}

	out := Reconcile(columnsAB([]model.Card{fresh}, nil), []model.Card{}, "")
	if len(out[0].Cards) != 1 || !out[0].Cards[0].NewlyCreated {
		t.Fatalf("newly created card dropped by a snapshot that lacks it: %+v", out[0].Cards)
	}

	echoed := fresh
	echoed.NewlyCreated = false
	echoed.Title = "mine (server)"
	out = Reconcile(out, []model.Card{echoed}, "")
	if len(out[0].Cards) != 1 {
		t.Fatalf("expected one n1, got %v", cardIDs(out[0]))
	}
	if out[0].Cards[0].NewlyCreated {
		t.Error("NewlyCreated should clear once the server echoes the card")
	}
	if out[0].Cards[0].Title != "mine" {
		t.Errorf("first echo should keep local content, got %q", out[0].Cards[0].Title)
	}

	out = Reconcile(out, []model.Card{echoed}, "")
	if out[0].Cards[0].Title != "mine (server)" {
		t.Errorf("second pass should take the server copy, got %q", out[0].Cards[0].Title)
	}
}

func TestReconcile_PlaceholderSurvives(t *testing.T) {
	ph := model.Card{ID: model.EmptyCardID, ColumnID: "B"}
	out := Reconcile(columnsAB(nil, []model.Card{ph}), []model.Card{{ID: "c1", ColumnID: "B"}}, "")
	if got := cardIDs(out[1]); !slices.Equal(got, []string{model.EmptyCardID, "c1"}) {
		t.Errorf("column B = %v", got)
	}
}

func TestReconcile_ProtectedCardNotDuplicatedAcrossColumns(t *testing.T) {
	local := model.Card{ID: "x", ColumnID: "A", NewlyCreated: true}
	moved := model.Card{ID: "x", ColumnID: "B"}

	out := Reconcile(columnsAB([]model.Card{local}, nil), []model.Card{moved}, "")
	if len(out[0].Cards) != 1 || len(out[1].Cards) != 0 {
		t.Errorf("x should stay only in A: A=%v B=%v", cardIDs(out[0]), cardIDs(out[1]))
	}
}

func TestReconcile_DropsUnknownColumnsAndDuplicateIDs(t *testing.T) {
	server := []model.Card{
		{ID: "c1", ColumnID: "A", Title: "first"},
		{ID: "c1", ColumnID: "A", Title: "dup"},
		{ID: "c2", ColumnID: "Z"},
	}
	out := Reconcile(columnsAB(nil, nil), server, "")
	if got := cardIDs(out[0]); !slices.Equal(got, []string{"c1"}) {
		t.Fatalf("column A = %v, want [c1]", got)
	}
	if out[0].Cards[0].Title != "first" {
		t.Errorf("expected first occurrence to win, got %q", out[0].Cards[0].Title)
	}
}

func TestReconcile_DoesNotAliasInput(t *testing.T) {
	local := columnsAB([]model.Card{{ID: "c1", ColumnID: "A", ChildIDs: []string{"c2"}}}, nil)
	out := Reconcile(local, []model.Card{{ID: "c1", ColumnID: "A", ChildIDs: []string{"c2"}}}, "")
	out[0].Cards[0].ChildIDs[0] = "mutated"
	if local[0].Cards[0].ChildIDs[0] != "c2" {
		t.Error("Reconcile result shares memory with its input")
	}
}

func TestApplyPatch_ReplacesInPlace(t *testing.T) {
	cols := columnsAB([]model.Card{{ID: "c1", ColumnID: "A"}, {ID: "c2", ColumnID: "A"}}, nil)
	out := ApplyPatch(cols, []model.Card{{ID: "c1", ColumnID: "A", Title: "renamed"}})

	if got := cardIDs(out[0]); !slices.Equal(got, []string{"c1", "c2"}) {
		t.Fatalf("column A = %v, order should be kept", got)
	}
	if out[0].Cards[0].Title != "renamed" {
		t.Errorf("title = %q", out[0].Cards[0].Title)
	}
}

func TestApplyPatch_MoveNeverShowsTwice(t *testing.T) {
	cols := columnsAB([]model.Card{{ID: "c1", ColumnID: "A"}}, []model.Card{{ID: "c2", ColumnID: "B"}})
	out := ApplyPatch(cols, []model.Card{{ID: "c1", ColumnID: "B"}})

	if len(out[0].Cards) != 0 {
		t.Errorf("c1 still in A: %v", cardIDs(out[0]))
	}
	if got := cardIDs(out[1]); !slices.Equal(got, []string{"c2", "c1"}) {
		t.Errorf("column B = %v, want [c2 c1]", got)
	}
}

func TestApplyPatch_AppendsAndDropsUnknownColumn(t *testing.T) {
	cols := columnsAB(nil, nil)
	out := ApplyPatch(cols, []model.Card{{ID: "n", ColumnID: "B"}, {ID: "lost", ColumnID: "nope"}})
	if got := cardIDs(out[1]); !slices.Equal(got, []string{"n"}) {
		t.Errorf("column B = %v", got)
	}
	if len(out[0].Cards) != 0 {
		t.Errorf("column A = %v", cardIDs(out[0]))
	}
}

func TestApplyPatch_PlaceholderOnlyMatchesItsColumn(t *testing.T) {
	cols := columnsAB([]model.Card{{ID: model.EmptyCardID, ColumnID: "A"}}, nil)
	out := ApplyPatch(cols, []model.Card{{ID: model.EmptyCardID, ColumnID: "B"}})
	if len(out[0].Cards) != 1 || len(out[1].Cards) != 1 {
		t.Errorf("each column may hold its own placeholder: A=%v B=%v", cardIDs(out[0]), cardIDs(out[1]))
	}
}

func TestRemoveCards(t *testing.T) {
	cols := columnsAB([]model.Card{{ID: "c1"}, {ID: "c2"}}, []model.Card{{ID: "c1"}})
	out := RemoveCards(cols, "A", "c1")
	if got := cardIDs(out[0]); !slices.Equal(got, []string{"c2"}) {
		t.Errorf("column A = %v", got)
	}
	if len(out[1].Cards) != 1 {
		t.Errorf("column B should be untouched, got %v", cardIDs(out[1]))
	}
	if len(cols[0].Cards) != 2 {
		t.Error("RemoveCards modified its input")
	}
}

var reconcileIDs = []string{"a", "b", "c", "d", "e", "f", "g", "h"}

func drawLocal(t *rapid.T) []ColumnItems {
	cols := columnsAB(nil, nil)
	for _, id := range reconcileIDs {
		if !rapid.Bool().Draw(t, "local-"+id) {
			continue
		}
		i := rapid.IntRange(0, 1).Draw(t, "local-col-"+id)
		cols[i].Cards = append(cols[i].Cards, model.Card{
			ID:           id,
			ColumnID:     cols[i].Column.ID,
			Title:        "local " + id,
			NewlyCreated: rapid.Bool().Draw(t, "new-"+id),
		})
	}
	return cols
}

func drawServer(t *rapid.T) []model.Card {
	var out []model.Card
	for _, id := range reconcileIDs {
		if !rapid.Bool().Draw(t, "server-"+id) {
			continue
		}
		col := rapid.SampledFrom([]string{"A", "B"}).Draw(t, "server-col-"+id)
		out = append(out, model.Card{ID: id, ColumnID: col, Title: "server " + id})
	}
	return out
}

func occurrences(cols []ColumnItems) map[string][]string {
	seen := make(map[string][]string)
	for _, col := range cols {
		for _, c := range col.Cards {
			seen[c.ID] = append(seen[c.ID], col.Column.ID)
		}
	}
	return seen
}

func TestReconcile_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		local := drawLocal(t)
		server := drawServer(t)
		editing := rapid.SampledFrom(append([]string{""}, reconcileIDs...)).Draw(t, "editing")

		out := Reconcile(local, server, editing)
		seen := occurrences(out)
		before := occurrences(local)

		for id, cols := range seen {
			if len(cols) != 1 {
				t.Fatalf("card %s appears %d times: %v", id, len(cols), cols)
			}
		}
		for _, sc := range server {
			if _, wasLocal := before[sc.ID]; wasLocal {
				continue
			}
			if got := seen[sc.ID]; len(got) != 1 || got[0] != sc.ColumnID {
				t.Fatalf("new server card %s: columns %v, want [%s]", sc.ID, got, sc.ColumnID)
			}
		}
		for _, col := range local {
			for _, c := range col.Cards {
				if c.NewlyCreated && len(seen[c.ID]) != 1 {
					t.Fatalf("newly created %s lost", c.ID)
				}
			}
		}
	})
}

func TestApplyPatch_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		local := drawLocal(t)
		updates := drawServer(t)

		out := ApplyPatch(local, updates)
		seen := occurrences(out)
		for id, cols := range seen {
			if len(cols) != 1 {
				t.Fatalf("card %s appears in %v", id, cols)
			}
		}
		for _, u := range updates {
			if got := seen[u.ID]; len(got) != 1 || got[0] != u.ColumnID {
				t.Fatalf("patched card %s in %v, want %s", u.ID, got, u.ColumnID)
			}
		}
	})
}
