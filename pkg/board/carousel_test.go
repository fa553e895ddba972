package board

import (
	"slices"
	"testing"

	"github.com/vanderheijden86/retro/pkg/model"
)

func TestCarouselOf_FlattensAndDedupes(t *testing.T) {
	cols := []ColumnItems{
		{Column: model.Column{ID: "A"}, Cards: []model.Card{
			{ID: model.EmptyCardID, ColumnID: "A"},
			{ID: "a1", ColumnID: "A", CreatedAt: at(1), ChildIDs: []string{"a2"}},
			{ID: "a2", ColumnID: "A", CreatedAt: at(2), ParentID: "a1"},
			{ID: "a3", ColumnID: "A", CreatedAt: at(3)},
		}},
		{Column: model.Column{ID: "B"}, Cards: []model.Card{
			{ID: "b1", ColumnID: "B", CreatedAt: at(4)},
			{ID: "orphan", ColumnID: "B", CreatedAt: at(5), ParentID: "gone"},
		}},
	}

	items := CarouselOf(cols, model.PhaseCollect)
	var ids []string
	for _, it := range items {
		ids = append(ids, it.Card.ID)
	}
	if !slices.Equal(ids, []string{"a3", "a1", "orphan", "b1"}) {
		t.Fatalf("slides = %v", ids)
	}
	if len(items[1].Children) != 1 || items[1].Children[0].ID != "a2" {
		t.Errorf("a1 children = %+v", items[1].Children)
	}
	if items[2].Column.ID != "B" {
		t.Errorf("orphan column = %s", items[2].Column.ID)
	}
}

func TestCarousel_FromBoard(t *testing.T) {
	tb := newTestBoard(t, twoColumnBoard(model.PhaseVote),
		model.Card{ID: "low", ColumnID: "A", UpVotes: 1, CreatedAt: at(2)},
		model.Card{ID: "high", ColumnID: "A", UpVotes: 4, CreatedAt: at(1)},
	)
	items := tb.Carousel()
	if len(items) != 2 || items[0].Card.ID != "high" {
		t.Errorf("carousel = %+v, want vote order", items)
	}
}
