package model

import "sort"

// Less reports whether a sorts before b.
type Less func(a, b Card) bool

// ByCreatedDesc orders newest cards first.
func ByCreatedDesc(a, b Card) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// ByVotesThenCreated orders by vote count (descending), then newest first.
func ByVotesThenCreated(a, b Card) bool {
	if a.UpVotes != b.UpVotes {
		return a.UpVotes > b.UpVotes
	}
	return ByCreatedDesc(a, b)
}

// ComparatorFor returns the card ordering used while the board is in phase p.
// Votes only matter once they can be cast.
func ComparatorFor(p Phase) Less {
	switch p {
	case PhaseVote, PhaseAct:
		return ByVotesThenCreated
	default:
		return ByCreatedDesc
	}
}

// SortCards sorts cards in place with less, keeping equal elements stable.
func SortCards(cards []Card, less Less) {
	sort.SliceStable(cards, func(i, j int) bool {
		return less(cards[i], cards[j])
	})
}
