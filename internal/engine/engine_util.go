package engine

import (
	"maps"
	"slices"

	"github.com/DoyleJ11/labcards/internal/catalog"
)

// Snapshot is everything a participant needs to rebuild the session view.
type Snapshot struct {
	Version    int
	Mode       Mode
	Revealed   []Reveal
	Cursor     int
	Remaining  int
	Total      int
	Exhausted  bool
	CanRedraw  map[catalog.Suit]bool
	RedrawUsed map[catalog.Suit]bool
}

// NewState builds a fresh, fully shuffled deck for mode.
func NewState(set *catalog.Set, mode Mode, shuffle Shuffler) State {
	s := State{
		Mode:       mode,
		Revealed:   []Reveal{},
		RedrawUsed: map[catalog.Suit]bool{},
	}

	switch mode {
	case ModeSequential:
		s.Shuffled = set.Cards()
		shuffle(len(s.Shuffled), func(i, j int) {
			s.Shuffled[i], s.Shuffled[j] = s.Shuffled[j], s.Shuffled[i]
		})
	default:
		s.Mode = ModeSuitSequence
		for suit := range RedrawEligible {
			s.RedrawUsed[suit] = false
		}
		s.Remaining = make(map[catalog.Suit][]catalog.Card, len(catalog.SuitOrder))
		for _, suit := range catalog.SuitOrder {
			pool := set.Suit(suit)
			shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
			s.Remaining[suit] = pool
		}
	}
	return s
}

func Total(s State) int {
	if s.Mode == ModeSequential {
		return len(s.Shuffled)
	}
	return len(catalog.SuitOrder)
}

func Exhausted(s State) bool {
	return s.Cursor >= Total(s)
}

// CanRedraw reports which eligible suits have a redraw available right now.
func CanRedraw(s State) map[catalog.Suit]bool {
	out := map[catalog.Suit]bool{}
	if s.Mode != ModeSuitSequence {
		return out
	}
	for suit := range RedrawEligible {
		_, drawn := revealedAt(s, suit)
		out[suit] = drawn && !s.RedrawUsed[suit] && len(s.Remaining[suit]) > 0
	}
	return out
}

// Snap copies the observable part of s. The result shares nothing mutable with s.
func Snap(s State, version int) Snapshot {
	return Snapshot{
		Version:    version,
		Mode:       s.Mode,
		Revealed:   slices.Clone(s.Revealed),
		Cursor:     s.Cursor,
		Remaining:  max(Total(s)-s.Cursor, 0),
		Total:      Total(s),
		Exhausted:  Exhausted(s),
		CanRedraw:  CanRedraw(s),
		RedrawUsed: maps.Clone(s.RedrawUsed),
	}
}

func ContainsSuit(revealed []Reveal, suit catalog.Suit) bool {
	return slices.ContainsFunc(revealed, func(r Reveal) bool { return r.Suit == suit })
}
