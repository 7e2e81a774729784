package engine

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/DoyleJ11/labcards/internal/catalog"
)

var ErrExhausted = errors.New("nothing left to draw")
var ErrRedrawNotAllowed = errors.New("redraw not allowed")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrEmptySuit = errors.New("suit pool is empty")

type Mode string

const (
	// ModeSuitSequence draws one card per suit, visiting catalog.SuitOrder.
	ModeSuitSequence Mode = "suit-sequence"
	// ModeSequential draws from one deck shuffled across every suit.
	ModeSequential Mode = "sequential"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSuitSequence, ModeSequential:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

type Reveal struct {
	Suit catalog.Suit `json:"suit"`
	Card catalog.Card `json:"card"`
}

// State is one session's deck. Apply treats it as a value: slices and maps
// reachable from an input State are never written.
type State struct {
	Mode       Mode
	Cursor     int
	Remaining  map[catalog.Suit][]catalog.Card
	Shuffled   []catalog.Card
	Revealed   []Reveal
	RedrawUsed map[catalog.Suit]bool
}

type CommandType string

const (
	CmdDraw   CommandType = "draw"
	CmdRedraw CommandType = "redraw"
	CmdReset  CommandType = "reset"
)

/*
	CmdDraw   -> EvtDrawn
	CmdRedraw -> EvtRedrawn (replaces Revealed[Position] in place)
	CmdReset  -> EvtReset, built by NewState rather than Apply since it needs the catalog
*/

type Command struct {
	Type CommandType
	Suit catalog.Suit
}

type EventType string

const (
	EvtDrawn    EventType = "drawn"
	EvtRedrawn  EventType = "redrawn"
	EvtReset    EventType = "reset"
	EvtSnapshot EventType = "snapshot"
)

// Event records one completed transition. Version is assigned by the owner
// of the state, Apply leaves it zero.
type Event struct {
	Type     EventType
	Version  int
	Position int
	Suit     catalog.Suit
	Card     catalog.Card
	Snapshot *Snapshot
}

func Apply(s State, cmd Command) (Event, State, error) {
	switch cmd.Type {
	case CmdDraw:
		return draw(s)
	case CmdRedraw:
		return redraw(s, cmd.Suit)
	default:
		return Event{}, s, ErrUnsupportedCommand
	}
}

func draw(s State) (Event, State, error) {
	if Exhausted(s) {
		return Event{}, s, ErrExhausted
	}

	newState := s
	var card catalog.Card

	switch s.Mode {
	case ModeSequential:
		card = s.Shuffled[s.Cursor]

	default:
		suit := catalog.SuitOrder[s.Cursor]
		pool := s.Remaining[suit]
		if len(pool) == 0 {
			return Event{}, s, fmt.Errorf("%w: %s", ErrEmptySuit, suit)
		}
		// Pools are shuffled when the state is built, so the tail is a uniform pick.
		card = pool[len(pool)-1]
		newState.Remaining = maps.Clone(s.Remaining)
		newState.Remaining[suit] = pool[:len(pool)-1:len(pool)-1]
	}

	newState.Revealed = append(slices.Clip(s.Revealed), Reveal{Suit: card.Suit, Card: card})
	newState.Cursor = s.Cursor + 1

	evt := Event{Type: EvtDrawn, Position: s.Cursor, Suit: card.Suit, Card: card}
	return evt, newState, nil
}

func redraw(s State, suit catalog.Suit) (Event, State, error) {
	if s.Mode != ModeSuitSequence {
		return Event{}, s, fmt.Errorf("%w: only in %s mode", ErrRedrawNotAllowed, ModeSuitSequence)
	}
	if !RedrawEligible[suit] {
		return Event{}, s, fmt.Errorf("%w: %q is not eligible", ErrRedrawNotAllowed, suit)
	}
	if s.RedrawUsed[suit] {
		return Event{}, s, fmt.Errorf("%w: %s already redrawn", ErrRedrawNotAllowed, suit)
	}
	pos, ok := revealedAt(s, suit)
	if !ok {
		return Event{}, s, fmt.Errorf("%w: %s not drawn yet", ErrRedrawNotAllowed, suit)
	}
	pool := s.Remaining[suit]
	if len(pool) == 0 {
		return Event{}, s, fmt.Errorf("%w: no %s cards left", ErrRedrawNotAllowed, suit)
	}

	card := pool[len(pool)-1]
	newState := s
	newState.Remaining = maps.Clone(s.Remaining)
	newState.Remaining[suit] = pool[:len(pool)-1:len(pool)-1]
	newState.Revealed = slices.Clone(s.Revealed)
	newState.Revealed[pos] = Reveal{Suit: suit, Card: card}
	newState.RedrawUsed = maps.Clone(s.RedrawUsed)
	newState.RedrawUsed[suit] = true

	evt := Event{Type: EvtRedrawn, Position: pos, Suit: suit, Card: card}
	return evt, newState, nil
}

func revealedAt(s State, suit catalog.Suit) (int, bool) {
	for i, r := range s.Revealed {
		if r.Suit == suit {
			return i, true
		}
	}
	return 0, false
}
