package catalog

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

var ErrEmptySuit = errors.New("suit has no cards")
var ErrNoCatalog = errors.New("no catalog file found")

type Suit string

const (
	SuitTouchstone Suit = "TOUCHSTONE"
	SuitWorkshop   Suit = "WORKSHOP"
	SuitTool       Suit = "TOOL"
	SuitProtocol   Suit = "PROTOCOL"
	SuitPlatform   Suit = "PLATFORM"
)

// SuitOrder is the order suits are visited in a suit-sequence session.
var SuitOrder = []Suit{SuitTouchstone, SuitWorkshop, SuitTool, SuitProtocol, SuitPlatform}

func (s Suit) Valid() bool {
	return slices.Contains(SuitOrder, s)
}

type Card struct {
	// Index is the card's row in the source file, counting skipped rows.
	Index     int    `json:"-"`
	Suit      Suit   `json:"suit"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	ShortText string `json:"shortText"`
	URL       string `json:"url,omitempty"`
}

// Set is the read-only card catalog indexed by suit. It is safe for
// concurrent use because nothing mutates it after NewSet returns.
type Set struct {
	cards  []Card
	bySuit map[Suit][]Card
}

// NewSet indexes cards by suit and fails if any suit in SuitOrder is empty.
func NewSet(cards []Card) (*Set, error) {
	s := &Set{
		cards:  make([]Card, 0, len(cards)),
		bySuit: make(map[Suit][]Card, len(SuitOrder)),
	}
	for i, c := range cards {
		if !c.Suit.Valid() {
			return nil, fmt.Errorf("card %d (%q): unknown suit %q", i, c.Name, c.Suit)
		}
		s.cards = append(s.cards, c)
		s.bySuit[c.Suit] = append(s.bySuit[c.Suit], c)
	}

	var err error
	for _, suit := range SuitOrder {
		if len(s.bySuit[suit]) == 0 {
			err = multierr.Append(err, fmt.Errorf("%w: %s", ErrEmptySuit, suit))
		}
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Cards returns a copy of every card in catalog order.
func (s *Set) Cards() []Card { return slices.Clone(s.cards) }

// Suit returns a copy of the cards of one suit in catalog order.
func (s *Set) Suit(suit Suit) []Card { return slices.Clone(s.bySuit[suit]) }

func (s *Set) Len() int { return len(s.cards) }

func (s *Set) Count(suit Suit) int { return len(s.bySuit[suit]) }
