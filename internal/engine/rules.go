package engine

import "github.com/DoyleJ11/labcards/internal/catalog"

// RedrawEligible lists the suits whose revealed card may be swapped once per session.
var RedrawEligible = map[catalog.Suit]bool{
	catalog.SuitWorkshop: true,
	catalog.SuitTool:     true,
	catalog.SuitProtocol: true,
}

// Shuffler matches (*rand.Rand).Shuffle.
type Shuffler func(n int, swap func(i, j int))
