package service

import (
	"math/rand/v2"

	"colorgame/models"

	"github.com/shopspring/decimal"
)

var (
	minPrice  = decimal.NewFromInt(50)
	priceSpan = decimal.NewFromInt(100)
)

// globalSource draws from the runtime's goroutine-safe generator
type globalSource struct{}

func (globalSource) IntN(n int) int   { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

// OutcomeGenerator draws round outcomes. With the default source it holds no
// mutable state of its own and is safe for concurrent use.
type OutcomeGenerator struct {
	source OutcomeSource
}

// NewOutcomeGenerator creates a generator over source. A nil source uses the
// global math/rand/v2 functions; pass a seeded *rand.Rand for reproducible draws.
func NewOutcomeGenerator(source OutcomeSource) *OutcomeGenerator {
	if source == nil {
		source = globalSource{}
	}
	return &OutcomeGenerator{source: source}
}

// Draw produces a number in [0,9], its color set and a cosmetic price in [50,150].
func (g *OutcomeGenerator) Draw() models.Outcome {
	number := g.source.IntN(10)
	price := minPrice.Add(priceSpan.Mul(decimal.NewFromFloat(g.source.Float64()))).Round(2)

	return models.Outcome{
		Number: number,
		Colors: DeriveColors(number),
		Price:  price,
	}
}

// DeriveColors maps a drawn number to its colors: 0 is violet and red,
// 5 is violet and green, other odd numbers are red and other even numbers green.
func DeriveColors(number int) models.ColorSet {
	switch {
	case number == 0:
		return models.ColorSet{models.ColorViolet, models.ColorRed}
	case number == 5:
		return models.ColorSet{models.ColorViolet, models.ColorGreen}
	case number%2 == 0:
		return models.ColorSet{models.ColorGreen}
	default:
		return models.ColorSet{models.ColorRed}
	}
}
