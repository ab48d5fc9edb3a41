package service

import (
	"math/rand/v2"
	"testing"

	"colorgame/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeriveColors(t *testing.T) {
	tests := []struct {
		number   int
		expected models.ColorSet
	}{
		{0, models.ColorSet{models.ColorViolet, models.ColorRed}},
		{1, models.ColorSet{models.ColorRed}},
		{2, models.ColorSet{models.ColorGreen}},
		{3, models.ColorSet{models.ColorRed}},
		{4, models.ColorSet{models.ColorGreen}},
		{5, models.ColorSet{models.ColorViolet, models.ColorGreen}},
		{6, models.ColorSet{models.ColorGreen}},
		{7, models.ColorSet{models.ColorRed}},
		{8, models.ColorSet{models.ColorGreen}},
		{9, models.ColorSet{models.ColorRed}},
	}

	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveColors(tt.number))
		})
	}
}

func TestOutcomeGenerator_DrawStaysInRange(t *testing.T) {
	generator := NewOutcomeGenerator(rand.New(rand.NewPCG(1, 2)))
	low := decimal.NewFromInt(50)
	high := decimal.NewFromInt(150)

	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		outcome := generator.Draw()

		assert.GreaterOrEqual(t, outcome.Number, 0)
		assert.LessOrEqual(t, outcome.Number, 9)
		assert.Equal(t, DeriveColors(outcome.Number), outcome.Colors)
		assert.True(t, outcome.Price.GreaterThanOrEqual(low), "price %s below range", outcome.Price)
		assert.True(t, outcome.Price.LessThanOrEqual(high), "price %s above range", outcome.Price)
		assert.Equal(t, outcome.Price.String(), outcome.Price.Round(2).String())

		seen[outcome.Number] = true
	}
	assert.Len(t, seen, 10, "every digit should come up in 1000 draws")
}

func TestOutcomeGenerator_SeededDrawsRepeat(t *testing.T) {
	a := NewOutcomeGenerator(rand.New(rand.NewPCG(7, 7)))
	b := NewOutcomeGenerator(rand.New(rand.NewPCG(7, 7)))

	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Draw(), b.Draw())
	}
}

func TestOutcomeGenerator_DefaultSource(t *testing.T) {
	outcome := NewOutcomeGenerator(nil).Draw()
	assert.NotEmpty(t, outcome.Colors)
}
