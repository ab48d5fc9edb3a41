// Standalone analysis of the round outcome generator and bet payouts.
// Draws many outcomes with the production generator and settles a one unit
// bet on every possible selection against each of them.
package main

import (
	"flag"
	"fmt"
	"math"
	"strconv"
	"strings"

	"colorgame/models"
	"colorgame/service"

	"github.com/shopspring/decimal"
)

// chiSquaredCritical is the 95% critical value for 9 degrees of freedom
const chiSquaredCritical = 16.92

func main() {
	trials := flag.Int("trials", 100000, "number of outcomes to draw")
	flag.Parse()

	fmt.Println("=== Color Game Outcome Analysis ===")

	generator := service.NewOutcomeGenerator(nil)
	outcomes := make([]models.Outcome, *trials)
	for i := range outcomes {
		outcomes[i] = generator.Draw()
	}

	numberDistribution(outcomes)
	returnToPlayer(outcomes)
}

// numberDistribution checks the drawn numbers are uniform over 0-9
func numberDistribution(outcomes []models.Outcome) {
	buckets := make([]int, 10)
	minPrice, maxPrice := math.Inf(1), math.Inf(-1)
	for _, o := range outcomes {
		buckets[o.Number]++
		price, _ := o.Price.Float64()
		minPrice = math.Min(minPrice, price)
		maxPrice = math.Max(maxPrice, price)
	}

	expected := float64(len(outcomes)) / 10
	fmt.Printf("\nNumber distribution (each bucket should have ~%.0f draws):\n", expected)

	chiSquared := 0.0
	for n, count := range buckets {
		deviation := (float64(count) - expected) / expected * 100
		bar := strings.Repeat("█", int(float64(count)/expected*20))
		fmt.Printf("  %d %-13s %7d (%+5.2f%%) %s\n", n, service.DeriveColors(n), count, deviation, bar)
		chiSquared += math.Pow(float64(count)-expected, 2) / expected
	}

	verdict := "✓ uniform"
	if chiSquared >= chiSquaredCritical {
		verdict = "✗ not uniform"
	}
	fmt.Printf("\n  χ²: %.2f (< %.2f for 95%% confidence) %s\n", chiSquared, chiSquaredCritical, verdict)
	fmt.Printf("  Price range: %.2f - %.2f\n", minPrice, maxPrice)
}

// returnToPlayer settles a one unit bet on each selection against every outcome
func returnToPlayer(outcomes []models.Outcome) {
	type selection struct {
		betType models.BetType
		value   string
	}

	var selections []selection
	for _, c := range []models.Color{models.ColorRed, models.ColorGreen, models.ColorViolet} {
		selections = append(selections, selection{models.BetTypeColor, string(c)})
	}
	for n := 0; n <= 9; n++ {
		selections = append(selections, selection{models.BetTypeNumber, strconv.Itoa(n)})
	}

	fmt.Println("\nReturn to player (1.00 staked per draw):")
	stake := decimal.NewFromInt(1)
	for _, sel := range selections {
		bet := &models.Bet{
			Type:       sel.betType,
			Value:      sel.value,
			Amount:     stake,
			Multiplier: models.MultiplierFor(sel.betType),
		}

		wins := 0
		paid := decimal.Zero
		for _, o := range outcomes {
			result, payout := service.EvaluateBet(bet, o)
			if result == models.BetResultWin {
				wins++
			}
			paid = paid.Add(payout)
		}

		staked := decimal.NewFromInt(int64(len(outcomes)))
		rtp, _ := paid.Div(staked).Float64()
		fmt.Printf("  %-6s %-7s win rate %6.2f%% | RTP %6.2f%% | house edge %+6.2f%%\n",
			sel.betType, sel.value,
			float64(wins)/float64(len(outcomes))*100,
			rtp*100,
			(1-rtp)*100,
		)
	}
}
