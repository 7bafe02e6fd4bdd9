// Package sizing computes the tradable notional for a dual-leg
// arbitrage entry from the two venues' top-of-book quotes.
//
// Grounded on original_source/trading.py::calculate_tradable_amount:
// the tradable amount is the smallest of the four top-of-book
// notionals (ask and bid, on both venues), so neither leg's fill can
// exceed what the order book can actually absorb at its best price.
package sizing

import (
	"github.com/shopspring/decimal"

	"arbigate/venue"
)

// SafetyFactor is applied by the executor, not here, to the raw
// result Calculate returns (spec keeps sizing and the safety margin
// as separate concerns).
const SafetyFactor = "0.95"

// Result is the outcome of a sizing pass.
type Result struct {
	NotionalUSDT decimal.Decimal
	Sized        bool
}

// Calculate returns the minimum of the best-ask and best-bid
// notionals on both venues' order books. A missing or empty book on
// either side makes the pair unsized; the caller should skip the
// cycle rather than trade on a partial picture.
func Calculate(a, b venue.OrderBook) Result {
	if !a.Usable() || !b.Usable() {
		return Result{Sized: false}
	}

	notionals := []decimal.Decimal{
		a.Asks[0].Notional(),
		a.Bids[0].Notional(),
		b.Asks[0].Notional(),
		b.Bids[0].Notional(),
	}

	min := notionals[0]
	for _, n := range notionals[1:] {
		if n.LessThan(min) {
			min = n
		}
	}

	if !min.IsPositive() {
		return Result{Sized: false}
	}
	return Result{NotionalUSDT: min, Sized: true}
}

// WithSafetyFactor scales a sized notional down by SafetyFactor. The
// executor calls this immediately before submitting the dual-leg
// order, never earlier, so sizing itself stays a pure top-of-book
// calculation.
func WithSafetyFactor(notional decimal.Decimal) decimal.Decimal {
	factor, _ := decimal.NewFromString(SafetyFactor)
	return notional.Mul(factor)
}
