package venue

import "github.com/shopspring/decimal"

// toOrderBook normalizes a venue's raw [price, qty] level arrays into
// the shared OrderBook shape, truncating to depth on each side. Levels
// with a non-positive price or quantity are dropped rather than
// surfaced, since a zero level cannot back a notional calculation.
func toOrderBook(asks, bids [][2]decimal.Decimal, depth int) OrderBook {
	ob := OrderBook{
		Asks: make([]Level, 0, depth),
		Bids: make([]Level, 0, depth),
	}
	for _, a := range asks {
		if len(ob.Asks) >= depth {
			break
		}
		if a[0].IsPositive() && a[1].IsPositive() {
			ob.Asks = append(ob.Asks, Level{Price: a[0], Qty: a[1]})
		}
	}
	for _, b := range bids {
		if len(ob.Bids) >= depth {
			break
		}
		if b[0].IsPositive() && b[1].IsPositive() {
			ob.Bids = append(ob.Bids, Level{Price: b[0], Qty: b[1]})
		}
	}
	return ob
}
