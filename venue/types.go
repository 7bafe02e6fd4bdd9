// Package venue normalizes the REST surfaces of the three supported
// futures venues (M, G, B) into one contract that the rest of the
// system can drive without caring which exchange it is talking to.
package venue

import (
	"time"

	"github.com/shopspring/decimal"
)

// ID identifies one of the three supported venues. It is a closed
// enumeration; callers should treat any other value as invalid.
type ID string

const (
	M ID = "M" // MEXC Futures
	G ID = "G" // Gate.io Futures (USDT-settled)
	B ID = "B" // Bitget Futures (USDT-M)
)

func (v ID) String() string { return string(v) }

// Valid reports whether v is one of the three known venues.
func (v ID) Valid() bool {
	switch v {
	case M, G, B:
		return true
	default:
		return false
	}
}

// Config holds one venue's immutable connection settings.
type Config struct {
	APIKey     string
	APISecret  string
	Passphrase string // only Venue B uses this
	BaseURL    string
	RateLimit  time.Duration // minimum inter-request delay
	MarginMode string        // default "cross"
	Leverage   int           // default 1
}

// Symbol is the canonical BASE/USDT trading pair form. Adapters
// translate it to venue-native form at the boundary and never leak
// the native form upward.
type Symbol string

// Base returns the base asset of a canonical symbol, e.g. "XRP" for
// "XRP/USDT".
func (s Symbol) Base() string {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return string(s[:i])
		}
	}
	return string(s)
}

const (
	XRPUSDT  Symbol = "XRP/USDT"
	DOGEUSDT Symbol = "DOGE/USDT"
)

// Whitelist is the set of symbols eligible for the trade path. The
// notify path applies to the same set.
var Whitelist = []Symbol{XRPUSDT, DOGEUSDT}

// InWhitelist reports whether s is eligible for arbitrage trading.
func InWhitelist(s Symbol) bool {
	for _, w := range Whitelist {
		if w == s {
			return true
		}
	}
	return false
}

// Side is an order side.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Ticker is a last-trade snapshot. A failed fetch yields the sentinel
// Ticker{} (Last.IsZero()) which all consumers must treat as "skip
// this cycle".
type Ticker struct {
	Last decimal.Decimal
	TS   time.Time
}

// Usable reports whether t carries a real price.
func (t Ticker) Usable() bool {
	return t.Last.IsPositive()
}

// Level is one price/quantity rung of an order book.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Notional returns price * qty for this level.
func (l Level) Notional() decimal.Decimal {
	return l.Price.Mul(l.Qty)
}

// OrderBook holds the top levels of both sides. A successful fetch
// carries at least one level per side; asks rise and bids fall walking
// away from the top.
type OrderBook struct {
	Asks []Level
	Bids []Level
}

// Usable reports whether ob has at least one level on each side.
func (ob OrderBook) Usable() bool {
	return len(ob.Asks) > 0 && len(ob.Bids) > 0
}

// Quote bundles an order book and a ticker fetched together for one
// (venue, symbol) pair.
type Quote struct {
	Venue     ID
	Symbol    Symbol
	OrderBook OrderBook
	Ticker    Ticker
	FetchedAt time.Time
}

// Balance is a venue's USDT futures wallet snapshot. DailyPnL and
// MonthlyPnL are placeholders the source API hardcodes to zero; no
// venue adapter computes real values for them yet.
type Balance struct {
	Total      decimal.Decimal
	Free       decimal.Decimal
	Used       decimal.Decimal
	DailyPnL   decimal.Decimal
	MonthlyPnL decimal.Decimal
}

// PositionSide distinguishes long and short.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// Position is a venue's open position for one symbol.
type Position struct {
	Side           PositionSide
	Contracts      decimal.Decimal
	UnrealizedPnL  decimal.Decimal
}

// OrderOutcome is the result of a single order placement. A non-ok
// outcome never carries an OrderID.
type OrderOutcome struct {
	OK          bool
	OrderID     string
	LatencyMs   int64
	RawResponse string
}
