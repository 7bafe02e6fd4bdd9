package venue

import (
	"context"

	"github.com/shopspring/decimal"
)

// Adapter is the uniform contract every venue implements. Adapters
// never propagate raw errors across this boundary for ticker and
// order-book reads: fetch failures return the zero-value sentinel
// (Ticker{}, OrderBook{}) so callers can skip the cycle without
// branching on error type. FetchBalance and FetchPosition do return
// their errors.
type Adapter interface {
	ID() ID

	FetchTicker(ctx context.Context, symbol Symbol) (Ticker, error)
	FetchOrderBook(ctx context.Context, symbol Symbol, depth int) (OrderBook, error)
	FetchBalance(ctx context.Context) (Balance, error)
	FetchPosition(ctx context.Context, symbol Symbol) (Position, error)

	// SetMarginMode and SetLeverage are idempotent; venues commonly
	// reject a request that would be a no-op, so failures here are
	// logged by the adapter and never surfaced as fatal.
	SetMarginMode(ctx context.Context, symbol Symbol, mode string) error
	SetLeverage(ctx context.Context, symbol Symbol, leverage int) error

	PlaceMarketOrder(ctx context.Context, symbol Symbol, side Side, notionalUSDT decimal.Decimal) (OrderOutcome, error)
	CancelOrder(ctx context.Context, orderID string, symbol Symbol) error
}
