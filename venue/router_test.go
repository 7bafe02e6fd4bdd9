package venue

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	id ID
}

func (s *stubAdapter) ID() ID { return s.id }
func (s *stubAdapter) FetchTicker(ctx context.Context, symbol Symbol) (Ticker, error) {
	return Ticker{Last: decimal.NewFromInt(1), TS: time.Now()}, nil
}
func (s *stubAdapter) FetchOrderBook(ctx context.Context, symbol Symbol, depth int) (OrderBook, error) {
	return OrderBook{
		Asks: []Level{{Price: decimal.NewFromInt(1), Qty: decimal.NewFromInt(1)}},
		Bids: []Level{{Price: decimal.NewFromInt(1), Qty: decimal.NewFromInt(1)}},
	}, nil
}
func (s *stubAdapter) FetchBalance(ctx context.Context) (Balance, error)  { return Balance{}, nil }
func (s *stubAdapter) FetchPosition(ctx context.Context, symbol Symbol) (Position, error) {
	return Position{}, nil
}
func (s *stubAdapter) SetMarginMode(ctx context.Context, symbol Symbol, mode string) error { return nil }
func (s *stubAdapter) SetLeverage(ctx context.Context, symbol Symbol, leverage int) error   { return nil }
func (s *stubAdapter) PlaceMarketOrder(ctx context.Context, symbol Symbol, side Side, notionalUSDT decimal.Decimal) (OrderOutcome, error) {
	return OrderOutcome{OK: true}, nil
}
func (s *stubAdapter) CancelOrder(ctx context.Context, orderID string, symbol Symbol) error { return nil }

func TestRouter_UnknownVenue(t *testing.T) {
	r := NewRouter(&stubAdapter{id: M})
	_, err := r.Get(G)
	assert.ErrorIs(t, err, ErrUnknownVenue)
}

func TestRouter_Registered(t *testing.T) {
	r := NewRouter(&stubAdapter{id: B}, &stubAdapter{id: M})
	assert.Equal(t, []ID{M, B}, r.Registered())
}

func TestRouter_FetchQuote(t *testing.T) {
	r := NewRouter(&stubAdapter{id: M})
	q, err := r.FetchQuote(context.Background(), M, XRPUSDT, 5)
	require.NoError(t, err)
	assert.True(t, q.OrderBook.Usable())
	assert.True(t, q.Ticker.Usable())
}
