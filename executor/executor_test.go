package executor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbigate/monitor"
	"arbigate/venue"
)

type fakeAdapter struct {
	id         venue.ID
	failOrders bool
	cancels    int32
	position   venue.Position
}

func (f *fakeAdapter) ID() venue.ID { return f.id }
func (f *fakeAdapter) FetchTicker(ctx context.Context, symbol venue.Symbol) (venue.Ticker, error) {
	return venue.Ticker{}, nil
}
func (f *fakeAdapter) FetchOrderBook(ctx context.Context, symbol venue.Symbol, depth int) (venue.OrderBook, error) {
	return venue.OrderBook{}, nil
}
func (f *fakeAdapter) FetchBalance(ctx context.Context) (venue.Balance, error) { return venue.Balance{}, nil }
func (f *fakeAdapter) FetchPosition(ctx context.Context, symbol venue.Symbol) (venue.Position, error) {
	return f.position, nil
}
func (f *fakeAdapter) SetMarginMode(ctx context.Context, symbol venue.Symbol, mode string) error { return nil }
func (f *fakeAdapter) SetLeverage(ctx context.Context, symbol venue.Symbol, leverage int) error  { return nil }
func (f *fakeAdapter) PlaceMarketOrder(ctx context.Context, symbol venue.Symbol, side venue.Side, notionalUSDT decimal.Decimal) (venue.OrderOutcome, error) {
	if f.failOrders {
		return venue.OrderOutcome{OK: false}, nil
	}
	return venue.OrderOutcome{OK: true, OrderID: string(f.id) + "-order"}, nil
}
func (f *fakeAdapter) CancelOrder(ctx context.Context, orderID string, symbol venue.Symbol) error {
	atomic.AddInt32(&f.cancels, 1)
	return nil
}

type fakeNotifier struct{ sent []string }

func (n *fakeNotifier) Send(text string) bool {
	n.sent = append(n.sent, text)
	return true
}

type fakeAudit struct{ trades []TradeResult }

func (a *fakeAudit) RecordTrade(t TradeResult) { a.trades = append(a.trades, t) }

func sampleReading(gap decimal.Decimal) monitor.GapReading {
	lvl := venue.Level{Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(10)}
	ob := venue.OrderBook{Asks: []venue.Level{lvl}, Bids: []venue.Level{lvl}}
	return monitor.GapReading{
		Symbol: venue.XRPUSDT,
		Pair:   monitor.Pair{A: venue.M, B: venue.B},
		QuoteA: venue.Quote{OrderBook: ob},
		QuoteB: venue.Quote{OrderBook: ob},
		GapPct: gap,
	}
}

func TestExecuteArbitrage_BothLegsSucceed(t *testing.T) {
	router := venue.NewRouter(&fakeAdapter{id: venue.M}, &fakeAdapter{id: venue.B})
	notif := &fakeNotifier{}
	audit := &fakeAudit{}
	e := New(router, notif, audit)

	err := e.ExecuteArbitrage(context.Background(), sampleReading(decimal.NewFromFloat(0.1)), monitor.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, audit.trades, 1)
	assert.True(t, audit.trades[0].OK)
}

func TestExecuteArbitrage_PartialFailureCompensates(t *testing.T) {
	a := &fakeAdapter{id: venue.M}
	b := &fakeAdapter{id: venue.B, failOrders: true}
	router := venue.NewRouter(a, b)
	audit := &fakeAudit{}
	e := New(router, &fakeNotifier{}, audit)

	err := e.ExecuteArbitrage(context.Background(), sampleReading(decimal.NewFromFloat(0.1)), monitor.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, audit.trades, 1)
	assert.False(t, audit.trades[0].OK)
	assert.Equal(t, int32(1), atomic.LoadInt32(&a.cancels))
}

func TestExecuteArbitrage_Unsized(t *testing.T) {
	router := venue.NewRouter(&fakeAdapter{id: venue.M}, &fakeAdapter{id: venue.B})
	audit := &fakeAudit{}
	e := New(router, &fakeNotifier{}, audit)

	reading := sampleReading(decimal.NewFromFloat(0.1))
	reading.QuoteA.OrderBook = venue.OrderBook{}

	err := e.ExecuteArbitrage(context.Background(), reading, monitor.DefaultThresholds())
	require.NoError(t, err)
	assert.Empty(t, audit.trades)
}

func TestClosePositions_NoOpenPositions(t *testing.T) {
	router := venue.NewRouter(&fakeAdapter{id: venue.M}, &fakeAdapter{id: venue.B})
	e := New(router, &fakeNotifier{}, &fakeAudit{})

	result, err := e.ClosePositions(context.Background(), monitor.Pair{A: venue.M, B: venue.B}, venue.XRPUSDT)
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestClosePositions_ClosesOpenLeg(t *testing.T) {
	a := &fakeAdapter{id: venue.M, position: venue.Position{Side: venue.PositionLong, Contracts: decimal.NewFromInt(5)}}
	b := &fakeAdapter{id: venue.B}
	router := venue.NewRouter(a, b)
	audit := &fakeAudit{}
	notif := &fakeNotifier{}
	e := New(router, notif, audit)

	result, err := e.ClosePositions(context.Background(), monitor.Pair{A: venue.M, B: venue.B}, venue.XRPUSDT)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.True(t, result.LegA.OK)
	require.Len(t, audit.trades, 1)

	require.Len(t, notif.sent, 1, "a successful close must send a PnL summary")
	assert.Contains(t, notif.sent[0], "positions closed")
	assert.Contains(t, notif.sent[0], "long")
}

func TestClosePositions_PartialFailureSendsNoNotification(t *testing.T) {
	a := &fakeAdapter{id: venue.M, position: venue.Position{Side: venue.PositionLong, Contracts: decimal.NewFromInt(5)}}
	b := &fakeAdapter{id: venue.B, position: venue.Position{Side: venue.PositionShort, Contracts: decimal.NewFromInt(5)}, failOrders: true}
	router := venue.NewRouter(a, b)
	notif := &fakeNotifier{}
	e := New(router, notif, &fakeAudit{})

	result, err := e.ClosePositions(context.Background(), monitor.Pair{A: venue.M, B: venue.B}, venue.XRPUSDT)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Empty(t, notif.sent, "a partial close must not claim success via notification")
}
