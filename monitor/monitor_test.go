package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbigate/venue"
)

type fakeAdapter struct {
	id    venue.ID
	price decimal.Decimal
}

func (f *fakeAdapter) ID() venue.ID { return f.id }
func (f *fakeAdapter) FetchTicker(ctx context.Context, symbol venue.Symbol) (venue.Ticker, error) {
	return venue.Ticker{Last: f.price, TS: time.Now()}, nil
}
func (f *fakeAdapter) FetchOrderBook(ctx context.Context, symbol venue.Symbol, depth int) (venue.OrderBook, error) {
	lvl := venue.Level{Price: f.price, Qty: decimal.NewFromInt(10)}
	return venue.OrderBook{Asks: []venue.Level{lvl}, Bids: []venue.Level{lvl}}, nil
}
func (f *fakeAdapter) FetchBalance(ctx context.Context) (venue.Balance, error) { return venue.Balance{}, nil }
func (f *fakeAdapter) FetchPosition(ctx context.Context, symbol venue.Symbol) (venue.Position, error) {
	return venue.Position{}, nil
}
func (f *fakeAdapter) SetMarginMode(ctx context.Context, symbol venue.Symbol, mode string) error { return nil }
func (f *fakeAdapter) SetLeverage(ctx context.Context, symbol venue.Symbol, leverage int) error  { return nil }
func (f *fakeAdapter) PlaceMarketOrder(ctx context.Context, symbol venue.Symbol, side venue.Side, notionalUSDT decimal.Decimal) (venue.OrderOutcome, error) {
	return venue.OrderOutcome{OK: true}, nil
}
func (f *fakeAdapter) CancelOrder(ctx context.Context, orderID string, symbol venue.Symbol) error { return nil }

type fakeNotifier struct {
	mu         sync.Mutex
	sent       []string
	gapAlerts  int32
	selfTestOK bool
}

func (n *fakeNotifier) Send(text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return n.selfTestOK
}
func (n *fakeNotifier) SendGapAlert(reading GapReading) bool {
	atomic.AddInt32(&n.gapAlerts, 1)
	return true
}

type fakeExecutor struct {
	calls int32
}

func (e *fakeExecutor) ExecuteArbitrage(ctx context.Context, reading GapReading, thresholds Thresholds) error {
	atomic.AddInt32(&e.calls, 1)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	records []GapReading
}

func (a *fakeAudit) Record(reading GapReading) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, reading)
}

func TestGapPercent(t *testing.T) {
	gap := GapPercent(decimal.NewFromFloat(105), decimal.NewFromFloat(100))
	assert.True(t, gap.Equal(decimal.NewFromFloat(5)))
}

func TestMonitor_StartStopLifecycle(t *testing.T) {
	router := venue.NewRouter(
		&fakeAdapter{id: venue.M, price: decimal.NewFromInt(105)},
		&fakeAdapter{id: venue.B, price: decimal.NewFromInt(100)},
	)
	notif := &fakeNotifier{selfTestOK: true}
	exec := &fakeExecutor{}
	audit := &fakeAudit{}

	m := New(Config{
		Router:       router,
		Executor:     exec,
		Notifier:     notif,
		Audit:        audit,
		Symbols:      []venue.Symbol{venue.XRPUSDT},
		Pairs:        []Pair{{A: venue.M, B: venue.B}},
		Thresholds:   DefaultThresholds(),
		TickInterval: 10 * time.Millisecond,
	})

	assert.Equal(t, "stopped", m.Status())
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, "running", m.Status())

	time.Sleep(50 * time.Millisecond)
	m.Stop()
	assert.Equal(t, "stopped", m.Status())

	assert.Greater(t, len(audit.records), 0)
	assert.Greater(t, int(atomic.LoadInt32(&exec.calls)), 0)
	assert.Greater(t, int(atomic.LoadInt32(&notif.gapAlerts)), 0)
}

func TestMonitor_SelfTestGatesStart(t *testing.T) {
	router := venue.NewRouter(&fakeAdapter{id: venue.M, price: decimal.NewFromInt(1)})
	notif := &fakeNotifier{selfTestOK: false}

	m := New(Config{
		Router:   router,
		Notifier: notif,
		Symbols:  []venue.Symbol{venue.XRPUSDT},
		Pairs:    []Pair{{A: venue.M, B: venue.M}},
	})

	err := m.Start(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "stopped", m.Status())
}

func TestMonitor_AlertDedup(t *testing.T) {
	router := venue.NewRouter(
		&fakeAdapter{id: venue.M, price: decimal.NewFromInt(110)},
		&fakeAdapter{id: venue.B, price: decimal.NewFromInt(100)},
	)
	notif := &fakeNotifier{selfTestOK: true}

	m := New(Config{
		Router:      router,
		Notifier:    notif,
		Symbols:     []venue.Symbol{venue.XRPUSDT},
		Pairs:       []Pair{{A: venue.M, B: venue.B}},
		Thresholds:  DefaultThresholds(),
		AlertWindow: time.Hour,
	})

	m.processPair(context.Background(), venue.XRPUSDT, Pair{A: venue.M, B: venue.B})
	m.processPair(context.Background(), venue.XRPUSDT, Pair{A: venue.M, B: venue.B})

	assert.Equal(t, int32(1), atomic.LoadInt32(&notif.gapAlerts))
}

// TestMonitor_TradeSignalIgnoresDedup verifies trade and notify are
// disjoint signal classes: a gap that keeps crossing the threshold
// must keep reaching the executor every tick even though its alert
// has gone quiet inside the dedup window.
func TestMonitor_TradeSignalIgnoresDedup(t *testing.T) {
	router := venue.NewRouter(
		&fakeAdapter{id: venue.M, price: decimal.NewFromInt(110)},
		&fakeAdapter{id: venue.B, price: decimal.NewFromInt(100)},
	)
	notif := &fakeNotifier{selfTestOK: true}
	exec := &fakeExecutor{}

	m := New(Config{
		Router:      router,
		Executor:    exec,
		Notifier:    notif,
		Symbols:     []venue.Symbol{venue.XRPUSDT},
		Pairs:       []Pair{{A: venue.M, B: venue.B}},
		Thresholds:  DefaultThresholds(),
		AlertWindow: time.Hour,
	})

	m.processPair(context.Background(), venue.XRPUSDT, Pair{A: venue.M, B: venue.B})
	m.processPair(context.Background(), venue.XRPUSDT, Pair{A: venue.M, B: venue.B})

	assert.Equal(t, int32(1), atomic.LoadInt32(&notif.gapAlerts))
	assert.Equal(t, int32(2), atomic.LoadInt32(&exec.calls))
}
