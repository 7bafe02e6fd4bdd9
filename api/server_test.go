package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbigate/venue"
)

type fakeMonitor struct {
	status string
}

func (f *fakeMonitor) Start(ctx context.Context) error { f.status = "running"; return nil }
func (f *fakeMonitor) Stop()                           { f.status = "stopped" }
func (f *fakeMonitor) Status() string                  { return f.status }

type fakeVenueAdapter struct {
	id    venue.ID
	price decimal.Decimal
}

func (f *fakeVenueAdapter) ID() venue.ID { return f.id }
func (f *fakeVenueAdapter) FetchTicker(ctx context.Context, symbol venue.Symbol) (venue.Ticker, error) {
	return venue.Ticker{Last: f.price}, nil
}
func (f *fakeVenueAdapter) FetchOrderBook(ctx context.Context, symbol venue.Symbol, depth int) (venue.OrderBook, error) {
	lvl := venue.Level{Price: f.price, Qty: decimal.NewFromInt(1)}
	return venue.OrderBook{Asks: []venue.Level{lvl}, Bids: []venue.Level{lvl}}, nil
}
func (f *fakeVenueAdapter) FetchBalance(ctx context.Context) (venue.Balance, error) {
	return venue.Balance{Total: decimal.NewFromInt(100), Free: decimal.NewFromInt(80), Used: decimal.NewFromInt(20)}, nil
}
func (f *fakeVenueAdapter) FetchPosition(ctx context.Context, symbol venue.Symbol) (venue.Position, error) {
	return venue.Position{}, nil
}
func (f *fakeVenueAdapter) SetMarginMode(ctx context.Context, symbol venue.Symbol, mode string) error {
	return nil
}
func (f *fakeVenueAdapter) SetLeverage(ctx context.Context, symbol venue.Symbol, leverage int) error {
	return nil
}
func (f *fakeVenueAdapter) PlaceMarketOrder(ctx context.Context, symbol venue.Symbol, side venue.Side, notionalUSDT decimal.Decimal) (venue.OrderOutcome, error) {
	return venue.OrderOutcome{OK: true}, nil
}
func (f *fakeVenueAdapter) CancelOrder(ctx context.Context, orderID string, symbol venue.Symbol) error {
	return nil
}

func liveRouter() *venue.Router {
	return venue.NewRouter(
		&fakeVenueAdapter{id: venue.M, price: decimal.NewFromInt(101)},
		&fakeVenueAdapter{id: venue.G, price: decimal.NewFromInt(102)},
		&fakeVenueAdapter{id: venue.B, price: decimal.NewFromInt(100)},
	)
}

func TestHandleStatus_NotReady(t *testing.T) {
	s := New(venue.NewRouter(), &fakeMonitor{status: "stopped"}, nil, 0)
	s.AddDetail("거래소 연결 중...")

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["initialized"])
	assert.Equal(t, []interface{}{"거래소 연결 중..."}, body["details"])
}

func TestHandleOrderbook_ServiceUnavailableUntilReady(t *testing.T) {
	s := New(venue.NewRouter(), &fakeMonitor{}, []venue.Symbol{venue.XRPUSDT}, 0)
	s.AddDetail("초기화 중...")

	req := httptest.NewRequest(http.MethodGet, "/api/orderbook", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "초기화 중...", body["status"])
	assert.Equal(t, []interface{}{"초기화 중..."}, body["details"])
}

func TestHandleOrderbook_LiveRegardlessOfMonitor(t *testing.T) {
	s := New(liveRouter(), &fakeMonitor{status: "stopped"}, []venue.Symbol{venue.XRPUSDT}, 0)
	s.SetReady()

	req := httptest.NewRequest(http.MethodGet, "/api/orderbook", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []orderbookEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))

	// Exactly one entry per (venue, symbol) for the one symbol
	// configured: MEXC, Gate.io, Bitget in that order, never depending
	// on the monitor (which never started a tick loop here).
	require.Len(t, entries, 3)
	assert.Equal(t, "M", entries[0].Exchange)
	assert.Equal(t, "G", entries[1].Exchange)
	assert.Equal(t, "B", entries[2].Exchange)
	assert.Equal(t, "0.0000", entries[2].PriceGap)
	assert.Equal(t, "0.0000", entries[2].PriceGapUSDT)
	assert.NotEqual(t, "0.0000", entries[0].PriceGap)
}

func TestHandleBalance_ServiceUnavailableEchoesStatus(t *testing.T) {
	s := New(venue.NewRouter(), &fakeMonitor{}, nil, 0)
	s.AddDetail("초기화 중...")

	req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "초기화 중...", body["status"])
}

func TestHandleTradingStartStop(t *testing.T) {
	fm := &fakeMonitor{status: "stopped"}
	s := New(venue.NewRouter(), fm, nil, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/trading/start", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", fm.status)

	req = httptest.NewRequest(http.MethodPost, "/api/trading/stop", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stopped", fm.status)
}

func TestHandleCurrentTime(t *testing.T) {
	s := New(venue.NewRouter(), &fakeMonitor{}, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/current_time", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Asia/Seoul", body["timezone"])
}
