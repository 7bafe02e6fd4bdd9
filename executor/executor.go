// Package executor implements the dual-leg order execution C5: given
// a gap reading crossing a threshold, size the trade, submit both
// legs concurrently, and compensate a partial failure by cancelling
// only the leg that succeeded — never by opening an opposing order,
// which would double the exposure instead of flattening it.
//
// Grounded on original_source/trading.py::execute_simultaneous_orders
// and ::close_positions.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbigate/logger"
	"arbigate/monitor"
	"arbigate/sizing"
	"arbigate/venue"
)

// Notifier is the subset of notifier.Notifier the executor drives to
// report trade outcomes.
type Notifier interface {
	Send(text string) bool
}

// AuditSink records the outcome of an executed trade.
type AuditSink interface {
	RecordTrade(TradeResult)
}

// TradeResult summarizes one dual-leg execution.
type TradeResult struct {
	Symbol     venue.Symbol
	Pair       monitor.Pair
	GapPct     decimal.Decimal
	Notional   decimal.Decimal
	LegA, LegB venue.OrderOutcome
	OK         bool
	At         time.Time
}

// Executor implements monitor.Executor.
type Executor struct {
	router   *venue.Router
	notifier Notifier
	audit    AuditSink
}

func New(router *venue.Router, notifier Notifier, audit AuditSink) *Executor {
	return &Executor{router: router, notifier: notifier, audit: audit}
}

// ExecuteArbitrage sizes the pair's current order books, decides leg
// direction from which side of the threshold the gap crossed, and
// submits both legs. A long-gap entry (A trading rich relative to B)
// sells A and buys B; a short-gap entry does the reverse, matching
// price_monitor.py::execute_arbitrage_trades.
func (e *Executor) ExecuteArbitrage(ctx context.Context, reading monitor.GapReading, thresholds monitor.Thresholds) error {
	sized := sizing.Calculate(reading.QuoteA.OrderBook, reading.QuoteB.OrderBook)
	if !sized.Sized {
		logger.Log.Warnf("executor: %s %s unsized, skipping", reading.Symbol, reading.Pair.String())
		return nil
	}
	notional := sizing.WithSafetyFactor(sized.NotionalUSDT)

	var sideA, sideB venue.Side
	if reading.GapPct.GreaterThanOrEqual(thresholds.EntryLong) {
		sideA, sideB = venue.Sell, venue.Buy
	} else {
		sideA, sideB = venue.Buy, venue.Sell
	}

	result := e.submitDualLeg(ctx, reading.Pair.A, reading.Pair.B, reading.Symbol, sideA, sideB, notional)
	result.Symbol = reading.Symbol
	result.Pair = reading.Pair
	result.GapPct = reading.GapPct
	result.Notional = notional
	result.At = time.Now()

	if e.audit != nil {
		e.audit.RecordTrade(result)
	}

	outcome := "succeeded"
	if !result.OK {
		outcome = "failed"
	}
	if e.notifier != nil {
		e.notifier.Send(fmt.Sprintf("arbitrage trade %s: %s %s notional=%s gap=%s%%",
			outcome, reading.Symbol, reading.Pair.String(), notional.StringFixed(2), reading.GapPct.StringFixed(2)))
	}
	return nil
}

// submitDualLeg places both legs concurrently and waits for both to
// settle before deciding on compensation.
func (e *Executor) submitDualLeg(ctx context.Context, venueA, venueB venue.ID, symbol venue.Symbol, sideA, sideB venue.Side, notional decimal.Decimal) TradeResult {
	var legA, legB venue.OrderOutcome
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		legA = e.placeLeg(ctx, venueA, symbol, sideA, notional)
	}()
	go func() {
		defer wg.Done()
		legB = e.placeLeg(ctx, venueB, symbol, sideB, notional)
	}()
	wg.Wait()

	result := TradeResult{LegA: legA, LegB: legB, OK: legA.OK && legB.OK}

	switch {
	case legA.OK && !legB.OK:
		e.compensate(ctx, venueA, legA.OrderID, symbol)
	case legB.OK && !legA.OK:
		e.compensate(ctx, venueB, legB.OrderID, symbol)
	}

	return result
}

func (e *Executor) placeLeg(ctx context.Context, id venue.ID, symbol venue.Symbol, side venue.Side, notional decimal.Decimal) venue.OrderOutcome {
	adapter, err := e.router.Get(id)
	if err != nil {
		return venue.OrderOutcome{OK: false, RawResponse: err.Error()}
	}

	if err := adapter.SetMarginMode(ctx, symbol, "cross"); err != nil {
		logger.Log.Debugf("executor: setMarginMode %s %s: %v (non-fatal)", id, symbol, err)
	}
	if err := adapter.SetLeverage(ctx, symbol, 1); err != nil {
		logger.Log.Debugf("executor: setLeverage %s %s: %v (non-fatal)", id, symbol, err)
	}

	outcome, err := adapter.PlaceMarketOrder(ctx, symbol, side, notional)
	if err != nil {
		logger.Log.Errorf("executor: placeMarketOrder %s %s %s: %v", id, symbol, side, err)
		return venue.OrderOutcome{OK: false, RawResponse: err.Error()}
	}
	return outcome
}

// compensate cancels the single leg that succeeded when its partner
// failed. This is a best-effort call: if the cancel itself fails the
// position is left open and must be closed manually, which is logged
// loudly rather than retried, since retrying a cancel against an
// already-filled order can make things worse.
func (e *Executor) compensate(ctx context.Context, id venue.ID, orderID string, symbol venue.Symbol) {
	adapter, err := e.router.Get(id)
	if err != nil {
		logger.Log.Errorf("executor: compensate %s: router: %v", id, err)
		return
	}
	if err := adapter.CancelOrder(ctx, orderID, symbol); err != nil {
		logger.Log.Errorf("executor: compensate cancel %s order=%s: %v — manual intervention required", id, orderID, err)
		return
	}
	logger.Log.Warnf("executor: compensated partial fill by cancelling %s order=%s", id, orderID)
}

// ClosePositions flattens both legs of a pair by submitting the
// opposite side at the current position size on each venue. Mirrors
// original_source/trading.py::close_positions.
func (e *Executor) ClosePositions(ctx context.Context, pair monitor.Pair, symbol venue.Symbol) (TradeResult, error) {
	adapterA, err := e.router.Get(pair.A)
	if err != nil {
		return TradeResult{}, err
	}
	adapterB, err := e.router.Get(pair.B)
	if err != nil {
		return TradeResult{}, err
	}

	posA, err := adapterA.FetchPosition(ctx, symbol)
	if err != nil {
		return TradeResult{}, err
	}
	posB, err := adapterB.FetchPosition(ctx, symbol)
	if err != nil {
		return TradeResult{}, err
	}

	if !posA.Contracts.IsPositive() && !posB.Contracts.IsPositive() {
		return TradeResult{OK: true}, nil
	}

	var legA, legB venue.OrderOutcome
	var wg sync.WaitGroup

	if posA.Contracts.IsPositive() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			legA = e.placeLeg(ctx, pair.A, symbol, closingSide(posA.Side), posA.Contracts)
		}()
	}
	if posB.Contracts.IsPositive() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			legB = e.placeLeg(ctx, pair.B, symbol, closingSide(posB.Side), posB.Contracts)
		}()
	}
	wg.Wait()

	// A leg with no open position needs no order and counts as closed.
	okA := legA.OK || !posA.Contracts.IsPositive()
	okB := legB.OK || !posB.Contracts.IsPositive()
	result := TradeResult{LegA: legA, LegB: legB, OK: okA && okB, Symbol: symbol, Pair: pair, At: time.Now()}
	if e.audit != nil {
		e.audit.RecordTrade(result)
	}
	if result.OK && e.notifier != nil {
		e.notifier.Send(closeOutcomeMessage(symbol, pair, posA, posB))
	}
	return result, nil
}

// closeOutcomeMessage formats the PnL summary sent on a successful
// close, matching trading.py::close_positions' report: per-leg side,
// size, and unrealized PnL for both venues.
func closeOutcomeMessage(symbol venue.Symbol, pair monitor.Pair, posA, posB venue.Position) string {
	return fmt.Sprintf("positions closed %s %s: %s %s size=%s pnl=%s | %s %s size=%s pnl=%s",
		symbol, pair.String(),
		pair.A, posA.Side, posA.Contracts.StringFixed(2), posA.UnrealizedPnL.StringFixed(4),
		pair.B, posB.Side, posB.Contracts.StringFixed(2), posB.UnrealizedPnL.StringFixed(4))
}

func closingSide(side venue.PositionSide) venue.Side {
	if side == venue.PositionLong {
		return venue.Sell
	}
	return venue.Buy
}
