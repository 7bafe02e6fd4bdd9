// Package monitor implements the price-gap polling loop: fetch both
// legs of each configured venue pair on a fixed cadence, compute the
// percentage gap, dedup repeat alerts, and hand off entries that
// cross the trading thresholds to the executor.
//
// Grounded on original_source/price_monitor.py::PriceGapMonitor. The
// Python original coupled the monitor directly to the trading
// executor and the Flask app's globals; here the monitor depends on
// three small interfaces (Executor, Notifier, AuditSink) it owns and
// never imports the executor, notifier or audit packages, breaking the
// cyclic wiring the original had.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"arbigate/logger"
	"arbigate/venue"
)

// Pair names a venue pair the monitor watches for a given symbol,
// e.g. M vs B or G vs B.
type Pair struct {
	A, B venue.ID
}

func (p Pair) String() string { return string(p.A) + "-" + string(p.B) }

// Thresholds mirrors price_monitor.py's trading_thresholds: a gap at
// or above EntryLong opens a long-the-cheap-leg / short-the-rich-leg
// position; a gap at or below EntryShort opens the opposite.
type Thresholds struct {
	EntryLong  decimal.Decimal // percent, e.g. 0.05
	EntryShort decimal.Decimal // percent, e.g. -0.06
}

// DefaultThresholds matches the original's hardcoded values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EntryLong:  decimal.NewFromFloat(0.05),
		EntryShort: decimal.NewFromFloat(-0.06),
	}
}

// GapReading is one computed gap between two venues' last prices for
// a symbol.
type GapReading struct {
	Symbol  venue.Symbol
	Pair    Pair
	QuoteA  venue.Quote
	QuoteB  venue.Quote
	GapPct  decimal.Decimal
	At      time.Time
}

// Executor is the subset of executor.Executor the monitor drives.
// Defined here, not imported from the executor package, so the
// dependency points one way: monitor -> Executor interface,
// executor package -> implements it.
type Executor interface {
	ExecuteArbitrage(ctx context.Context, reading GapReading, thresholds Thresholds) error
}

// Notifier is the subset of notifier.Notifier the monitor drives.
type Notifier interface {
	Send(text string) bool
	SendGapAlert(reading GapReading) bool
}

// AuditSink records every observed gap, sized or not, for later
// review.
type AuditSink interface {
	Record(reading GapReading)
}

// Config configures one Monitor instance.
type Config struct {
	Router     *venue.Router
	Executor   Executor
	Notifier   Notifier
	Audit      AuditSink
	Symbols    []venue.Symbol
	Pairs      []Pair
	Thresholds Thresholds
	TickInterval time.Duration
	AlertWindow  time.Duration
	Depth        int
}

const (
	defaultTickInterval = 500 * time.Millisecond
	defaultAlertWindow  = 300 * time.Second
	defaultDepth        = 5
)

type state int

const (
	stateStopped state = iota
	stateRunning
)

// Monitor is the C4 gap-polling loop. Exactly one tick loop runs at a
// time; Start/Stop transition between stopped and running and are
// safe to call concurrently with each other and with Status.
type Monitor struct {
	cfg Config

	mu          sync.Mutex
	st          state
	cancel      context.CancelFunc
	lastAlertAt map[string]time.Time
}

func New(cfg Config) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.AlertWindow <= 0 {
		cfg.AlertWindow = defaultAlertWindow
	}
	if cfg.Depth <= 0 {
		cfg.Depth = defaultDepth
	}
	return &Monitor{
		cfg:         cfg,
		lastAlertAt: make(map[string]time.Time),
	}
}

// Status reports whether the tick loop is currently running.
func (m *Monitor) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == stateRunning {
		return "running"
	}
	return "stopped"
}

// Start runs the monitor's self-test, notifies on success, and begins
// the tick loop in a background goroutine. Starting an already
// running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.st == stateRunning {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if ok := m.selfTest(); !ok {
		return fmt.Errorf("monitor: startup self-test failed, refusing to start")
	}

	loopCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.st == stateRunning {
		// A concurrent Start won the race while the self-test ran.
		m.mu.Unlock()
		cancel()
		return nil
	}
	m.cancel = cancel
	m.st = stateRunning
	m.mu.Unlock()

	m.cfg.Notifier.Send("🟢 arbitrage monitor started")
	logger.Log.Info("monitor: started")

	go m.run(loopCtx)
	return nil
}

// Stop cancels the tick loop and sends a shutdown notification.
// Stopping an already stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.st != stateRunning {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.st = stateStopped
	m.mu.Unlock()

	cancel()
	m.cfg.Notifier.Send("🔴 arbitrage monitor stopped")
	logger.Log.Info("monitor: stopped")
}

// selfTest mirrors price_monitor.py's test_telegram() gate: the
// monitor refuses to transition to running if its notifier can't
// reach its channel. A disabled notifier (no credentials) reports
// true here since price_monitor.py's production path always had
// credentials configured; this adapter-level stand-in treats
// "disabled" as "not gating start".
func (m *Monitor) selfTest() bool {
	if n, ok := m.cfg.Notifier.(interface{ Enabled() bool }); ok && !n.Enabled() {
		return true
	}
	return m.cfg.Notifier.Send("monitor self-test")
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	for _, symbol := range m.cfg.Symbols {
		for _, pair := range m.cfg.Pairs {
			m.processPair(ctx, symbol, pair)
		}
	}
}

func (m *Monitor) processPair(ctx context.Context, symbol venue.Symbol, pair Pair) {
	quoteA, err := m.cfg.Router.FetchQuote(ctx, pair.A, symbol, m.cfg.Depth)
	if err != nil || !quoteA.Ticker.Usable() {
		return
	}
	quoteB, err := m.cfg.Router.FetchQuote(ctx, pair.B, symbol, m.cfg.Depth)
	if err != nil || !quoteB.Ticker.Usable() {
		return
	}

	gapPct := GapPercent(quoteA.Ticker.Last, quoteB.Ticker.Last)

	reading := GapReading{
		Symbol: symbol,
		Pair:   pair,
		QuoteA: quoteA,
		QuoteB: quoteB,
		GapPct: gapPct,
		At:     time.Now(),
	}

	if m.cfg.Audit != nil {
		m.cfg.Audit.Record(reading)
	}

	crosses := gapPct.GreaterThanOrEqual(m.cfg.Thresholds.EntryLong) ||
		gapPct.LessThanOrEqual(m.cfg.Thresholds.EntryShort)
	if !crosses {
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"symbol": symbol,
		"pair":   pair.String(),
		"gapPct": gapPct.String(),
	}).Info("monitor: gap threshold crossed")

	// Trade and notify are disjoint signal classes: the trade signal
	// fires on every crossing tick, while the notify signal is the
	// only one gated by the dedup window. A gap that sits across the
	// threshold for multiple ticks must keep triggering execution even
	// once its alert has gone quiet, matching
	// price_monitor.py::process_exchange_data, which calls
	// execute_arbitrage_trades unconditionally before the 300s alert
	// check.
	if m.cfg.Executor != nil {
		if err := m.cfg.Executor.ExecuteArbitrage(ctx, reading, m.cfg.Thresholds); err != nil {
			logger.Log.Errorf("monitor: execute arbitrage %s %s: %v", symbol, pair.String(), err)
		}
	}

	if m.shouldAlert(symbol, gapPct) {
		m.cfg.Notifier.SendGapAlert(reading)
	}
}

// GapPercent computes ((a-b)/b)*100, matching price_monitor.py's
// check_price_gap. Exported so the HTTP control surface can compute
// the same display-layer gap inline without duplicating the formula.
func GapPercent(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Sub(b).Div(b).Mul(decimal.NewFromInt(100))
}

// shouldAlert implements the dedup window: an alert fires for a given
// (symbol, gap rounded to 2dp) key at most once per AlertWindow,
// matching price_monitor.py's alert_key = f"{symbol}-{gap:.2f}".
func (m *Monitor) shouldAlert(symbol venue.Symbol, gapPct decimal.Decimal) bool {
	key := fmt.Sprintf("%s-%s", symbol, gapPct.Round(2).String())

	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.lastAlertAt[key]
	now := time.Now()
	if ok && now.Sub(last) < m.cfg.AlertWindow {
		return false
	}
	m.lastAlertAt[key] = now
	return true
}

