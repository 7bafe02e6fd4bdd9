// Package audit records every observed gap and executed trade to a
// durable sink for later review.
//
// Grounded on original_source/sheets_logger.py: the original wrote
// rows to a Google Sheet via OAuth, one sheet per venue pair, with
// columns [gap%, price-diff-USDT, price1, price2, volume1, volume2,
// min-volume]. The OAuth flow is out of scope here; CSVSink keeps the
// same column layout against a local file per pair so the audit trail
// stays inspectable and testable without external credentials.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbigate/executor"
	"arbigate/monitor"
	"arbigate/venue"
)

var csvHeader = []string{
	"timestamp", "gap_pct", "price_diff_usdt", "price_a", "price_b",
	"volume_a", "volume_b", "min_volume",
}

// Sink is implemented by anything the monitor and executor can record
// observations and trade outcomes to.
type Sink interface {
	monitor.AuditSink
	executor.AuditSink
}

// NoopSink discards everything; used when no audit directory is
// configured.
type NoopSink struct{}

func (NoopSink) Record(monitor.GapReading)        {}
func (NoopSink) RecordTrade(executor.TradeResult) {}

// CSVSink writes one row per gap reading to dir/<pair>.csv and one
// row per trade outcome to dir/trades.csv, matching sheets_logger.py's
// per-pair sheet layout.
type CSVSink struct {
	dir string

	mu      sync.Mutex
	writers map[string]*csv.Writer
	files   map[string]*os.File
}

func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	return &CSVSink{
		dir:     dir,
		writers: make(map[string]*csv.Writer),
		files:   make(map[string]*os.File),
	}, nil
}

func (s *CSVSink) writerFor(name string) (*csv.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.writers[name]; ok {
		return w, nil
	}

	path := filepath.Join(s.dir, name+".csv")
	needsHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		needsHeader = false
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if needsHeader {
		_ = w.Write(csvHeader)
		w.Flush()
	}

	s.files[name] = f
	s.writers[name] = w
	return w, nil
}

// Record writes one row for a gap reading to the pair's CSV file.
func (s *CSVSink) Record(reading monitor.GapReading) {
	w, err := s.writerFor(reading.Pair.String())
	if err != nil {
		return
	}

	priceA := reading.QuoteA.Ticker.Last
	priceB := reading.QuoteB.Ticker.Last
	diff := priceA.Sub(priceB).Abs()

	volA, volB := "", ""
	if len(reading.QuoteA.OrderBook.Asks) > 0 {
		volA = reading.QuoteA.OrderBook.Asks[0].Qty.String()
	}
	if len(reading.QuoteB.OrderBook.Asks) > 0 {
		volB = reading.QuoteB.OrderBook.Asks[0].Qty.String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = w.Write([]string{
		reading.At.Format(time.RFC3339),
		reading.GapPct.StringFixed(2),
		diff.StringFixed(4),
		priceA.String(),
		priceB.String(),
		volA,
		volB,
		minVolume(reading.QuoteA.OrderBook, reading.QuoteB.OrderBook),
	})
	w.Flush()
}

// RecordTrade writes one row per executed trade to trades.csv.
func (s *CSVSink) RecordTrade(t executor.TradeResult) {
	w, err := s.writerFor("trades")
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = w.Write([]string{
		t.At.Format(time.RFC3339),
		t.GapPct.StringFixed(2),
		"",
		"", "",
		fmt.Sprintf("%t", t.LegA.OK),
		fmt.Sprintf("%t", t.LegB.OK),
		t.Notional.String(),
	})
	w.Flush()
}

// Close flushes and closes every open file handle.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, w := range s.writers {
		w.Flush()
		if err := s.files[name].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// minVolume returns the smaller of the two venues' best-ask
// quantities, matching sheets_logger.py's "최소 호가량" column.
func minVolume(a, b venue.OrderBook) string {
	qa, okA := bestAskQty(a)
	qb, okB := bestAskQty(b)
	switch {
	case !okA && !okB:
		return ""
	case !okA:
		return qb.String()
	case !okB:
		return qa.String()
	case qa.LessThan(qb):
		return qa.String()
	default:
		return qb.String()
	}
}

func bestAskQty(ob venue.OrderBook) (decimal.Decimal, bool) {
	if len(ob.Asks) == 0 {
		return decimal.Zero, false
	}
	return ob.Asks[0].Qty, true
}
