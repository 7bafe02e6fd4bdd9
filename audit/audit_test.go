package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbigate/monitor"
	"arbigate/venue"
)

func TestCSVSink_RecordWritesHeaderAndRow(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	lvl := venue.Level{Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(5)}
	reading := monitor.GapReading{
		Symbol: venue.XRPUSDT,
		Pair:   monitor.Pair{A: venue.M, B: venue.B},
		QuoteA: venue.Quote{Ticker: venue.Ticker{Last: decimal.NewFromInt(105)}, OrderBook: venue.OrderBook{Asks: []venue.Level{lvl}}},
		QuoteB: venue.Quote{Ticker: venue.Ticker{Last: decimal.NewFromInt(100)}, OrderBook: venue.OrderBook{Asks: []venue.Level{lvl}}},
		GapPct: decimal.NewFromFloat(5.0),
		At:     time.Now(),
	}
	sink.Record(reading)

	data, err := os.ReadFile(filepath.Join(dir, "M-B.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "timestamp,gap_pct")
	assert.Contains(t, string(data), "5.00")
}

func TestNoopSink(t *testing.T) {
	var s Sink = NoopSink{}
	s.Record(monitor.GapReading{})
}
