package notifier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"arbigate/monitor"
	"arbigate/venue"
)

func TestNotifier_DisabledWithoutCredentials(t *testing.T) {
	n := New("", 0)
	assert.False(t, n.Enabled())
	assert.False(t, n.Send("hello"))

	reading := monitor.GapReading{
		Symbol: venue.XRPUSDT,
		Pair:   monitor.Pair{A: venue.M, B: venue.B},
		QuoteA: venue.Quote{Ticker: venue.Ticker{Last: decimal.NewFromInt(100)}},
		QuoteB: venue.Quote{Ticker: venue.Ticker{Last: decimal.NewFromInt(95)}},
		GapPct: decimal.NewFromFloat(5.26),
	}
	assert.False(t, n.SendGapAlert(reading))
}

func TestCoinIcon(t *testing.T) {
	assert.Equal(t, "🟣", coinIcon("XRP/USDT"))
	assert.Equal(t, "🟡", coinIcon("DOGE/USDT"))
	assert.Equal(t, "⚪", coinIcon("BTC/USDT"))
}

func TestGapIcon(t *testing.T) {
	assert.Equal(t, "🔵", gapIcon(0.1))
	assert.Equal(t, "🔴", gapIcon(-0.1))
}
