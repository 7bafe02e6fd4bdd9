package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"arbigate/venue"
)

func level(price, qty int64) venue.Level {
	return venue.Level{Price: decimal.NewFromInt(price), Qty: decimal.NewFromInt(qty)}
}

func TestCalculate_PicksSmallestNotional(t *testing.T) {
	a := venue.OrderBook{
		Asks: []venue.Level{level(100, 10)}, // 1000
		Bids: []venue.Level{level(99, 10)},  // 990
	}
	b := venue.OrderBook{
		Asks: []venue.Level{level(101, 5)}, // 505 <- smallest
		Bids: []venue.Level{level(98, 20)}, // 1960
	}

	res := Calculate(a, b)
	assert.True(t, res.Sized)
	assert.True(t, res.NotionalUSDT.Equal(decimal.NewFromInt(505)))
}

func TestCalculate_UnusableBookIsUnsized(t *testing.T) {
	a := venue.OrderBook{}
	b := venue.OrderBook{
		Asks: []venue.Level{level(101, 5)},
		Bids: []venue.Level{level(98, 20)},
	}

	res := Calculate(a, b)
	assert.False(t, res.Sized)
	assert.True(t, res.NotionalUSDT.IsZero())
}

func TestWithSafetyFactor(t *testing.T) {
	out := WithSafetyFactor(decimal.NewFromInt(1000))
	assert.True(t, out.Equal(decimal.NewFromInt(950)))
}
