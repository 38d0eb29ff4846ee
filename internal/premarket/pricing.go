package premarket

import (
	"github.com/shopspring/decimal"

	"tritrend/internal/model"
)

// Taiwan equity tick sizes by price band.
var tickBands = []struct {
	upto float64
	tick decimal.Decimal
}{
	{10, decimal.NewFromFloat(0.01)},
	{50, decimal.NewFromFloat(0.05)},
	{100, decimal.NewFromFloat(0.1)},
	{500, decimal.NewFromFloat(0.5)},
	{1000, decimal.NewFromInt(1)},
}

var topTick = decimal.NewFromInt(5)

func tickFor(price float64) decimal.Decimal {
	for _, b := range tickBands {
		if price < b.upto {
			return b.tick
		}
	}
	return topTick
}

// OrderPrice applies the fill bias (up for buys, down for sells) and
// rounds to the market tick, in the biased direction so the adjustment
// is never cancelled by rounding.
func OrderPrice(action model.Action, price, bias float64) float64 {
	d := decimal.NewFromFloat(price)
	tick := tickFor(price)
	if action == model.ActionBuy {
		d = d.Mul(decimal.NewFromFloat(1 + bias))
		d = d.Div(tick).Ceil().Mul(tick)
	} else {
		d = d.Mul(decimal.NewFromFloat(1 - bias))
		d = d.Div(tick).Floor().Mul(tick)
	}
	f, _ := d.Float64()
	return f
}

// PositionSize scales the base lot count by signal strength (capped at
// 2x), clamps the notional to maxNotional, and floors to the exchange
// board lot. Returns at least one lot; the risk gate rejects what the
// account cannot carry.
func PositionSize(strength, price, baseQuantity, maxNotional float64) int64 {
	const lot = 1000

	scale := strength * 2
	if scale > 2 {
		scale = 2
	}
	qty := baseQuantity * scale
	if price > 0 && qty*price > maxNotional {
		qty = maxNotional / price
	}
	lots := int64(qty) / lot
	if lots < 1 {
		lots = 1
	}
	return lots * lot
}
