package premarket

import (
	"testing"

	"tritrend/internal/model"
)

func TestOrderPrice(t *testing.T) {
	cases := []struct {
		name   string
		action model.Action
		price  float64
		bias   float64
		want   float64
	}{
		{"buy bias rounds up to half-dollar tick", model.ActionBuy, 100, 0.005, 100.5},
		{"buy bias in dime band", model.ActionBuy, 99, 0.005, 99.5},
		{"sell bias rounds down", model.ActionSell, 100, 0.005, 99.5},
		{"sell bias in nickel band", model.ActionSell, 33.33, 0.005, 33.15},
		{"buy zero bias keeps tick-aligned price", model.ActionBuy, 99.5, 0, 99.5},
		{"sell zero bias keeps tick-aligned price", model.ActionSell, 100, 0, 100},
		{"penny band", model.ActionBuy, 9.99, 0.005, 10.04},
		{"top band", model.ActionSell, 1200, 0.005, 1190},
	}
	for _, tc := range cases {
		if got := OrderPrice(tc.action, tc.price, tc.bias); got != tc.want {
			t.Errorf("%s: OrderPrice(%v, %v, %v) = %v, want %v",
				tc.name, tc.action, tc.price, tc.bias, got, tc.want)
		}
	}
}

func TestPositionSize(t *testing.T) {
	cases := []struct {
		name        string
		strength    float64
		price       float64
		base        float64
		maxNotional float64
		want        int64
	}{
		{"strength scales up to full lots", 1.0, 100, 1000, 1e6, 2000},
		{"partial scale floors to lot", 0.8, 100, 1000, 1e6, 1000},
		{"notional clamp", 1.0, 100, 1000, 150000, 1000},
		{"never below one lot", 0.5, 100, 1000, 1e6, 1000},
		{"expensive stock clamps hard", 1.0, 600, 1000, 500000, 1000}, // 2000*600 > 500k
		{"fractional scale floors to whole lots", 0.9, 100, 1500, 1e6, 2000},
	}
	for _, tc := range cases {
		got := PositionSize(tc.strength, tc.price, tc.base, tc.maxNotional)
		if got != tc.want {
			t.Errorf("%s: PositionSize = %v, want %v", tc.name, got, tc.want)
		}
	}
}
