// Package indicator computes the blue/green/orange trend columns over a
// bar series: three trailing moving averages, per-tier least-squares
// slopes, price deviations, volume ratios, crossover flags, and a
// composite trend strength.
//
// Compute is a pure function of its input: no I/O, deterministic, and
// the output has the same length as the input. Values whose lookback
// window is not yet full are NaN, never zero.
package indicator

import (
	"sort"

	"tritrend/internal/model"
)

// Config holds the window lengths for one computation pass.
type Config struct {
	BlueWindow   int `yaml:"blue_window"`   // fast tier, monthly line
	GreenWindow  int `yaml:"green_window"`  // mid tier, quarterly line
	OrangeWindow int `yaml:"orange_window"` // slow tier, half-year line

	SlopeWindow       int `yaml:"slope_window"`        // blue/green slope lookback
	OrangeSlopeWindow int `yaml:"orange_slope_window"` // orange slope lookback
	VolumeWindow      int `yaml:"volume_window"`       // volume mean lookback
}

// DefaultConfig returns the standard windows for four-hour bars:
// 120 (≈1 month), 360 (≈3 months), 1440 (≈6 months).
func DefaultConfig() Config {
	return Config{
		BlueWindow:        120,
		GreenWindow:       360,
		OrangeWindow:      1440,
		SlopeWindow:       5,
		OrangeSlopeWindow: 10,
		VolumeWindow:      20,
	}
}

// MinBars returns the number of bars needed before every indicator
// column is defined.
func (c Config) MinBars() int {
	n := c.OrangeWindow + c.OrangeSlopeWindow
	if m := c.GreenWindow + c.SlopeWindow; m > n {
		n = m
	}
	return n
}

// Engine computes indicator columns for bar sequences.
type Engine struct {
	cfg Config
}

// NewEngine creates an indicator engine with the given windows.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Compute augments every bar with its indicator set. The input slice is
// not mutated; bars are processed in timestamp order regardless of the
// order they arrive in.
func (e *Engine) Compute(bars []model.Bar) []model.IndicatorBar {
	ordered := make([]model.Bar, len(bars))
	copy(ordered, bars)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TS.Before(ordered[j].TS)
	})

	n := len(ordered)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range ordered {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	blue := rollingMean(closes, e.cfg.BlueWindow)
	green := rollingMean(closes, e.cfg.GreenWindow)
	orange := rollingMean(closes, e.cfg.OrangeWindow)

	blueSlope := olsSlopes(blue, e.cfg.SlopeWindow)
	greenSlope := olsSlopes(green, e.cfg.SlopeWindow)
	orangeSlope := olsSlopes(orange, e.cfg.OrangeSlopeWindow)

	volumeMA := rollingMean(volumes, e.cfg.VolumeWindow)

	out := make([]model.IndicatorBar, n)
	for i := range ordered {
		ind := model.IndicatorSet{
			Blue:        blue[i],
			Green:       green[i],
			Orange:      orange[i],
			BlueSlope:   blueSlope[i],
			GreenSlope:  greenSlope[i],
			OrangeSlope: orangeSlope[i],
			BlueDev:     deviation(closes[i], blue[i]),
			GreenDev:    deviation(closes[i], green[i]),
			OrangeDev:   deviation(closes[i], orange[i]),
			VolumeMA:    volumeMA[i],
			VolumeRatio: ratio(volumes[i], volumeMA[i]),
		}
		ind.TrendStrength = trendStrength(blueSlope[i], greenSlope[i], orangeSlope[i])
		if i > 0 {
			prev := &out[i-1].Ind
			ind.PriceBlueCross = crossSign(closes[i-1], blue[i-1], closes[i], blue[i])
			ind.BlueGreenCross = crossSign(blue[i-1], green[i-1], blue[i], green[i])
			ind.BlueOrangeCross = crossSign(blue[i-1], orange[i-1], blue[i], orange[i])
			ind.GreenOrangeCross = crossSign(green[i-1], orange[i-1], green[i], orange[i])
			ind.TrendConsistency = consistency(prev, ind.TrendStrength)
		}
		out[i] = model.IndicatorBar{Bar: ordered[i], Ind: ind}
	}
	return out
}

// consistency extends the previous run length when the trend strength
// repeats and is nonzero.
func consistency(prev *model.IndicatorSet, strength float64) int {
	if !model.Defined(strength) || !model.Defined(prev.TrendStrength) {
		return 0
	}
	if strength != 0 && strength == prev.TrendStrength {
		return prev.TrendConsistency + 1
	}
	return 0
}

// trendStrength is +1 when all three slopes are positive, -1 when all
// negative, 0 on disagreement, NaN while any slope is undefined.
func trendStrength(blue, green, orange float64) float64 {
	if !model.Defined(blue) || !model.Defined(green) || !model.Defined(orange) {
		return model.Undefined()
	}
	switch {
	case blue > 0 && green > 0 && orange > 0:
		return 1
	case blue < 0 && green < 0 && orange < 0:
		return -1
	}
	return 0
}

// crossSign detects a sign change of (a-b) between consecutive bars:
// golden cross when a breaks above b, death cross when it breaks below.
// Any undefined operand means no cross.
func crossSign(prevA, prevB, curA, curB float64) int {
	if !model.Defined(prevA) || !model.Defined(prevB) ||
		!model.Defined(curA) || !model.Defined(curB) {
		return model.CrossNone
	}
	if prevA <= prevB && curA > curB {
		return model.CrossGolden
	}
	if prevA >= prevB && curA < curB {
		return model.CrossDeath
	}
	return model.CrossNone
}

// deviation is (close - ma) / ma. A zero or undefined mean yields NaN
// rather than a division blow-up.
func deviation(close, ma float64) float64 {
	return ratio(close-ma, ma)
}

func ratio(num, den float64) float64 {
	if !model.Defined(den) || den == 0 {
		return model.Undefined()
	}
	return num / den
}
