package model

import "math"

// Cross flag values for crossover columns.
const (
	CrossNone   = 0
	CrossGolden = 1
	CrossDeath  = -1
)

// IndicatorSet holds the per-bar indicator columns computed by the
// indicator engine. A field is undefined (NaN, never zero) while its
// window has fewer bars than its lookback. Consumers must treat
// undefined values as "insufficient data, no decision".
type IndicatorSet struct {
	Blue   float64 `json:"ma_blue"`   // fast tier trailing mean (monthly line)
	Green  float64 `json:"ma_green"`  // mid tier trailing mean (quarterly line)
	Orange float64 `json:"ma_orange"` // slow tier trailing mean (half-year line)

	BlueSlope   float64 `json:"blue_slope"`
	GreenSlope  float64 `json:"green_slope"`
	OrangeSlope float64 `json:"orange_slope"`

	BlueDev   float64 `json:"blue_deviation"`
	GreenDev  float64 `json:"green_deviation"`
	OrangeDev float64 `json:"orange_deviation"`

	VolumeMA    float64 `json:"volume_ma"`
	VolumeRatio float64 `json:"volume_ratio"`

	// Crossover flags: CrossGolden, CrossDeath or CrossNone.
	PriceBlueCross   int `json:"price_blue_cross"`
	BlueGreenCross   int `json:"blue_green_cross"`
	BlueOrangeCross  int `json:"blue_orange_cross"`
	GreenOrangeCross int `json:"green_orange_cross"`

	// TrendStrength is +1 when all three slopes are positive, -1 when all
	// are negative, 0 otherwise (or NaN while undefined).
	TrendStrength float64 `json:"trend_strength"`

	// TrendConsistency counts consecutive bars with the same nonzero
	// trend strength.
	TrendConsistency int `json:"trend_consistency"`
}

// Undefined is the canonical undefined indicator value.
func Undefined() float64 { return math.NaN() }

// Defined reports whether an indicator value is defined.
func Defined(v float64) bool { return !math.IsNaN(v) }

// Complete reports whether every column a strategy requires is defined.
// True only once the slowest window (orange) has enough history.
func (s *IndicatorSet) Complete() bool {
	for _, v := range []float64{
		s.Blue, s.Green, s.Orange,
		s.BlueSlope, s.GreenSlope, s.OrangeSlope,
		s.BlueDev, s.GreenDev, s.OrangeDev,
		s.VolumeRatio, s.TrendStrength,
	} {
		if !Defined(v) {
			return false
		}
	}
	return true
}

// Tier returns the moving-average value for the given tier name
// ("blue", "green", "orange"). Unknown tiers return NaN.
func (s *IndicatorSet) Tier(name string) float64 {
	switch name {
	case "blue":
		return s.Blue
	case "green":
		return s.Green
	case "orange":
		return s.Orange
	}
	return Undefined()
}

// TierSlope returns the slope for the given tier name.
func (s *IndicatorSet) TierSlope(name string) float64 {
	switch name {
	case "blue":
		return s.BlueSlope
	case "green":
		return s.GreenSlope
	case "orange":
		return s.OrangeSlope
	}
	return Undefined()
}

// TierDev returns the deviation for the given tier name.
func (s *IndicatorSet) TierDev(name string) float64 {
	switch name {
	case "blue":
		return s.BlueDev
	case "green":
		return s.GreenDev
	case "orange":
		return s.OrangeDev
	}
	return Undefined()
}
