package strategy

// Params tune one strategy variant. Zero values are not meaningful;
// start from DefaultParams and override.
type Params struct {
	// MinStrength is the composite score a signal must reach before it
	// is emitted.
	MinStrength float64 `yaml:"min_strength"`

	// VolumeThreshold gates the volume confirmation. With
	// VolumeContraction false the ratio must exceed it (expansion
	// breakout); with true the ratio must fall below it, the
	// quiet-capitulation heuristic used by the orange short variant.
	VolumeThreshold   float64 `yaml:"volume_threshold"`
	VolumeContraction bool    `yaml:"volume_contraction"`

	// BreakoutLookback is the prior-high/low window the close must
	// break.
	BreakoutLookback int `yaml:"breakout_lookback"`

	// MaxDeviation bounds |close−tier|/tier at entry to avoid chasing
	// an extended move.
	MaxDeviation float64 `yaml:"max_deviation"`

	// Exit tuning. StopLossBars is the consecutive-close count failing
	// the tier line. For the blue tier TakeProfitDeviation and
	// TrailingStopRatio apply; the slower tiers substitute explicit
	// ProfitTarget / StopLossPct percentages on the entry price.
	StopLossBars        int     `yaml:"stop_loss_bars"`
	TakeProfitDeviation float64 `yaml:"take_profit_deviation"`
	TrailingStopRatio   float64 `yaml:"trailing_stop_ratio"`
	ProfitTarget        float64 `yaml:"profit_target"`
	StopLossPct         float64 `yaml:"stop_loss_pct"`

	// SlopeNorm is the per-bar relative slope (|slope|/ma) that earns a
	// full alignment score.
	SlopeNorm float64 `yaml:"slope_norm"`

	// Quantity is the base order size in shares (Taiwan lots of 1000).
	Quantity int64 `yaml:"quantity"`
}

// DefaultParams returns the tuned defaults for a variant. Unknown ids
// fall back to the blue long profile.
func DefaultParams(id string) Params {
	p := Params{
		MinStrength:         0.7,
		VolumeThreshold:     1.5,
		BreakoutLookback:    20,
		MaxDeviation:        0.05,
		StopLossBars:        3,
		TakeProfitDeviation: 0.08,
		TrailingStopRatio:   0.05,
		SlopeNorm:           0.001,
		Quantity:            1000,
	}
	switch id {
	case GreenLong, GreenShort:
		p.BreakoutLookback = 40
		p.StopLossBars = 5
		p.ProfitTarget = 0.15
		p.StopLossPct = 0.08
	case OrangeLong:
		p.VolumeThreshold = 1.2
		p.BreakoutLookback = 60
		p.StopLossBars = 10
		p.ProfitTarget = 0.20
		p.StopLossPct = 0.10
	case OrangeShort:
		p.VolumeThreshold = 0.8
		p.VolumeContraction = true
		p.BreakoutLookback = 60
		p.StopLossBars = 10
		p.ProfitTarget = 0.20
		p.StopLossPct = 0.10
	}
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
