package strategy

import (
	"fmt"
	"math"
	"time"

	"tritrend/internal/model"
)

func init() {
	for _, v := range []struct {
		id   string
		tier Tier
		dir  Direction
	}{
		{BlueLong, TierBlue, Long},
		{BlueShort, TierBlue, Short},
		{GreenLong, TierGreen, Long},
		{GreenShort, TierGreen, Short},
		{OrangeLong, TierOrange, Long},
		{OrangeShort, TierOrange, Short},
	} {
		v := v
		register(v.id, func(p Params) Strategy {
			return &tierStrategy{id: v.id, tier: v.tier, dir: v.dir, p: p}
		})
	}
}

// tierStrategy is the shared implementation behind all six variants.
// Direction only mirrors thresholds; the condition shape is identical.
type tierStrategy struct {
	id   string
	tier Tier
	dir  Direction
	p    Params
}

func (s *tierStrategy) Name() string         { return s.id }
func (s *tierStrategy) Tier() Tier           { return s.tier }
func (s *tierStrategy) Direction() Direction { return s.dir }

// action maps the direction to the emitted order side.
func (s *tierStrategy) action() model.Action {
	if s.dir == Short {
		return model.ActionSell
	}
	return model.ActionBuy
}

// aligned checks the strict tier ordering and slope agreement for the
// strategy's direction. Long wants blue>green>orange with all slopes
// positive; short mirrors both. The orderings are mutually exclusive,
// so a long variant and its mirror can never both enter on one bar.
func (s *tierStrategy) aligned(ind *model.IndicatorSet) bool {
	if s.dir == Long {
		return ind.Blue > ind.Green && ind.Green > ind.Orange &&
			ind.BlueSlope > 0 && ind.GreenSlope > 0 && ind.OrangeSlope > 0
	}
	return ind.Blue < ind.Green && ind.Green < ind.Orange &&
		ind.BlueSlope < 0 && ind.GreenSlope < 0 && ind.OrangeSlope < 0
}

// volumeConfirmed applies the expansion (or, for the orange short
// variant, contraction) test to the volume ratio.
func (s *tierStrategy) volumeConfirmed(ind *model.IndicatorSet) bool {
	if s.p.VolumeContraction {
		return ind.VolumeRatio < s.p.VolumeThreshold
	}
	return ind.VolumeRatio > s.p.VolumeThreshold
}

// breakout checks that the close breaks the prior N-bar extreme: the
// high for longs, the low for shorts.
func (s *tierStrategy) breakout(series []model.IndicatorBar, i int) bool {
	if i < s.p.BreakoutLookback {
		return false
	}
	cur := series[i].Close
	if s.dir == Long {
		high := math.Inf(-1)
		for j := i - s.p.BreakoutLookback; j < i; j++ {
			if series[j].High > high {
				high = series[j].High
			}
		}
		return cur > high
	}
	low := math.Inf(1)
	for j := i - s.p.BreakoutLookback; j < i; j++ {
		if series[j].Low < low {
			low = series[j].Low
		}
	}
	return cur < low
}

// CheckEntry evaluates tier alignment, volume confirmation and price
// position at index i. The strength gate is applied separately by
// GenerateSignals.
func (s *tierStrategy) CheckEntry(series []model.IndicatorBar, i int) (bool, float64) {
	if i < s.p.BreakoutLookback || i >= len(series) {
		return false, 0
	}
	bar := &series[i]
	ind := &bar.Ind
	if !ind.Complete() {
		return false, 0
	}

	if !s.aligned(ind) {
		return false, 0
	}
	if !s.volumeConfirmed(ind) || !s.breakout(series, i) {
		return false, 0
	}

	tierMA := ind.Tier(string(s.tier))
	if s.dir == Long && bar.Close <= tierMA {
		return false, 0
	}
	if s.dir == Short && bar.Close >= tierMA {
		return false, 0
	}
	if math.Abs(ind.TierDev(string(s.tier))) >= s.p.MaxDeviation {
		return false, 0
	}
	return true, bar.Close
}

// Strength scores the bar: alignment 0.3 scaled by normalized slope,
// volume 0.25 by headroom over the threshold, price position 0.25 by
// deviation tightness, trend agreement 0.2. Always within [0,1]; 0
// before the lookback is available.
func (s *tierStrategy) Strength(series []model.IndicatorBar, i int) float64 {
	if i < s.p.BreakoutLookback || i >= len(series) {
		return 0
	}
	ind := &series[i].Ind
	if !ind.Complete() {
		return 0
	}

	tierMA := ind.Tier(string(s.tier))
	slope := ind.TierSlope(string(s.tier))
	var align float64
	if tierMA != 0 {
		align = clamp01(math.Abs(slope/tierMA) / s.p.SlopeNorm)
	}

	var vol float64
	if s.p.VolumeContraction {
		vol = clamp01((s.p.VolumeThreshold - ind.VolumeRatio) / s.p.VolumeThreshold)
	} else {
		vol = clamp01((ind.VolumeRatio - s.p.VolumeThreshold) / s.p.VolumeThreshold)
	}

	dev := clamp01(1 - math.Abs(ind.TierDev(string(s.tier)))/s.p.MaxDeviation)

	var trend float64
	if (s.dir == Long && ind.TrendStrength == 1) ||
		(s.dir == Short && ind.TrendStrength == -1) {
		trend = 1
	}

	return clamp01(0.3*align + 0.25*vol + 0.25*dev + 0.2*trend)
}

// holdsTierLine reports whether the close at index j keeps the tier
// line in the position's favor.
func (s *tierStrategy) holdsTierLine(series []model.IndicatorBar, j int) bool {
	tierMA := series[j].Ind.Tier(string(s.tier))
	if !model.Defined(tierMA) {
		return true // undefined line never counts against the position
	}
	if s.dir == Long {
		return series[j].Close >= tierMA
	}
	return series[j].Close <= tierMA
}

// profitRate is the signed return of the position at the given close.
func profitRate(pos *model.Position, close float64) float64 {
	if pos.AvgPrice == 0 {
		return 0
	}
	rate := (close - pos.AvgPrice) / pos.AvgPrice
	if pos.Side == model.SideShort {
		rate = -rate
	}
	return rate
}

// CheckExit evaluates the exit ladder for an open position: the
// consecutive-bar stop loss first, then either the deviation
// take-profit and trailing stop (blue tier) or the explicit
// profit-target/stop-loss percentages (green and orange tiers). The
// first matching condition wins; conditions are never combined.
func (s *tierStrategy) CheckExit(series []model.IndicatorBar, i int, pos *model.Position) (bool, string) {
	if pos == nil || i >= len(series) || i < 0 {
		return false, ""
	}
	bar := &series[i]
	ind := &bar.Ind

	// The consecutive-bar window i-K+1..i needs K bars of history; the
	// percent and deviation conditions below need only the current bar.
	if i >= s.p.StopLossBars-1 {
		failed := 0
		for j := i - s.p.StopLossBars + 1; j <= i; j++ {
			if s.holdsTierLine(series, j) {
				failed = 0
			} else {
				failed++
			}
		}
		if failed >= s.p.StopLossBars {
			return true, fmt.Sprintf("%d consecutive closes failed the %s line", s.p.StopLossBars, s.tier)
		}
	}

	if s.p.ProfitTarget > 0 {
		rate := profitRate(pos, bar.Close)
		if rate >= s.p.ProfitTarget {
			return true, fmt.Sprintf("profit target reached (%.1f%%)", rate*100)
		}
		if rate <= -s.p.StopLossPct {
			return true, fmt.Sprintf("stop loss hit (%.1f%%)", rate*100)
		}
		return false, ""
	}

	dev := ind.TierDev(string(s.tier))
	if model.Defined(dev) && math.Abs(dev) > s.p.TakeProfitDeviation && profitRate(pos, bar.Close) > 0 {
		return true, fmt.Sprintf("deviation from %s line exceeded %.0f%%", s.tier, s.p.TakeProfitDeviation*100)
	}

	if pos.ExtremePrice > 0 {
		if s.dir == Long && bar.Close < pos.ExtremePrice*(1-s.p.TrailingStopRatio) {
			return true, fmt.Sprintf("trailing stop: %.1f%% off the high", s.p.TrailingStopRatio*100)
		}
		if s.dir == Short && bar.Close > pos.ExtremePrice*(1+s.p.TrailingStopRatio) {
			return true, fmt.Sprintf("trailing stop: %.1f%% off the low", s.p.TrailingStopRatio*100)
		}
	}
	return false, ""
}

// GenerateSignals scans the series and emits a pending signal wherever
// the entry conditions and the strength gate both pass. Too little
// history is not an error: it simply produces no signals.
func (s *tierStrategy) GenerateSignals(series []model.IndicatorBar) ([]model.Signal, error) {
	if len(series) == 0 {
		return nil, nil
	}
	if err := validateSeries(series); err != nil {
		return nil, err
	}

	var signals []model.Signal
	for i := s.p.BreakoutLookback; i < len(series); i++ {
		ok, price := s.CheckEntry(series, i)
		if !ok {
			continue
		}
		strength := s.Strength(series, i)
		if strength < s.p.MinStrength {
			continue
		}
		signals = append(signals, model.Signal{
			Symbol:      series[i].Symbol,
			Strategy:    s.id,
			Action:      s.action(),
			Strength:    strength,
			TargetPrice: price,
			Quantity:    s.p.Quantity,
			Reason:      s.entryReason(&series[i]),
			BarTS:       series[i].TS,
			CreatedAt:   time.Now().UTC(),
			Status:      model.StatusPending,
		})
	}
	return signals, nil
}

// entryReason summarizes which conditions fired, for audit trails.
func (s *tierStrategy) entryReason(bar *model.IndicatorBar) string {
	side := "above"
	breakWord := "breakout over prior high"
	slopeWord := "positive"
	if s.dir == Short {
		side = "below"
		breakWord = "breakdown under prior low"
		slopeWord = "negative"
	}
	volWord := fmt.Sprintf("volume %.1fx average", bar.Ind.VolumeRatio)
	if s.p.VolumeContraction {
		volWord = fmt.Sprintf("volume contraction to %.1fx average", bar.Ind.VolumeRatio)
	}
	return fmt.Sprintf("%s slopes aligned %s + %s with %s + close %s %s line",
		s.tier, slopeWord, breakWord, volWord, side, s.tier)
}
