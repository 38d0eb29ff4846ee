package strategy

import (
	"errors"
	"testing"
	"time"

	"tritrend/internal/indicator"
	"tritrend/internal/model"
)

// Small windows keep the fixtures readable; the strategies only see
// the computed columns, never the window lengths.
func indicatorConfig() indicator.Config {
	return indicator.Config{
		BlueWindow:        5,
		GreenWindow:       10,
		OrangeWindow:      20,
		SlopeWindow:       3,
		OrangeSlopeWindow: 4,
		VolumeWindow:      20,
	}
}

func buildSeries(t *testing.T, closes, volumes []float64) []model.IndicatorBar {
	t.Helper()
	base := time.Date(2025, 3, 3, 1, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i := range closes {
		bars[i] = model.Bar{
			Symbol: "2330",
			TS:     base.Add(time.Duration(i) * 4 * time.Hour),
			Open:   closes[i],
			High:   closes[i] + 0.5,
			Low:    closes[i] - 0.5,
			Close:  closes[i],
			Volume: volumes[i],
			Period: model.PeriodFourHour,
		}
	}
	return indicator.NewEngine(indicatorConfig()).Compute(bars)
}

// spikeVolume returns the volume making the trailing-20 ratio (which
// includes the spike bar itself) come out to the given ratio.
func spikeVolume(base float64, ratio float64) float64 {
	// ratio = 20v / (19*base + v)
	return ratio * 19 * base / (20 - ratio)
}

// risingScenario builds the reference breakout fixture: a steadily
// rising series with one volume spike breaking the prior 20-bar high
// at signalBar.
func risingScenario(n, signalBar int) ([]float64, []float64) {
	closes := make([]float64, n)
	volumes := make([]float64, n)
	jump := 0.0
	for i := range closes {
		if i == signalBar {
			jump = 3.0
		}
		closes[i] = 100 + 0.2*float64(i) + jump
		volumes[i] = 1000
	}
	volumes[signalBar] = spikeVolume(1000, 2.0)
	return closes, volumes
}

func fallingScenario(n, signalBar int) ([]float64, []float64) {
	closes, volumes := risingScenario(n, signalBar)
	for i := range closes {
		closes[i] = 260 - closes[i] // mirror around a constant
	}
	return closes, volumes
}

func mustStrategy(t *testing.T, id string) Strategy {
	t.Helper()
	s, err := New(id, DefaultParams(id))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBlueLong_BreakoutEmitsExactlyOneBuy(t *testing.T) {
	closes, volumes := risingScenario(150, 130)
	series := buildSeries(t, closes, volumes)

	signals, err := mustStrategy(t, BlueLong).GenerateSignals(series)
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected exactly 1 signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Action != model.ActionBuy {
		t.Errorf("action = %s, want buy", sig.Action)
	}
	if !sig.BarTS.Equal(series[130].TS) {
		t.Errorf("signal at %s, want bar 130 (%s)", sig.BarTS, series[130].TS)
	}
	if sig.Strength < 0.7 {
		t.Errorf("strength = %.3f, want >= 0.7", sig.Strength)
	}
	if sig.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", sig.Status)
	}
	if sig.TargetPrice != series[130].Close {
		t.Errorf("target price = %v, want close %v", sig.TargetPrice, series[130].Close)
	}
}

func TestBlueShort_BreakdownEmitsSell(t *testing.T) {
	closes, volumes := fallingScenario(150, 130)
	series := buildSeries(t, closes, volumes)

	signals, err := mustStrategy(t, BlueShort).GenerateSignals(series)
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected exactly 1 signal, got %d", len(signals))
	}
	if signals[0].Action != model.ActionSell {
		t.Errorf("action = %s, want sell", signals[0].Action)
	}
	if !signals[0].BarTS.Equal(series[130].TS) {
		t.Errorf("signal not at the breakdown bar")
	}
	if signals[0].Strength < 0.7 {
		t.Errorf("strength = %.3f, want >= 0.7", signals[0].Strength)
	}
}

func TestMirroredVariants_NeverBothEnter(t *testing.T) {
	closesUp, volsUp := risingScenario(150, 130)
	closesDown, volsDown := fallingScenario(150, 130)

	pairs := [][2]string{
		{BlueLong, BlueShort},
		{GreenLong, GreenShort},
		{OrangeLong, OrangeShort},
	}
	for _, fix := range []struct {
		name    string
		closes  []float64
		volumes []float64
	}{
		{"rising", closesUp, volsUp},
		{"falling", closesDown, volsDown},
	} {
		series := buildSeries(t, fix.closes, fix.volumes)
		for _, pair := range pairs {
			long := mustStrategy(t, pair[0])
			short := mustStrategy(t, pair[1])
			for i := range series {
				lOK, _ := long.CheckEntry(series, i)
				sOK, _ := short.CheckEntry(series, i)
				if lOK && sOK {
					t.Fatalf("%s: %s and %s both valid at bar %d", fix.name, pair[0], pair[1], i)
				}
			}
		}
	}
}

func TestStrength_BoundsAndLookback(t *testing.T) {
	closes, volumes := risingScenario(150, 130)
	series := buildSeries(t, closes, volumes)

	for _, id := range IDs {
		s := mustStrategy(t, id)
		lookback := DefaultParams(id).BreakoutLookback
		for i := range series {
			got := s.Strength(series, i)
			if got < 0 || got > 1 {
				t.Fatalf("%s: strength out of bounds at %d: %v", id, i, got)
			}
			if i < lookback && got != 0 {
				t.Fatalf("%s: strength %v before lookback at %d", id, got, i)
			}
		}
	}
}

func TestGenerateSignals_InsufficientDataIsNotAnError(t *testing.T) {
	closes, volumes := risingScenario(10, 5)
	series := buildSeries(t, closes, volumes)

	signals, err := mustStrategy(t, OrangeLong).GenerateSignals(series)
	if err != nil {
		t.Fatalf("insufficient data must not error, got %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signals, got %d", len(signals))
	}
}

func TestGenerateSignals_MissingIndicatorsIsValidationFailure(t *testing.T) {
	// Bars never run through the indicator engine: zero-valued sets.
	raw := make([]model.IndicatorBar, 60)
	for i := range raw {
		raw[i].Bar = model.Bar{Symbol: "2330", Close: 100, TS: time.Now().Add(time.Duration(i) * time.Hour)}
	}
	_, err := mustStrategy(t, BlueLong).GenerateSignals(raw)
	if !errors.Is(err, ErrMissingIndicators) {
		t.Fatalf("err = %v, want ErrMissingIndicators", err)
	}
}

func TestEngine_IsolatesStrategyFailures(t *testing.T) {
	closes, volumes := risingScenario(150, 130)
	series := buildSeries(t, closes, volumes)

	eng := NewDefaultEngine(nil, nil)
	signals, errs := eng.Evaluate(series)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(signals) == 0 {
		t.Fatal("expected at least the blue long breakout signal")
	}
	for _, sig := range signals {
		if sig.Strategy == "" || sig.Status != model.StatusPending {
			t.Errorf("malformed signal: %+v", sig)
		}
	}
}

// completeSeries hand-builds bars with fully defined indicator sets so
// exit conditions can be pinned precisely.
func completeSeries(closes []float64, blue float64) []model.IndicatorBar {
	base := time.Date(2025, 3, 3, 1, 0, 0, 0, time.UTC)
	out := make([]model.IndicatorBar, len(closes))
	for i, c := range closes {
		out[i] = model.IndicatorBar{
			Bar: model.Bar{
				Symbol: "2330", Close: c, High: c + 0.5, Low: c - 0.5,
				TS: base.Add(time.Duration(i) * 4 * time.Hour), Period: model.PeriodFourHour,
			},
			Ind: model.IndicatorSet{
				Blue: blue, Green: blue - 5, Orange: blue - 10,
				BlueSlope: 0.1, GreenSlope: 0.1, OrangeSlope: 0.1,
				BlueDev: (c - blue) / blue, GreenDev: 0.01, OrangeDev: 0.01,
				VolumeMA: 1000, VolumeRatio: 1.0, TrendStrength: 1,
			},
		}
	}
	return out
}

func TestCheckExit_ConsecutiveStopLoss(t *testing.T) {
	s := mustStrategy(t, BlueLong)
	pos := &model.Position{Symbol: "2330", Quantity: 1000, AvgPrice: 100, Side: model.SideLong}

	// Three closes in a row below the blue line at 100.
	series := completeSeries([]float64{101, 102, 99, 98, 97}, 100)
	exit, reason := s.CheckExit(series, 4, pos)
	if !exit {
		t.Fatal("expected stop-loss exit after 3 closes under the blue line")
	}
	if reason == "" {
		t.Error("exit reason must be retained")
	}

	// A hold in the middle resets the run.
	series = completeSeries([]float64{99, 98, 101, 99, 98}, 100)
	if exit, _ := s.CheckExit(series, 4, pos); exit {
		t.Fatal("run of closes under the line was interrupted; no exit expected")
	}
}

func TestCheckExit_TakeProfitDeviationRequiresProfit(t *testing.T) {
	s := mustStrategy(t, BlueLong)
	series := completeSeries([]float64{101, 102, 110, 111, 112}, 100) // 12% above blue

	inProfit := &model.Position{Symbol: "2330", Quantity: 1000, AvgPrice: 100, Side: model.SideLong}
	exit, reason := s.CheckExit(series, 4, inProfit)
	if !exit {
		t.Fatal("expected take-profit exit at 12% deviation while in profit")
	}
	if reason == "" {
		t.Error("missing take-profit reason")
	}

	underWater := &model.Position{Symbol: "2330", Quantity: 1000, AvgPrice: 120, Side: model.SideLong}
	if exit, _ := s.CheckExit(series, 4, underWater); exit {
		t.Fatal("deviation take-profit must not fire at a loss")
	}
}

func TestCheckExit_TrailingStop(t *testing.T) {
	s := mustStrategy(t, BlueLong)
	series := completeSeries([]float64{101, 102, 103, 102, 98}, 96)

	pos := &model.Position{
		Symbol: "2330", Quantity: 1000, AvgPrice: 100,
		Side: model.SideLong, ExtremePrice: 103.5,
	}
	exit, reason := s.CheckExit(series, 4, pos)
	if !exit {
		t.Fatalf("expected trailing stop: 98 < 103.5*(1-0.05)=%.2f", 103.5*0.95)
	}
	if reason == "" {
		t.Error("missing trailing-stop reason")
	}
}

func TestCheckExit_SlowTierUsesPercentTargets(t *testing.T) {
	s := mustStrategy(t, GreenShort)
	pos := &model.Position{Symbol: "2330", Quantity: 1000, AvgPrice: 100, Side: model.SideShort}

	// Short from 100, price collapses to 84: 16% gain >= 15% target.
	series := completeSeries([]float64{90, 88, 86, 85, 84}, 100)
	for i := range series {
		// Keep the short's tier line above price so the stop never fires.
		series[i].Ind.Green = 120
	}
	exit, reason := s.CheckExit(series, 4, pos)
	if !exit {
		t.Fatal("expected profit-target exit for green short")
	}
	if reason == "" {
		t.Error("missing profit-target reason")
	}

	// Price instead rises to 109: -9% <= -8% stop.
	series = completeSeries([]float64{101, 103, 105, 107, 109}, 200)
	for i := range series {
		series[i].Ind.Green = 200
	}
	exit, _ = s.CheckExit(series, 4, pos)
	if !exit {
		t.Fatal("expected percent stop-loss exit for green short")
	}
}

func TestCheckExit_PercentTargetsNeedNoBarHistory(t *testing.T) {
	// The consecutive-bar stop needs a full window of closes, but the
	// percent targets read only the current bar and must fire regardless
	// of how early in the series the position is checked.
	s := mustStrategy(t, GreenShort)
	pos := &model.Position{Symbol: "2330", Quantity: 1000, AvgPrice: 100, Side: model.SideShort}

	series := completeSeries([]float64{90, 86, 84}, 100)
	for i := range series {
		series[i].Ind.Green = 120
	}
	exit, reason := s.CheckExit(series, 2, pos)
	if !exit {
		t.Fatal("profit target must fire before a full stop-loss window exists")
	}
	if reason == "" {
		t.Error("missing profit-target reason")
	}
}
