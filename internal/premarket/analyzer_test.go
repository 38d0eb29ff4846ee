package premarket

import (
	"context"
	"strings"
	"testing"
	"time"

	"tritrend/internal/broker"
	"tritrend/internal/indicator"
	"tritrend/internal/model"
	"tritrend/internal/portfolio"
	"tritrend/internal/strategy"
)

type fakeSource struct {
	bars map[string][]model.Bar
	err  error
}

func (f *fakeSource) DailyBars(_ context.Context, symbol string, _, _ time.Time) ([]model.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[symbol], nil
}

// breakoutBars builds a steadily rising daily series with one volume
// spike breaking the prior highs on the final bar, strong enough for
// the fast-tier long strategy.
func breakoutBars(symbol string, n int) []model.Bar {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		close := 100 + 0.2*float64(i)
		vol := 1000.0
		if i == n-1 {
			close += 3
			// trailing-20 ratio of 2.0, spike bar included
			vol = 2.0 * 19 * 1000 / 18
		}
		bars[i] = model.Bar{
			Symbol: symbol,
			TS:     base.Add(time.Duration(i) * 24 * time.Hour),
			Open:   close, High: close + 0.5, Low: close - 0.5, Close: close,
			Volume: vol,
			Period: model.PeriodDaily,
		}
	}
	return bars
}

func testIndicatorEngine() *indicator.Engine {
	return indicator.NewEngine(indicator.Config{
		BlueWindow:        5,
		GreenWindow:       10,
		OrangeWindow:      20,
		SlopeWindow:       3,
		OrangeSlopeWindow: 4,
		VolumeWindow:      20,
	})
}

type analyzerFixture struct {
	analyzer *Analyzer
	monitor  *Monitor
	gateway  broker.Gateway
	limits   portfolio.Limits
}

func newAnalyzerFixture(t *testing.T, gw broker.Gateway, limits portfolio.Limits) *analyzerFixture {
	t.Helper()
	pf := portfolio.New()
	rm := portfolio.NewRiskManager(limits, pf, nil)
	mon := NewMonitor(DefaultMonitorConfig(), gw, rm, pf, nil, nil, nil)

	cfg := DefaultConfig()
	cfg.Universe = []string{"2330"}
	cfg.SplitFourHour = false // the fixture is already bar-exact

	a := NewAnalyzer(cfg, Deps{
		Source:     &fakeSource{bars: map[string][]model.Bar{"2330": breakoutBars("2330", 150)}},
		Indicators: testIndicatorEngine(),
		Strategies: strategy.NewDefaultEngine(nil, nil),
		Risk:       rm,
		Gateway:    gw,
		Monitor:    mon,
	})
	a.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return &analyzerFixture{analyzer: a, monitor: mon, gateway: gw, limits: limits}
}

func permissiveLimits() portfolio.Limits {
	l := portfolio.DefaultLimits()
	l.MaxPositionSize = 200000
	l.MinPreMarketStrength = 0.7
	return l
}

func TestAnalyzer_PreMarketPathSubmitsSimulatedOrder(t *testing.T) {
	fx := newAnalyzerFixture(t, broker.NewSimGateway(nil), permissiveLimits())
	fx.analyzer.preMarket = func(time.Time) bool { return true }

	out, err := fx.analyzer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("breakout fixture should produce at least one signal")
	}
	for _, s := range out {
		if s.Status != model.StatusPreMarketOrder {
			t.Errorf("%s: status = %s, want %s", s.Strategy, s.Status, model.StatusPreMarketOrder)
		}
		if !strings.HasPrefix(s.OrderID, "SIM_") {
			t.Errorf("%s: order id = %q, want simulated id", s.Strategy, s.OrderID)
		}
		if s.OrderPrice <= s.TargetPrice {
			t.Errorf("%s: buy order price %v should carry the upward bias over %v",
				s.Strategy, s.OrderPrice, s.TargetPrice)
		}
	}
	if fx.monitor.Len() != 0 {
		t.Fatal("submitted signals must not also be armed")
	}
}

func TestAnalyzer_SessionPathArmsMonitor(t *testing.T) {
	fx := newAnalyzerFixture(t, broker.NewSimGateway(nil), permissiveLimits())
	fx.analyzer.preMarket = func(time.Time) bool { return false }

	out, err := fx.analyzer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected signals")
	}
	for _, s := range out {
		if s.Status != model.StatusPending {
			t.Errorf("%s: status = %s, want pending", s.Strategy, s.Status)
		}
	}
	if fx.monitor.Len() != len(out) {
		t.Fatalf("armed = %d, want %d", fx.monitor.Len(), len(out))
	}
}

func TestAnalyzer_OversizedSignalIsBlocked(t *testing.T) {
	limits := permissiveLimits()
	limits.MaxPositionSize = 50000 // one board lot of the fixture exceeds this
	fx := newAnalyzerFixture(t, broker.NewSimGateway(nil), limits)
	fx.analyzer.preMarket = func(time.Time) bool { return true }

	out, err := fx.analyzer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected signals")
	}
	for _, s := range out {
		if s.Status != model.StatusBlocked {
			t.Errorf("%s: status = %s, want blocked", s.Strategy, s.Status)
		}
		if !strings.Contains(s.BlockReason, "max position size") {
			t.Errorf("%s: reason = %q", s.Strategy, s.BlockReason)
		}
	}
	if fx.monitor.Len() != 0 {
		t.Fatal("blocked signals must not be armed")
	}
}

func TestAnalyzer_EmptyFetchSkipsSymbol(t *testing.T) {
	fx := newAnalyzerFixture(t, broker.NewSimGateway(nil), permissiveLimits())
	fx.analyzer.d.Source = &fakeSource{bars: map[string][]model.Bar{}}

	out, err := fx.analyzer.Run(context.Background())
	if err != nil {
		t.Fatalf("no data is not an error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("signals from nothing: %v", out)
	}
}

func TestAnalyzer_EmptyUniverseIsAnError(t *testing.T) {
	fx := newAnalyzerFixture(t, broker.NewSimGateway(nil), permissiveLimits())
	fx.analyzer.cfg.Universe = nil
	if _, err := fx.analyzer.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnalyzer_PreMarketCeilingFallsBackToMonitor(t *testing.T) {
	limits := permissiveLimits()
	limits.MaxPreMarketOrders = 0
	fx := newAnalyzerFixture(t, broker.NewSimGateway(nil), limits)
	fx.analyzer.preMarket = func(time.Time) bool { return true }

	out, err := fx.analyzer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range out {
		if s.Status != model.StatusPending {
			t.Errorf("%s: status = %s, want pending (armed)", s.Strategy, s.Status)
		}
	}
	if fx.monitor.Len() != len(out) {
		t.Fatalf("armed = %d, want %d", fx.monitor.Len(), len(out))
	}
}
