package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"tritrend/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testBar(symbol string, ts time.Time, close float64) model.Bar {
	return model.Bar{
		Symbol: symbol,
		TS:     ts,
		Open:   close - 1,
		High:   close + 1,
		Low:    close - 2,
		Close:  close,
		Volume: 1000,
		Period: model.PeriodFourHour,
	}
}

func TestSaveBars_RoundTripAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	// Insert out of order; LoadBars must come back ascending.
	bars := []model.Bar{
		testBar("2330", base.Add(8*time.Hour), 102),
		testBar("2330", base, 100),
		testBar("2330", base.Add(4*time.Hour), 101),
	}
	if err := s.SaveBars(ctx, bars); err != nil {
		t.Fatalf("SaveBars: %v", err)
	}

	got, err := s.LoadBars(ctx, "2330", model.PeriodFourHour, 0)
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].TS.After(got[i-1].TS) {
			t.Fatalf("bars not ascending at %d: %v then %v", i, got[i-1].TS, got[i].TS)
		}
	}
	if got[0].Close != 100 || got[2].Close != 102 {
		t.Fatalf("unexpected closes: %.0f ... %.0f", got[0].Close, got[2].Close)
	}
}

func TestSaveBars_UpsertReplacesSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	if err := s.SaveBars(ctx, []model.Bar{testBar("2330", ts, 100)}); err != nil {
		t.Fatalf("SaveBars: %v", err)
	}
	if err := s.SaveBars(ctx, []model.Bar{testBar("2330", ts, 105)}); err != nil {
		t.Fatalf("SaveBars rewrite: %v", err)
	}

	got, err := s.LoadBars(ctx, "2330", model.PeriodFourHour, 0)
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 bar after upsert, got %d", len(got))
	}
	if got[0].Close != 105 {
		t.Fatalf("expected replaced close 105, got %.0f", got[0].Close)
	}
}

func TestLastBarTS(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts, err := s.LastBarTS(ctx, "2330", model.PeriodFourHour)
	if err != nil {
		t.Fatalf("LastBarTS empty: %v", err)
	}
	if ts != 0 {
		t.Fatalf("expected 0 for empty table, got %d", ts)
	}

	base := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	s.SaveBars(ctx, []model.Bar{
		testBar("2330", base, 100),
		testBar("2330", base.Add(4*time.Hour), 101),
	})

	ts, err = s.LastBarTS(ctx, "2330", model.PeriodFourHour)
	if err != nil {
		t.Fatalf("LastBarTS: %v", err)
	}
	if want := base.Add(4 * time.Hour).Unix(); ts != want {
		t.Fatalf("expected %d, got %d", want, ts)
	}
}

func TestSaveIndicators_NaNStoredAsNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bar := testBar("2330", time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC), 100)
	series := []model.IndicatorBar{{
		Bar: bar,
		Ind: model.IndicatorSet{
			Blue:          101.5,
			Green:         math.NaN(),
			Orange:        math.NaN(),
			BlueSlope:     0.2,
			TrendStrength: 0.6,
		},
	}}
	if err := s.SaveIndicators(ctx, series); err != nil {
		t.Fatalf("SaveIndicators: %v", err)
	}

	var blue, green any
	err := s.db.QueryRow(`SELECT ma_blue, ma_green FROM indicators WHERE symbol = ?`, "2330").
		Scan(&blue, &green)
	if err != nil {
		t.Fatalf("query indicators: %v", err)
	}
	if blue == nil {
		t.Fatal("ma_blue should not be NULL")
	}
	if green != nil {
		t.Fatalf("ma_green should be NULL for undefined value, got %v", green)
	}
}

func TestSaveSignal_LifecycleUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 7, 5, 0, 0, time.UTC)
	sig := &model.Signal{
		Symbol:      "2330",
		Strategy:    "blue_long",
		Action:      model.ActionBuy,
		Strength:    0.82,
		TargetPrice: 100,
		Quantity:    2000,
		Reason:      "volume breakout above blue line",
		BarTS:       now.Add(-4 * time.Hour),
		CreatedAt:   now,
		Status:      model.StatusPending,
	}
	if err := s.SaveSignal(ctx, sig); err != nil {
		t.Fatalf("SaveSignal pending: %v", err)
	}

	sig.Status = model.StatusPreMarketOrder
	sig.OrderID = "SIM_1_1"
	sig.OrderPrice = 100.5
	sig.OrderTime = now.Add(time.Minute)
	if err := s.SaveSignal(ctx, sig); err != nil {
		t.Fatalf("SaveSignal ordered: %v", err)
	}

	got, err := s.LoadSignals(ctx, model.StatusPreMarketOrder, 10)
	if err != nil {
		t.Fatalf("LoadSignals: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 signal after upsert, got %d", len(got))
	}
	g := got[0]
	if g.OrderID != "SIM_1_1" || g.OrderPrice != 100.5 {
		t.Fatalf("order fields not persisted: %+v", g)
	}
	if !g.OrderTime.Equal(now.Add(time.Minute)) {
		t.Fatalf("order time mismatch: %v", g.OrderTime)
	}
	if g.Quantity != 2000 || g.Action != model.ActionBuy {
		t.Fatalf("core fields mismatch: %+v", g)
	}

	// Pending filter no longer matches the upserted row.
	pending, err := s.LoadSignals(ctx, model.StatusPending, 10)
	if err != nil {
		t.Fatalf("LoadSignals pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending signals, got %d", len(pending))
	}
}
