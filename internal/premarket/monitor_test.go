package premarket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tritrend/internal/model"
	"tritrend/internal/portfolio"
)

// fakeGateway scripts per-symbol price sequences and records orders.
type fakeGateway struct {
	mu       sync.Mutex
	prices   map[string][]float64
	priceErr map[string]error
	orders   []model.OrderRequest
	result   model.OrderResult
	placeErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		prices:   make(map[string][]float64),
		priceErr: make(map[string]error),
		result:   model.OrderResult{Success: true, OrderID: "F001", PlacedAt: time.Now()},
	}
}

func (g *fakeGateway) Simulated() bool { return true }

func (g *fakeGateway) RealTimePrice(_ context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.priceErr[symbol]; err != nil {
		return 0, err
	}
	seq := g.prices[symbol]
	if len(seq) == 0 {
		return 0, errors.New("no quote")
	}
	p := seq[0]
	if len(seq) > 1 {
		g.prices[symbol] = seq[1:]
	}
	return p, nil
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req model.OrderRequest) (model.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeErr != nil {
		return model.OrderResult{}, g.placeErr
	}
	g.orders = append(g.orders, req)
	return g.result, nil
}

func (g *fakeGateway) Positions(context.Context) ([]model.Position, error) { return nil, nil }
func (g *fakeGateway) AccountBalance(context.Context) (float64, error)     { return 1e6, nil }

func (g *fakeGateway) orderCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.orders)
}

func newTestMonitor(gw *fakeGateway) (*Monitor, *portfolio.Portfolio, *portfolio.RiskManager) {
	pf := portfolio.New()
	rm := portfolio.NewRiskManager(portfolio.DefaultLimits(), pf, nil)
	m := NewMonitor(DefaultMonitorConfig(), gw, rm, pf, nil, nil, nil)
	m.marketOpen = func(time.Time) bool { return true }
	return m, pf, rm
}

func pendingSignal(symbol string, action model.Action, target float64) *model.Signal {
	return &model.Signal{
		Symbol: symbol, Strategy: "blue_long", Action: action,
		Strength: 0.85, TargetPrice: target, Quantity: 1000,
		Status: model.StatusPending, CreatedAt: time.Now(),
	}
}

func TestMonitor_BuyFiresInsideToleranceBand(t *testing.T) {
	gw := newFakeGateway()
	gw.prices["2330"] = []float64{105, 103, 99.5}
	m, pf, _ := newTestMonitor(gw)

	s := pendingSignal("2330", model.ActionBuy, 100)
	m.Arm(s)

	ctx := context.Background()
	m.pass(ctx)
	if s.Status != model.StatusPending || gw.orderCount() != 0 {
		t.Fatalf("pass 1 (105): status=%s orders=%d", s.Status, gw.orderCount())
	}
	m.pass(ctx)
	if s.Status != model.StatusPending || gw.orderCount() != 0 {
		t.Fatalf("pass 2 (103): status=%s orders=%d", s.Status, gw.orderCount())
	}
	m.pass(ctx)
	if s.Status != model.StatusExecuted {
		t.Fatalf("pass 3 (99.5): status=%s, want executed", s.Status)
	}
	if gw.orderCount() != 1 {
		t.Fatalf("orders = %d, want 1", gw.orderCount())
	}
	if s.ExecutedPrice != 99.5 || s.OrderID != "F001" {
		t.Fatalf("fill fields: %+v", s)
	}
	if m.Len() != 0 {
		t.Fatal("executed signal should leave the watch set")
	}
	if pos, ok := pf.Get("2330"); !ok || pos.Quantity != 1000 {
		t.Fatalf("fill should open a position: %+v", pos)
	}
}

func TestMonitor_SellFiresAboveBand(t *testing.T) {
	gw := newFakeGateway()
	gw.prices["2317"] = []float64{97, 99.2}
	m, _, _ := newTestMonitor(gw)

	s := pendingSignal("2317", model.ActionSell, 100)
	m.Arm(s)

	ctx := context.Background()
	m.pass(ctx)
	if s.Status != model.StatusPending {
		t.Fatalf("97 < 99 band, should not fire: %s", s.Status)
	}
	m.pass(ctx)
	if s.Status != model.StatusExecuted {
		t.Fatalf("99.2 >= 99, should fire: %s", s.Status)
	}
}

func TestMonitor_PriceFetchFailureSkipsRound(t *testing.T) {
	gw := newFakeGateway()
	gw.priceErr["2330"] = errors.New("quote service down")
	m, _, _ := newTestMonitor(gw)

	s := pendingSignal("2330", model.ActionBuy, 100)
	m.Arm(s)
	m.pass(context.Background())

	if s.Status != model.StatusPending || m.Len() != 1 {
		t.Fatalf("failed fetch must not drop or settle the entry: %s len=%d", s.Status, m.Len())
	}

	// Next round the quote is back.
	delete(gw.priceErr, "2330")
	gw.prices["2330"] = []float64{99}
	m.pass(context.Background())
	if s.Status != model.StatusExecuted {
		t.Fatalf("status = %s, want executed", s.Status)
	}
}

func TestMonitor_RejectedOrderIsTerminalFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.prices["2330"] = []float64{99}
	gw.result = model.OrderResult{Success: false, Reason: "insufficient margin"}
	m, _, _ := newTestMonitor(gw)

	s := pendingSignal("2330", model.ActionBuy, 100)
	m.Arm(s)
	m.pass(context.Background())

	if s.Status != model.StatusFailed || s.Error != "insufficient margin" {
		t.Fatalf("status=%s error=%q", s.Status, s.Error)
	}
	if m.Len() != 0 {
		t.Fatal("terminal signal should leave the watch set")
	}

	// A later pass never resurrects it.
	m.pass(context.Background())
	if s.Status != model.StatusFailed {
		t.Fatalf("terminal state changed to %s", s.Status)
	}
}

func TestMonitor_TransportErrorCaptured(t *testing.T) {
	gw := newFakeGateway()
	gw.prices["2330"] = []float64{99}
	gw.placeErr = errors.New("connection reset")
	m, _, _ := newTestMonitor(gw)

	s := pendingSignal("2330", model.ActionBuy, 100)
	m.Arm(s)
	m.pass(context.Background())

	if s.Status != model.StatusError || s.Error == "" {
		t.Fatalf("status=%s error=%q", s.Status, s.Error)
	}
}

func TestMonitor_InsertionOrderWithinPass(t *testing.T) {
	gw := newFakeGateway()
	gw.prices["2330"] = []float64{99}
	gw.prices["2317"] = []float64{99}
	m, _, _ := newTestMonitor(gw)

	m.Arm(pendingSignal("2330", model.ActionBuy, 100))
	m.Arm(pendingSignal("2317", model.ActionBuy, 100))
	m.pass(context.Background())

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.orders) != 2 || gw.orders[0].Symbol != "2330" || gw.orders[1].Symbol != "2317" {
		t.Fatalf("orders out of insertion order: %+v", gw.orders)
	}
}

func TestMonitor_ArmRejectsNonPending(t *testing.T) {
	m, _, _ := newTestMonitor(newFakeGateway())
	s := pendingSignal("2330", model.ActionBuy, 100)
	s.Status = model.StatusBlocked
	m.Arm(s)
	if m.Len() != 0 {
		t.Fatal("blocked signal must not be armed")
	}
}

func TestMonitor_StopJoinsLoop(t *testing.T) {
	m, _, _ := newTestMonitor(newFakeGateway())
	m.cfg.IdleInterval = 5 * time.Millisecond
	m.marketOpen = func(time.Time) bool { return false }

	m.Start(context.Background())
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not join the loop")
	}
}
