package premarket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tritrend/internal/broker"
	"tritrend/internal/markethours"
	"tritrend/internal/metrics"
	"tritrend/internal/model"
	"tritrend/internal/notification"
	"tritrend/internal/portfolio"
)

// MonitoringEntry is one armed pending signal under live-price watch.
type MonitoringEntry struct {
	Signal  *model.Signal
	ArmedAt time.Time
}

// MonitorConfig carries the loop timings.
type MonitorConfig struct {
	PollInterval time.Duration // price checks while the market is open
	IdleInterval time.Duration // sleep while it is closed
	Tolerance    float64       // trigger band around the target price
	CallTimeout  time.Duration // per price fetch / order placement
}

// DefaultMonitorConfig returns the standard loop timings.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval: 30 * time.Second,
		IdleInterval: 60 * time.Second,
		Tolerance:    0.01,
		CallTimeout:  5 * time.Second,
	}
}

// Monitor owns the armed-signal set and runs the polling loop on a
// single background goroutine. Arm and Stop are the only operations
// other goroutines may call; once armed, a signal is mutated by the
// loop alone until it leaves pending.
type Monitor struct {
	cfg MonitorConfig
	gw  broker.Gateway
	rm  *portfolio.RiskManager
	pf  *portfolio.Portfolio
	rec Recorder
	met *metrics.Metrics
	log *slog.Logger

	notify notification.Notifier

	marketOpen func(time.Time) bool
	now        func() time.Time

	mu      sync.Mutex
	entries []*MonitoringEntry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor builds the monitor. rec and met may be nil.
func NewMonitor(cfg MonitorConfig, gw broker.Gateway, rm *portfolio.RiskManager,
	pf *portfolio.Portfolio, rec Recorder, met *metrics.Metrics, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		cfg:        cfg,
		gw:         gw,
		rm:         rm,
		pf:         pf,
		rec:        rec,
		met:        met,
		log:        log,
		marketOpen: markethours.IsMarketOpen,
		now:        time.Now,
	}
}

// SetNotifier attaches an alert backend. Call before Start.
func (m *Monitor) SetNotifier(n notification.Notifier) {
	m.notify = n
}

// Arm registers a pending signal for live-price watching. Non-pending
// signals are ignored.
func (m *Monitor) Arm(sig *model.Signal) {
	if sig.Status != model.StatusPending {
		return
	}
	m.mu.Lock()
	m.entries = append(m.entries, &MonitoringEntry{Signal: sig, ArmedAt: m.now()})
	n := len(m.entries)
	m.mu.Unlock()
	if m.met != nil {
		m.met.MonitorEntries.Set(float64(n))
	}
	m.log.Info("signal armed for monitoring",
		"symbol", sig.Symbol, "strategy", sig.Strategy,
		"action", sig.Action, "target", sig.TargetPrice)
}

// Entries returns a snapshot of the armed set. Signals are copied so
// callers never observe a mid-pass mutation.
func (m *Monitor) Entries() []MonitoringEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MonitoringEntry, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e.Signal
		out = append(out, MonitoringEntry{Signal: &cp, ArmedAt: e.ArmedAt})
	}
	return out
}

// Len reports the number of armed entries.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Start launches the polling loop. Call Stop to shut it down.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop cancels the loop and waits for the in-flight pass to finish, so
// no order is half-submitted at shutdown.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		interval := m.cfg.IdleInterval
		if m.marketOpen(m.now()) {
			m.pass(ctx)
			interval = m.cfg.PollInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// pass runs one evaluation over the armed entries in insertion order.
// A failed price fetch skips that entry for this round only. Entries
// whose signal has left pending are dropped at the end of the pass.
func (m *Monitor) pass(ctx context.Context) {
	m.mu.Lock()
	snapshot := make([]*MonitoringEntry, len(m.entries))
	copy(snapshot, m.entries)
	m.mu.Unlock()

	for _, e := range snapshot {
		select {
		case <-ctx.Done():
			return
		default:
		}
		sig := e.Signal
		if sig.Status != model.StatusPending {
			continue
		}

		price, err := m.fetchPrice(ctx, sig.Symbol)
		if err != nil {
			if m.met != nil {
				m.met.PriceFetchSkips.Inc()
			}
			m.log.Warn("price fetch failed, skipping entry this round",
				"symbol", sig.Symbol, "error", err)
			continue
		}
		sig.CurrentPrice = price
		m.pf.UpdatePrice(sig.Symbol, price)

		if !triggered(sig.Action, price, sig.TargetPrice, m.cfg.Tolerance) {
			continue
		}
		m.execute(ctx, sig, price)
	}

	m.prune()
	if m.met != nil {
		m.met.MonitorPasses.Inc()
	}
}

// triggered reports whether the live price has touched the target band:
// buys fire at or below target*(1+tol), sells at or above target*(1-tol).
func triggered(action model.Action, current, target, tol float64) bool {
	if action == model.ActionBuy {
		return current <= target*(1+tol)
	}
	return current >= target*(1-tol)
}

func (m *Monitor) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	start := m.now()
	price, err := m.gw.RealTimePrice(ctx, symbol)
	if m.met != nil {
		m.met.PriceFetchDur.Observe(time.Since(start).Seconds())
	}
	return price, err
}

// execute submits the order for a triggered signal and settles its
// terminal status.
func (m *Monitor) execute(ctx context.Context, sig *model.Signal, price float64) {
	sig.Status = model.StatusExecuting
	m.saveSignal(ctx, sig)

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	start := m.now()
	res, err := m.gw.PlaceOrder(callCtx, model.OrderRequest{
		Symbol:   sig.Symbol,
		Side:     sig.Action,
		Quantity: sig.Quantity,
		Price:    OrderPrice(sig.Action, price, 0),
		Type:     model.OrderLimit,
	})
	if m.met != nil {
		m.met.OrderDur.Observe(time.Since(start).Seconds())
	}

	switch {
	case err != nil:
		sig.Status = model.StatusError
		sig.Error = err.Error()
		m.countOrder("session", "error")
		m.log.Error("order placement failed",
			"symbol", sig.Symbol, "strategy", sig.Strategy, "error", err)
		m.sendAlert(notification.OrderRejected(sig))
	case !res.Success:
		sig.Status = model.StatusFailed
		sig.Error = res.Reason
		m.countOrder("session", "rejected")
		m.log.Warn("order rejected",
			"symbol", sig.Symbol, "strategy", sig.Strategy, "reason", res.Reason)
		m.sendAlert(notification.OrderRejected(sig))
	default:
		sig.Status = model.StatusExecuted
		sig.OrderID = res.OrderID
		sig.ExecutedPrice = price
		sig.ExecutedAt = m.now()
		m.rm.RecordTrade()
		m.pf.ApplyFill(portfolio.Fill{
			Symbol:   sig.Symbol,
			Action:   sig.Action,
			Quantity: sig.Quantity,
			Price:    price,
			FilledAt: sig.ExecutedAt,
		})
		m.countOrder("session", "ok")
		m.log.Info("signal executed",
			"symbol", sig.Symbol, "strategy", sig.Strategy,
			"order_id", res.OrderID, "price", price, "qty", sig.Quantity)
		m.sendAlert(notification.OrderExecuted(sig))
	}
	m.saveSignal(ctx, sig)
}

// sendAlert delivers off the polling goroutine so slow backends never
// stall a pass.
func (m *Monitor) sendAlert(alert notification.Alert) {
	if m.notify == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.notify.Send(ctx, alert); err != nil {
			m.log.Warn("alert delivery failed", "title", alert.Title, "error", err)
		}
	}()
}

// prune drops entries whose signal has left pending. Terminal signals
// are never re-evaluated.
func (m *Monitor) prune() {
	m.mu.Lock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.Signal.Status == model.StatusPending {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	n := len(m.entries)
	m.mu.Unlock()
	if m.met != nil {
		m.met.MonitorEntries.Set(float64(n))
	}
}

func (m *Monitor) saveSignal(ctx context.Context, sig *model.Signal) {
	if m.rec == nil {
		return
	}
	if err := m.rec.SaveSignal(ctx, sig); err != nil {
		m.log.Warn("signal persist failed", "symbol", sig.Symbol, "error", err)
	}
}

func (m *Monitor) countOrder(mode, result string) {
	if m.met != nil {
		m.met.OrdersPlaced.WithLabelValues(mode, result).Inc()
	}
}
