// Package premarket turns indicator series into dispatched orders: the
// Analyzer scans the symbol universe before the session, funnels
// candidate signals through the risk gate, submits the strongest ones
// as pre-market orders, and arms the rest for live-price monitoring.
package premarket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tritrend/internal/broker"
	"tritrend/internal/indicator"
	"tritrend/internal/kline"
	"tritrend/internal/logger"
	"tritrend/internal/markethours"
	"tritrend/internal/marketdata"
	"tritrend/internal/metrics"
	"tritrend/internal/model"
	"tritrend/internal/notification"
	"tritrend/internal/portfolio"
	"tritrend/internal/strategy"
)

// Recorder persists pipeline artifacts. Implementations are best
// effort; a persist failure never stops the pipeline.
type Recorder interface {
	SaveBars(ctx context.Context, bars []model.Bar) error
	SaveIndicators(ctx context.Context, series []model.IndicatorBar) error
	SaveSignal(ctx context.Context, sig *model.Signal) error
}

// Config carries the analysis-pass knobs.
type Config struct {
	Universe      []string `yaml:"universe"`
	LookbackDays  int      `yaml:"lookback_days"`
	BaseQuantity  float64  `yaml:"base_quantity"`
	TopKPerSymbol int      `yaml:"top_k_per_symbol"`
	PriceBias     float64  `yaml:"price_bias"`
	SplitFourHour bool     `yaml:"split_four_hour"`
}

// DefaultConfig returns the standard analysis knobs.
func DefaultConfig() Config {
	return Config{
		LookbackDays:  720,
		BaseQuantity:  1000,
		TopKPerSymbol: 2,
		PriceBias:     0.005,
		SplitFourHour: true,
	}
}

// Deps are the analyzer's collaborators. Recorder and Metrics may be
// nil.
type Deps struct {
	Source     marketdata.BarSource
	Indicators *indicator.Engine
	Strategies *strategy.Engine
	Risk       *portfolio.RiskManager
	Gateway    broker.Gateway
	Monitor    *Monitor
	Recorder   Recorder
	Metrics    *metrics.Metrics
	Notify     notification.Notifier
	Logger     *slog.Logger
}

// Analyzer runs one scan/rank/gate/dispatch pass over the universe.
type Analyzer struct {
	cfg Config
	d   Deps
	log *slog.Logger

	preMarket   func(time.Time) bool
	now         func() time.Time
	callTimeout time.Duration
}

// NewAnalyzer builds an analyzer.
func NewAnalyzer(cfg Config, d Deps) *Analyzer {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{
		cfg:         cfg,
		d:           d,
		log:         log,
		preMarket:   markethours.IsPreMarket,
		now:         time.Now,
		callTimeout: 10 * time.Second,
	}
}

// Run executes one full analysis pass and returns every signal that
// reached the funnel, in dispatch order, with final statuses set. One
// symbol's failure never prevents the rest from being evaluated.
func (a *Analyzer) Run(ctx context.Context) ([]model.Signal, error) {
	if len(a.cfg.Universe) == 0 {
		return nil, fmt.Errorf("premarket: empty symbol universe")
	}

	to := a.now()
	ctx = logger.WithPassID(ctx, logger.NewPassID("scan", to))
	from := to.AddDate(0, 0, -a.cfg.LookbackDays)

	var candidates []model.Signal
	for _, symbol := range a.cfg.Universe {
		sigs, err := a.scanSymbol(ctx, symbol, from, to)
		if err != nil {
			if a.d.Metrics != nil {
				a.d.Metrics.FetchErrors.Inc()
			}
			a.log.Error("symbol scan failed", "symbol", symbol, "error", err)
			continue
		}
		candidates = append(candidates, sigs...)
	}

	minStrength := a.d.Risk.Limits().MinSignalStrength
	ranked := Aggregate(candidates, minStrength, a.cfg.TopKPerSymbol)
	a.log.Info("analysis pass complete", "pass_id", logger.PassID(ctx),
		"symbols", len(a.cfg.Universe), "candidates", len(candidates), "ranked", len(ranked))

	out := make([]model.Signal, 0, len(ranked))
	for i := range ranked {
		sig := &ranked[i]
		a.dispatch(ctx, sig)
		a.saveSignal(ctx, sig)
		out = append(out, *sig)
	}
	return out, nil
}

// scanSymbol fetches history, computes indicators, evaluates the six
// strategies, and keeps only signals on the latest bar. An empty fetch
// means no data for the symbol, not an error.
func (a *Analyzer) scanSymbol(ctx context.Context, symbol string, from, to time.Time) ([]model.Signal, error) {
	daily, err := a.d.Source.DailyBars(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(daily) == 0 {
		a.log.Debug("no bars, skipping symbol", "symbol", symbol)
		return nil, nil
	}
	if a.d.Metrics != nil {
		a.d.Metrics.BarsFetched.WithLabelValues(symbol).Add(float64(len(daily)))
	}

	bars := daily
	if a.cfg.SplitFourHour {
		bars = kline.SplitDaily(daily)
	}

	start := a.now()
	series := a.d.Indicators.Compute(bars)
	if a.d.Metrics != nil {
		a.d.Metrics.IndicatorDur.Observe(time.Since(start).Seconds())
	}
	a.saveSeries(ctx, bars, series)

	signals, errs := a.d.Strategies.Evaluate(series)
	for name := range errs {
		if a.d.Metrics != nil {
			a.d.Metrics.StrategyErrors.WithLabelValues(name).Inc()
		}
	}

	// Only the latest bar is actionable; older entries are history.
	lastTS := series[len(series)-1].TS
	fresh := signals[:0]
	for _, s := range signals {
		if !s.BarTS.Equal(lastTS) {
			continue
		}
		s.Quantity = PositionSize(s.Strength, s.TargetPrice,
			a.cfg.BaseQuantity, a.d.Risk.Limits().MaxPositionSize)
		fresh = append(fresh, s)
		if a.d.Metrics != nil {
			a.d.Metrics.SignalsTotal.WithLabelValues(s.Strategy, string(s.Action)).Inc()
		}
	}
	return fresh, nil
}

// dispatch risk-gates one signal and routes it: pre-market submission
// when the window and the stricter gate allow, otherwise the live
// monitor. Blocked signals go nowhere.
func (a *Analyzer) dispatch(ctx context.Context, sig *model.Signal) {
	if !a.d.Risk.Gate(sig) {
		if a.d.Metrics != nil {
			a.d.Metrics.SignalsBlocked.WithLabelValues("risk").Inc()
		}
		return
	}

	if a.preMarket(a.now()) {
		ok, reason := a.d.Risk.CheckPreMarket(sig)
		if ok {
			a.submitPreMarket(ctx, sig)
			return
		}
		a.log.Info("not eligible for pre-market submission, arming monitor",
			"symbol", sig.Symbol, "strategy", sig.Strategy, "reason", reason)
	}
	a.d.Monitor.Arm(sig)
}

// submitPreMarket places the immediate order with the fill bias applied
// and settles the signal's terminal status.
func (a *Analyzer) submitPreMarket(ctx context.Context, sig *model.Signal) {
	price := OrderPrice(sig.Action, sig.TargetPrice, a.cfg.PriceBias)

	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	start := a.now()
	res, err := a.d.Gateway.PlaceOrder(callCtx, model.OrderRequest{
		Symbol:    sig.Symbol,
		Side:      sig.Action,
		Quantity:  sig.Quantity,
		Price:     price,
		Type:      model.OrderLimit,
		PreMarket: true,
	})
	if a.d.Metrics != nil {
		a.d.Metrics.OrderDur.Observe(time.Since(start).Seconds())
	}

	switch {
	case err != nil:
		sig.Status = model.StatusPreMarketError
		sig.Error = err.Error()
		a.countOrder("pre_market", "error")
		a.log.Error("pre-market order failed",
			"symbol", sig.Symbol, "strategy", sig.Strategy, "error", err)
	case !res.Success:
		sig.Status = model.StatusPreMarketFailed
		sig.Error = res.Reason
		a.countOrder("pre_market", "rejected")
		a.log.Warn("pre-market order rejected",
			"symbol", sig.Symbol, "strategy", sig.Strategy, "reason", res.Reason)
		a.sendAlert(notification.OrderRejected(sig))
	default:
		sig.Status = model.StatusPreMarketOrder
		sig.OrderID = res.OrderID
		sig.OrderPrice = price
		sig.OrderTime = a.now()
		a.d.Risk.RecordPreMarketOrder()
		a.countOrder("pre_market", "ok")
		a.log.Info("pre-market order placed",
			"symbol", sig.Symbol, "strategy", sig.Strategy,
			"order_id", res.OrderID, "price", price, "qty", sig.Quantity,
			"simulated", res.Simulated)
		a.sendAlert(notification.PreMarketOrdered(sig))
	}
}

func (a *Analyzer) sendAlert(alert notification.Alert) {
	if a.d.Notify == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.d.Notify.Send(ctx, alert); err != nil {
			a.log.Warn("alert delivery failed", "title", alert.Title, "error", err)
		}
	}()
}

func (a *Analyzer) saveSeries(ctx context.Context, bars []model.Bar, series []model.IndicatorBar) {
	if a.d.Recorder == nil {
		return
	}
	if err := a.d.Recorder.SaveBars(ctx, bars); err != nil {
		a.log.Warn("bar persist failed", "error", err)
	}
	if err := a.d.Recorder.SaveIndicators(ctx, series); err != nil {
		a.log.Warn("indicator persist failed", "error", err)
	}
}

func (a *Analyzer) saveSignal(ctx context.Context, sig *model.Signal) {
	if a.d.Recorder == nil {
		return
	}
	if err := a.d.Recorder.SaveSignal(ctx, sig); err != nil {
		a.log.Warn("signal persist failed", "symbol", sig.Symbol, "error", err)
	}
}

func (a *Analyzer) countOrder(mode, result string) {
	if a.d.Metrics != nil {
		a.d.Metrics.OrdersPlaced.WithLabelValues(mode, result).Inc()
	}
}
