package portfolio

import (
	"fmt"
	"log/slog"
	"sync"

	"tritrend/internal/model"
)

// Limits defines the process-wide risk thresholds. Loaded once at
// startup and read-only thereafter.
type Limits struct {
	MaxPositionSize      float64 `yaml:"max_position_size"`       // max notional per order
	TotalCapital         float64 `yaml:"total_capital"`           // deployable capital
	MaxOpenPositions     int     `yaml:"max_open_positions"`      // concurrent positions
	MaxDailyTrades       int     `yaml:"max_daily_trades"`        // orders per day
	MaxPreMarketOrders   int     `yaml:"max_pre_market_orders"`   // pre-open orders per day
	MinSignalStrength    float64 `yaml:"min_signal_strength"`     // ordinary execution gate
	MinPreMarketStrength float64 `yaml:"min_pre_market_strength"` // stricter pre-open gate
	PriceTolerance       float64 `yaml:"price_tolerance"`         // monitor trigger band
}

// DefaultLimits returns conservative defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:      100000,
		TotalCapital:         1000000,
		MaxOpenPositions:     5,
		MaxDailyTrades:       10,
		MaxPreMarketOrders:   5,
		MinSignalStrength:    0.7,
		MinPreMarketStrength: 0.8,
		PriceTolerance:       0.01,
	}
}

// RiskManager validates candidate signals against the limits and the
// current position book, and tracks the daily order counters.
type RiskManager struct {
	mu     sync.Mutex
	limits Limits
	pf     *Portfolio
	log    *slog.Logger

	dailyTrades     int
	preMarketOrders int
}

// NewRiskManager creates a risk manager over the given portfolio.
func NewRiskManager(limits Limits, pf *Portfolio, log *slog.Logger) *RiskManager {
	return &RiskManager{limits: limits, pf: pf, log: log}
}

// Limits returns the configured limits.
func (rm *RiskManager) Limits() Limits { return rm.limits }

// Check validates a signal against every limit. The checks are pure
// reads in a fixed order, so re-checking an unchanged signal always
// yields the same verdict and reason.
func (rm *RiskManager) Check(sig *model.Signal) (bool, string) {
	notional := sig.Notional()
	if notional > rm.limits.MaxPositionSize {
		return false, fmt.Sprintf("order notional %.0f exceeds max position size %.0f",
			notional, rm.limits.MaxPositionSize)
	}

	available := rm.limits.TotalCapital - rm.pf.CommittedNotional()
	if notional > available {
		return false, fmt.Sprintf("order notional %.0f exceeds available capital %.0f",
			notional, available)
	}

	if pos, held := rm.pf.Get(sig.Symbol); held {
		// Opposite direction closes or flips the position; the same
		// direction would pyramid into an existing holding.
		if pos.Direction() == sig.Action {
			return false, fmt.Sprintf("already holding %s %s", sig.Symbol, pos.Side)
		}
	} else if rm.pf.Count() >= rm.limits.MaxOpenPositions {
		return false, fmt.Sprintf("max open positions reached (%d)", rm.limits.MaxOpenPositions)
	}

	rm.mu.Lock()
	trades := rm.dailyTrades
	rm.mu.Unlock()
	if trades >= rm.limits.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached (%d)", rm.limits.MaxDailyTrades)
	}

	return true, ""
}

// Gate applies Check and marks a failing signal blocked, retaining the
// rejection reason for audit. Blocked is terminal. Returns whether the
// signal survived.
func (rm *RiskManager) Gate(sig *model.Signal) bool {
	ok, reason := rm.Check(sig)
	if !ok {
		sig.Status = model.StatusBlocked
		sig.BlockReason = reason
		if rm.log != nil {
			rm.log.Warn("signal blocked by risk gate",
				"symbol", sig.Symbol, "strategy", sig.Strategy, "reason", reason)
		}
	}
	return ok
}

// CheckPreMarket re-validates a signal for the pre-open window: the
// ordinary checks plus the stricter strength gate and the pre-market
// order ceiling.
func (rm *RiskManager) CheckPreMarket(sig *model.Signal) (bool, string) {
	if sig.Strength < rm.limits.MinPreMarketStrength {
		return false, fmt.Sprintf("strength %.2f below pre-market minimum %.2f",
			sig.Strength, rm.limits.MinPreMarketStrength)
	}

	rm.mu.Lock()
	orders := rm.preMarketOrders
	rm.mu.Unlock()
	if orders >= rm.limits.MaxPreMarketOrders {
		return false, fmt.Sprintf("pre-market order limit reached (%d)", rm.limits.MaxPreMarketOrders)
	}

	return rm.Check(sig)
}

// RecordTrade counts one submitted order against the daily ceiling.
func (rm *RiskManager) RecordTrade() {
	rm.mu.Lock()
	rm.dailyTrades++
	rm.mu.Unlock()
}

// RecordPreMarketOrder counts one pre-open submission.
func (rm *RiskManager) RecordPreMarketOrder() {
	rm.mu.Lock()
	rm.preMarketOrders++
	rm.dailyTrades++
	rm.mu.Unlock()
}

// ResetDaily clears the daily counters; called at the start of each
// trading day.
func (rm *RiskManager) ResetDaily() {
	rm.mu.Lock()
	rm.dailyTrades = 0
	rm.preMarketOrders = 0
	rm.mu.Unlock()
	if rm.log != nil {
		rm.log.Info("daily risk counters reset")
	}
}

// Counters reports the current daily usage, for status endpoints.
func (rm *RiskManager) Counters() (trades, preMarket int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.dailyTrades, rm.preMarketOrders
}
