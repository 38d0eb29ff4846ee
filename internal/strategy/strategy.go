// Package strategy implements the six tier×direction trading strategies
// over indicator-augmented bar series.
//
// A Strategy scans a series and emits zero or more signals. The six
// variants are the Cartesian product of {blue, green, orange} moving
// average tiers and {long, short} directions; they share one
// four-condition entry shape with mirrored thresholds and differ only
// in parameters. Variants form a closed set dispatched through a
// registry, not reflection.
package strategy

import (
	"errors"
	"fmt"
	"log/slog"

	"tritrend/internal/model"
)

// Tier selects which moving average a strategy trades around.
type Tier string

const (
	TierBlue   Tier = "blue"   // fast, monthly line
	TierGreen  Tier = "green"  // mid, quarterly line
	TierOrange Tier = "orange" // slow, half-year line
)

// Direction is the side a strategy trades.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// The closed set of strategy identifiers.
const (
	BlueLong    = "blue_long"
	BlueShort   = "blue_short"
	GreenLong   = "green_long"
	GreenShort  = "green_short"
	OrangeLong  = "orange_long"
	OrangeShort = "orange_short"
)

// IDs lists every registered strategy identifier in evaluation order.
var IDs = []string{BlueLong, BlueShort, GreenLong, GreenShort, OrangeLong, OrangeShort}

// ErrMissingIndicators reports a series whose bars were never run
// through the indicator engine. This is a caller bug, not a data gap,
// and is surfaced rather than swallowed.
var ErrMissingIndicators = errors.New("strategy: series missing indicator columns")

// Strategy is the contract shared by all six evaluators.
type Strategy interface {
	// Name returns the strategy identifier, e.g. "blue_long".
	Name() string

	// Tier returns the moving average tier this strategy trades around.
	Tier() Tier

	// Direction returns long or short.
	Direction() Direction

	// CheckEntry evaluates the entry conditions at index i, excluding
	// the strength gate. Returns the entry price when valid.
	CheckEntry(series []model.IndicatorBar, i int) (bool, float64)

	// CheckExit evaluates the exit conditions at index i for an open
	// position. The first matching condition wins; its reason is
	// returned.
	CheckExit(series []model.IndicatorBar, i int, pos *model.Position) (bool, string)

	// Strength scores the signal at index i in [0,1]. Indices with
	// insufficient lookback score 0.
	Strength(series []model.IndicatorBar, i int) float64

	// GenerateSignals scans the whole series and emits pending signals
	// for every index passing both entry conditions and the strength
	// gate. A series shorter than the required lookback yields no
	// signals and no error; a series without indicator columns yields
	// ErrMissingIndicators.
	GenerateSignals(series []model.IndicatorBar) ([]model.Signal, error)
}

// factory builds a strategy variant from its parameters.
type factory func(Params) Strategy

// registry maps the closed variant set to constructors.
var registry = map[string]factory{}

func register(id string, f factory) {
	if _, dup := registry[id]; dup {
		panic("strategy: duplicate registration of " + id)
	}
	registry[id] = f
}

// New builds a single strategy by identifier.
func New(id string, params Params) (Strategy, error) {
	f, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown id %q", id)
	}
	return f(params), nil
}

// Engine runs a set of strategies over a symbol's series and collects
// their signals. Failures are isolated per strategy: one evaluator's
// error never prevents the others from running.
type Engine struct {
	strategies []Strategy
	log        *slog.Logger
}

// NewEngine creates an engine with the given strategies.
func NewEngine(log *slog.Logger, strategies ...Strategy) *Engine {
	return &Engine{strategies: strategies, log: log}
}

// NewDefaultEngine creates an engine with all six variants built from
// their default parameters, overridden per strategy by overrides.
func NewDefaultEngine(log *slog.Logger, overrides map[string]Params) *Engine {
	e := &Engine{log: log}
	for _, id := range IDs {
		params, ok := overrides[id]
		if !ok {
			params = DefaultParams(id)
		}
		s, err := New(id, params)
		if err != nil {
			// IDs and the registry are both compile-time closed sets.
			panic(err)
		}
		e.strategies = append(e.strategies, s)
	}
	return e
}

// Strategies returns the engine's strategies in evaluation order.
func (e *Engine) Strategies() []Strategy { return e.strategies }

// Evaluate runs every strategy over the series and returns the merged
// signal list plus per-strategy errors (keyed by strategy name).
func (e *Engine) Evaluate(series []model.IndicatorBar) ([]model.Signal, map[string]error) {
	var signals []model.Signal
	errs := make(map[string]error)
	for _, s := range e.strategies {
		got, err := s.GenerateSignals(series)
		if err != nil {
			errs[s.Name()] = err
			if e.log != nil {
				e.log.Error("strategy evaluation failed",
					"strategy", s.Name(), "err", err)
			}
			continue
		}
		signals = append(signals, got...)
	}
	return signals, errs
}

// validateSeries rejects series that are long enough to evaluate but
// carry no computed indicators. A zero-valued IndicatorSet has all-zero
// moving averages, which real price data cannot produce.
func validateSeries(series []model.IndicatorBar) error {
	for i := range series {
		ind := &series[i].Ind
		if ind.Blue == 0 && ind.Green == 0 && ind.Orange == 0 &&
			ind.VolumeRatio == 0 && ind.TrendStrength == 0 {
			return fmt.Errorf("%w: bar %d (%s)", ErrMissingIndicators, i, series[i].TS)
		}
	}
	return nil
}
