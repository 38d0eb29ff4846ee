package model

import (
	"encoding/json"
	"time"
)

// Period labels for bars. Daily bars come from the data provider;
// four-hour bars are synthesized by the kline package.
const (
	PeriodDaily    = "1d"
	PeriodFourHour = "4h"
)

// Bar represents one OHLCV record for a symbol at a point in time.
// Bars are immutable once created and unique per (symbol, ts, period).
type Bar struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Period string    `json:"period"` // "1d", "4h"
}

// Key returns a unique key for this bar's series: "symbol:period".
func (b *Bar) Key() string {
	return b.Symbol + ":" + b.Period
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// IndicatorBar is a bar augmented with its computed indicator set.
type IndicatorBar struct {
	Bar
	Ind IndicatorSet `json:"indicators"`
}
