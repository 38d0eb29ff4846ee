package model

import "time"

// PositionSide marks a position as long or short.
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// Position represents a tracked trading position. Positions are read by
// the risk gate and only mutated from confirmed order fills reported by
// the brokerage gateway.
type Position struct {
	Symbol    string       `json:"symbol"`
	Quantity  int64        `json:"quantity"` // always positive; direction is Side
	AvgPrice  float64      `json:"avg_price"`
	Side      PositionSide `json:"side"`
	LastPrice float64      `json:"last_price"`
	EntryTime time.Time    `json:"entry_time"`

	// Extreme favorable price since entry, used by trailing stops:
	// highest close for longs, lowest close for shorts.
	ExtremePrice float64 `json:"extreme_price"`
}

// Notional returns the position's current market value.
func (p *Position) Notional() float64 {
	return float64(p.Quantity) * p.LastPrice
}

// UnrealizedPnL computes the open profit or loss at the last price.
func (p *Position) UnrealizedPnL() float64 {
	diff := p.LastPrice - p.AvgPrice
	if p.Side == SideShort {
		diff = -diff
	}
	return diff * float64(p.Quantity)
}

// Direction returns the Action that would extend this position.
func (p *Position) Direction() Action {
	if p.Side == SideShort {
		return ActionSell
	}
	return ActionBuy
}
