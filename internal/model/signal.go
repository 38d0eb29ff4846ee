package model

import (
	"encoding/json"
	"time"
)

// Action represents a trading direction.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// SignalStatus is the lifecycle state of a Signal. All states other
// than Pending and Executing are terminal.
type SignalStatus string

const (
	StatusPending         SignalStatus = "pending"
	StatusBlocked         SignalStatus = "blocked"
	StatusPreMarketOrder  SignalStatus = "pre_market_ordered"
	StatusPreMarketFailed SignalStatus = "pre_market_failed"
	StatusPreMarketError  SignalStatus = "pre_market_error"
	StatusExecuting       SignalStatus = "executing"
	StatusExecuted        SignalStatus = "executed"
	StatusFailed          SignalStatus = "failed"
	StatusError           SignalStatus = "error"
)

// Terminal reports whether a status is final. No transition leaves a
// terminal status, and a terminal signal never re-enters pending.
func (s SignalStatus) Terminal() bool {
	switch s {
	case StatusBlocked, StatusPreMarketOrder, StatusPreMarketFailed,
		StatusPreMarketError, StatusExecuted, StatusFailed, StatusError:
		return true
	}
	return false
}

// Signal is a strategy's scored recommendation to buy or sell a symbol.
// A signal is created by exactly one strategy evaluator; after that it
// is owned by the aggregator/scheduler and never mutated concurrently.
type Signal struct {
	Symbol      string       `json:"symbol"`
	Strategy    string       `json:"strategy"`
	Action      Action       `json:"action"`
	Strength    float64      `json:"strength"` // [0,1]
	TargetPrice float64      `json:"target_price"`
	Quantity    int64        `json:"quantity"`
	Reason      string       `json:"reason"`
	BarTS       time.Time    `json:"bar_ts"` // bar that triggered the signal
	CreatedAt   time.Time    `json:"created_at"`
	Status      SignalStatus `json:"status"`

	// Filled in as the signal moves through its lifecycle.
	CurrentPrice  float64   `json:"current_price,omitempty"`
	OrderID       string    `json:"order_id,omitempty"`
	OrderPrice    float64   `json:"order_price,omitempty"`
	OrderTime     time.Time `json:"order_time,omitempty"`
	ExecutedPrice float64   `json:"executed_price,omitempty"`
	ExecutedAt    time.Time `json:"executed_at,omitempty"`
	BlockReason   string    `json:"block_reason,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Notional returns quantity × target price, used by the risk gate.
func (s *Signal) Notional() float64 {
	return float64(s.Quantity) * s.TargetPrice
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	out, _ := json.Marshal(s)
	return out
}
