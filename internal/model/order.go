package model

import "time"

// OrderType selects the brokerage order pricing mode.
type OrderType string

const (
	OrderLimit     OrderType = "limit"
	OrderMarket    OrderType = "market"
	OrderReference OrderType = "reference"
)

// OrderRequest is a single order handed to the brokerage gateway.
type OrderRequest struct {
	Symbol    string    `json:"symbol"`
	Side      Action    `json:"side"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"` // ignored for market orders
	Type      OrderType `json:"order_type"`
	PreMarket bool      `json:"pre_market"` // submit during the pre-open window
}

// OrderResult is the brokerage gateway's response to an order request.
// Failure is a result, not an error: transport-level problems come back
// as a Go error, a rejected order comes back with Success=false.
type OrderResult struct {
	Success   bool      `json:"success"`
	OrderID   string    `json:"order_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Reason    string    `json:"reason,omitempty"` // rejection reason
	Simulated bool      `json:"simulated"`
	PlacedAt  time.Time `json:"placed_at"`
}
