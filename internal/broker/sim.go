package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tritrend/internal/model"
)

// SimGateway fabricates order acknowledgements locally. It stands in
// for the live client when credentials are absent or login fails, so
// every decision downstream still gets an order id and a price.
type SimGateway struct {
	log *slog.Logger
	seq atomic.Int64

	mu      sync.RWMutex
	prices  map[string]float64
	balance float64
}

// NewSimGateway returns a simulated gateway with a default paper
// balance.
func NewSimGateway(log *slog.Logger) *SimGateway {
	if log == nil {
		log = slog.Default()
	}
	return &SimGateway{
		log:     log,
		prices:  make(map[string]float64),
		balance: 1000000,
	}
}

func (g *SimGateway) Simulated() bool { return true }

// SetPrice seeds the quote used for symbol; tests and the data feed
// drive it.
func (g *SimGateway) SetPrice(symbol string, price float64) {
	g.mu.Lock()
	g.prices[symbol] = price
	g.mu.Unlock()
}

// PlaceOrder acknowledges every well-formed order with a SIM_ id.
func (g *SimGateway) PlaceOrder(_ context.Context, req model.OrderRequest) (model.OrderResult, error) {
	if req.Quantity <= 0 {
		return model.OrderResult{
			Reason:    "quantity must be positive",
			Simulated: true,
			PlacedAt:  time.Now(),
		}, nil
	}
	id := fmt.Sprintf("SIM_%d_%d", time.Now().Unix(), g.seq.Add(1))
	g.log.Info("simulated order accepted",
		"order_id", id, "symbol", req.Symbol, "side", req.Side,
		"qty", req.Quantity, "price", req.Price, "pre_market", req.PreMarket)
	return model.OrderResult{
		Success:   true,
		OrderID:   id,
		Message:   "simulated fill",
		Simulated: true,
		PlacedAt:  time.Now(),
	}, nil
}

// RealTimePrice returns the seeded quote for symbol.
func (g *SimGateway) RealTimePrice(_ context.Context, symbol string) (float64, error) {
	g.mu.RLock()
	p, ok := g.prices[symbol]
	g.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("no quote for %s", symbol)
	}
	return p, nil
}

// Positions reports an empty book; simulated fills are tracked by the
// portfolio, not the venue.
func (g *SimGateway) Positions(context.Context) ([]model.Position, error) {
	return nil, nil
}

// AccountBalance returns the paper balance.
func (g *SimGateway) AccountBalance(context.Context) (float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.balance, nil
}
