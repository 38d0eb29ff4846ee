// Package broker provides the order gateway: a REST client for the
// brokerage API with a simulated fallback used when live credentials
// are missing or the session cannot be established.
package broker

import (
	"context"
	"errors"

	"tritrend/internal/model"
)

// ErrNotConnected is returned when a live call is made before a
// session has been established.
var ErrNotConnected = errors.New("broker: session not established")

// Gateway is the order and account surface the engine trades through.
// PlaceOrder reports business rejections in the OrderResult, not as an
// error; errors are reserved for transport failures.
type Gateway interface {
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error)
	RealTimePrice(ctx context.Context, symbol string) (float64, error)
	Positions(ctx context.Context) ([]model.Position, error)
	AccountBalance(ctx context.Context) (float64, error)
	// Simulated reports whether this gateway fabricates fills locally.
	Simulated() bool
}

// Connect builds the live client from cfg and verifies the session.
// Any failure degrades to the simulated gateway so the pipeline keeps
// producing auditable decisions without touching a real account.
func Connect(ctx context.Context, cfg Config) Gateway {
	if cfg.PersonalID == "" || cfg.Password == "" || cfg.CertPath == "" {
		cfg.log().Warn("broker credentials missing, using simulated gateway")
		return NewSimGateway(cfg.Logger)
	}
	cl := NewClient(cfg)
	if err := cl.Login(ctx); err != nil {
		cfg.log().Error("broker login failed, using simulated gateway", "error", err)
		return NewSimGateway(cfg.Logger)
	}
	return cl
}
