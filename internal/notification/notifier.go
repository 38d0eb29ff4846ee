// Package notification delivers trading alerts (order fills, rejected
// orders, broker degradation) to external channels such as Telegram or
// a plain webhook.
package notification

import (
	"context"
	"fmt"
	"log"

	"tritrend/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// OrderExecuted builds the fill alert for an executed signal.
func OrderExecuted(sig *model.Signal) Alert {
	return Alert{
		Level:  AlertInfo,
		Title:  fmt.Sprintf("order executed %s", sig.Symbol),
		Symbol: sig.Symbol,
		Message: fmt.Sprintf("%s %s %d @ %.2f (%s, strength %.2f)",
			sig.Action, sig.Symbol, sig.Quantity, sig.ExecutedPrice, sig.Strategy, sig.Strength),
	}
}

// OrderRejected builds the alert for a venue-rejected or errored order.
func OrderRejected(sig *model.Signal) Alert {
	return Alert{
		Level:  AlertWarning,
		Title:  fmt.Sprintf("order rejected %s", sig.Symbol),
		Symbol: sig.Symbol,
		Message: fmt.Sprintf("%s %s %d @ %.2f (%s): %s",
			sig.Action, sig.Symbol, sig.Quantity, sig.TargetPrice, sig.Strategy, sig.Error),
	}
}

// PreMarketOrdered builds the alert for a submitted pre-market order.
func PreMarketOrdered(sig *model.Signal) Alert {
	return Alert{
		Level:  AlertInfo,
		Title:  fmt.Sprintf("pre-market order %s", sig.Symbol),
		Symbol: sig.Symbol,
		Message: fmt.Sprintf("%s %s %d @ %.2f (%s, order %s)",
			sig.Action, sig.Symbol, sig.Quantity, sig.OrderPrice, sig.Strategy, sig.OrderID),
	}
}

// BrokerDegraded builds the alert raised when the gateway falls back
// to simulated order placement.
func BrokerDegraded(reason string) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   "broker degraded to simulation",
		Message: reason,
	}
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several backends; delivery failures are
// logged, never propagated.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] delivery failed: %v", err)
		}
	}
	return nil
}
