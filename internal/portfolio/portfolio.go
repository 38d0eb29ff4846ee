// Package portfolio tracks open positions and gates candidate signals
// against the configured risk limits.
//
// The position book is only mutated from confirmed order fills reported
// by the brokerage gateway; the risk gate reads it but never writes.
package portfolio

import (
	"sync"
	"time"

	"tritrend/internal/model"
)

// Fill is a confirmed execution reported by the brokerage gateway.
type Fill struct {
	Symbol   string       `json:"symbol"`
	Action   model.Action `json:"action"`
	Quantity int64        `json:"quantity"`
	Price    float64      `json:"price"`
	FilledAt time.Time    `json:"filled_at"`
}

// Portfolio is the in-memory position book.
type Portfolio struct {
	mu        sync.RWMutex
	positions map[string]*model.Position
}

// New creates an empty portfolio.
func New() *Portfolio {
	return &Portfolio{positions: make(map[string]*model.Position)}
}

// ApplyFill updates the book from a confirmed fill. A fill against an
// opposite-direction position reduces it and, past zero, flips it.
func (pf *Portfolio) ApplyFill(fill Fill) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	side := model.SideLong
	if fill.Action == model.ActionSell {
		side = model.SideShort
	}

	pos, ok := pf.positions[fill.Symbol]
	if !ok {
		pf.positions[fill.Symbol] = &model.Position{
			Symbol:       fill.Symbol,
			Quantity:     fill.Quantity,
			AvgPrice:     fill.Price,
			Side:         side,
			LastPrice:    fill.Price,
			EntryTime:    fill.FilledAt,
			ExtremePrice: fill.Price,
		}
		return
	}

	if pos.Side == side {
		// Extending: weighted average entry.
		total := pos.AvgPrice*float64(pos.Quantity) + fill.Price*float64(fill.Quantity)
		pos.Quantity += fill.Quantity
		pos.AvgPrice = total / float64(pos.Quantity)
		pos.LastPrice = fill.Price
		return
	}

	// Reducing, closing, or flipping.
	switch {
	case fill.Quantity < pos.Quantity:
		pos.Quantity -= fill.Quantity
		pos.LastPrice = fill.Price
	case fill.Quantity == pos.Quantity:
		delete(pf.positions, fill.Symbol)
	default:
		pf.positions[fill.Symbol] = &model.Position{
			Symbol:       fill.Symbol,
			Quantity:     fill.Quantity - pos.Quantity,
			AvgPrice:     fill.Price,
			Side:         side,
			LastPrice:    fill.Price,
			EntryTime:    fill.FilledAt,
			ExtremePrice: fill.Price,
		}
	}
}

// UpdatePrice refreshes the last and extreme favorable prices for a
// symbol's position, feeding the trailing-stop exits.
func (pf *Portfolio) UpdatePrice(symbol string, price float64) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pos, ok := pf.positions[symbol]
	if !ok {
		return
	}
	pos.LastPrice = price
	if pos.Side == model.SideLong && price > pos.ExtremePrice {
		pos.ExtremePrice = price
	}
	if pos.Side == model.SideShort && (pos.ExtremePrice == 0 || price < pos.ExtremePrice) {
		pos.ExtremePrice = price
	}
}

// Replace swaps the whole book, used when syncing from the brokerage
// account snapshot.
func (pf *Portfolio) Replace(positions []model.Position) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.positions = make(map[string]*model.Position, len(positions))
	for i := range positions {
		p := positions[i]
		if p.ExtremePrice == 0 {
			p.ExtremePrice = p.AvgPrice
		}
		pf.positions[p.Symbol] = &p
	}
}

// Get returns the position for a symbol, if any.
func (pf *Portfolio) Get(symbol string) (model.Position, bool) {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	pos, ok := pf.positions[symbol]
	if !ok {
		return model.Position{}, false
	}
	return *pos, true
}

// Positions returns a snapshot of all open positions.
func (pf *Portfolio) Positions() []model.Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	out := make([]model.Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		out = append(out, *p)
	}
	return out
}

// Count returns the number of open positions.
func (pf *Portfolio) Count() int {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return len(pf.positions)
}

// CommittedNotional returns the capital tied up in open positions.
func (pf *Portfolio) CommittedNotional() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var total float64
	for _, p := range pf.positions {
		total += p.Notional()
	}
	return total
}

// TotalUnrealizedPnL returns open profit and loss across the book.
func (pf *Portfolio) TotalUnrealizedPnL() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var total float64
	for _, p := range pf.positions {
		total += p.UnrealizedPnL()
	}
	return total
}
