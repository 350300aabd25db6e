package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/pkg/id"
)

// DryRun fills every order at the order's price and keeps positions in
// memory. It never talks to an exchange.
type DryRun struct {
	mu        sync.Mutex
	capital   float64
	realized  float64
	positions map[string]*Position
	now       func() time.Time
}

func NewDryRun(capital float64) *DryRun {
	return &DryRun{
		capital:   capital,
		positions: make(map[string]*Position),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Equity is starting capital plus realized pnl.
func (d *DryRun) Equity() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capital + d.realized
}

func (d *DryRun) Execute(ctx context.Context, o Order) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	if o.Price <= 0 {
		return Fill{}, fmt.Errorf("%s: %w", o.Symbol, ErrNoPrice)
	}
	if o.Fraction <= 0 {
		return Fill{}, fmt.Errorf("%s: fraction must be positive, got %v", o.Symbol, o.Fraction)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	at := o.Time
	if at.IsZero() {
		at = d.now()
	}
	equity := d.capital + d.realized
	qty := equity * o.Fraction / o.Price

	fill := Fill{
		OrderID: id.New(),
		Symbol:  o.Symbol,
		Side:    o.Side,
		Price:   o.Price,
		Time:    at,
	}

	switch o.Side {
	case market.Buy:
		p, ok := d.positions[o.Symbol]
		if !ok {
			p = &Position{
				ID:       fill.OrderID,
				Symbol:   o.Symbol,
				Side:     market.Buy,
				OpenedAt: at,
			}
			d.positions[o.Symbol] = p
		}
		total := p.Quantity + qty
		p.EntryPrice = (p.EntryPrice*p.Quantity + o.Price*qty) / total
		p.Quantity = total
		p.UpdatedAt = at
		fill.Quantity = qty

	case market.Sell:
		p, ok := d.positions[o.Symbol]
		if !ok {
			return Fill{}, fmt.Errorf("%s: %w", o.Symbol, ErrNoPosition)
		}
		if qty > p.Quantity {
			qty = p.Quantity
		}
		pnl := qty * (o.Price - p.EntryPrice)
		p.Quantity -= qty
		p.RealizedPnL += pnl
		p.UpdatedAt = at
		d.realized += pnl
		fill.Quantity = qty
		fill.RealizedPnL = pnl
		if p.Quantity <= 1e-12 {
			delete(d.positions, o.Symbol)
		}

	default:
		return Fill{}, fmt.Errorf("%s: unknown side %q", o.Symbol, o.Side)
	}
	return fill, nil
}

// Mark updates unrealized pnl for symbol at price.
func (d *DryRun) Mark(symbol string, price float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.positions[symbol]; ok {
		p.UnrealizedPnL = p.Quantity * (price - p.EntryPrice)
	}
}

// OpenPositions returns a snapshot sorted by symbol.
func (d *DryRun) OpenPositions(ctx context.Context) ([]Position, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Position, 0, len(d.positions))
	for _, p := range d.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
