package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/swarm/market"
)

var (
	ErrNoPosition = errors.New("no open position")
	ErrNoPrice    = errors.New("no price")
)

// Order is a sized trade instruction. Fraction is a share of account equity.
type Order struct {
	Symbol     string
	Side       market.Side
	Fraction   float64
	Price      float64
	StrategyID string
	Time       time.Time
}

type Fill struct {
	OrderID     string
	Symbol      string
	Side        market.Side
	Quantity    float64
	Price       float64
	RealizedPnL float64
	Time        time.Time
}

type Position struct {
	ID            string
	Symbol        string
	Side          market.Side
	Quantity      float64
	EntryPrice    float64
	UnrealizedPnL float64
	RealizedPnL   float64
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// Notional is the position's value at entry.
func (p Position) Notional() float64 {
	return p.Quantity * p.EntryPrice
}

// Executor is the execution collaborator the decision loop hands trades to.
type Executor interface {
	Execute(ctx context.Context, o Order) (Fill, error)
	OpenPositions(ctx context.Context) ([]Position, error)
}
