package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// DryRunGateway simulates fills in memory. Orders fill at the latest marked
// mid price and the bracket closes when a subsequent mark touches stop or
// target. No network calls are made.
type DryRunGateway struct {
	mu      sync.Mutex
	balance float64
	mark    float64

	instrument string
	units      float64 // signed; 0 when flat
	entryPrice float64
	stopLoss   float64
	takeProfit float64
}

func NewDryRunGateway(initialBalance float64) *DryRunGateway {
	return &DryRunGateway{balance: initialBalance}
}

// Mark records the latest mid price. Fills and bracket exits use this value.
func (g *DryRunGateway) Mark(price float64) {
	g.mu.Lock()
	g.mark = price
	g.mu.Unlock()
}

func (g *DryRunGateway) PlaceBracketOrder(ctx context.Context, instrument string, units int, stopLoss, takeProfit float64) (*Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.units != 0 {
		return nil, errors.New("dry-run: position already open")
	}
	if g.mark == 0 {
		return nil, errors.New("dry-run: no mark price yet")
	}
	if units == 0 {
		return nil, errors.New("dry-run: zero units")
	}

	g.instrument = instrument
	g.units = float64(units)
	g.entryPrice = g.mark
	g.stopLoss = stopLoss
	g.takeProfit = takeProfit

	id := "sim-" + uuid.NewString()
	log.Printf("DRY-RUN fill: %s %+d @ %.2f (SL %.2f / TP %.2f)", instrument, units, g.mark, stopLoss, takeProfit)
	return &Fill{OrderID: id, Price: g.mark}, nil
}

func (g *DryRunGateway) OpenPosition(ctx context.Context, instrument string) (*PositionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.units == 0 || g.instrument != instrument {
		return nil, nil
	}
	ps := &PositionState{UnrealizedPL: (g.mark - g.entryPrice) * g.units}
	if g.units > 0 {
		ps.LongUnits = g.units
	} else {
		ps.ShortUnits = g.units
	}
	return ps, nil
}

func (g *DryRunGateway) ClosePosition(ctx context.Context, instrument string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.units == 0 || g.instrument != instrument {
		return nil
	}
	g.settle(g.mark)
	return nil
}

func (g *DryRunGateway) Summary(ctx context.Context) (*AccountState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := &AccountState{Balance: g.balance}
	if g.units != 0 {
		s.UnrealizedPL = (g.mark - g.entryPrice) * g.units
	}
	return s, nil
}

// CheckExit closes the simulated position when price has touched the stop or
// target. It returns the exit price and true when a close happened.
func (g *DryRunGateway) CheckExit(bid, ask float64) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.units == 0 {
		return 0, false
	}

	if g.units > 0 {
		// Long exits on the bid.
		if bid <= g.stopLoss {
			return g.settle(g.stopLoss), true
		}
		if bid >= g.takeProfit {
			return g.settle(g.takeProfit), true
		}
	} else {
		// Short exits on the ask.
		if ask >= g.stopLoss {
			return g.settle(g.stopLoss), true
		}
		if ask <= g.takeProfit {
			return g.settle(g.takeProfit), true
		}
	}
	return 0, false
}

// settle realizes PnL at price and flattens. Caller holds the lock.
func (g *DryRunGateway) settle(price float64) float64 {
	pnl := (price - g.entryPrice) * g.units
	g.balance += pnl
	log.Printf("DRY-RUN close: %s %s @ %.2f (PnL %+.2f, balance %.2f)",
		g.instrument, fmt.Sprintf("%+.0f", g.units), price, pnl, g.balance)
	g.units = 0
	g.entryPrice = 0
	g.stopLoss = 0
	g.takeProfit = 0
	return price
}
