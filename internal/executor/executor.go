package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/detector"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/db"
)

// ErrOrderAlreadyPlaced guards the one-trade-per-session rule at the
// execution layer. The session machine is the primary guard; this is the
// backstop.
var ErrOrderAlreadyPlaced = errors.New("order already placed this session")

// PositionClosed is published when the bracket position is gone.
type PositionClosed struct {
	OrderID string
	Price   float64 // 0 when the exit price is unknown (live broker-side close)
}

// Executor turns entry signals into bracket orders and tracks the resulting
// position until it closes. At most one order per session.
type Executor struct {
	gw         Gateway
	database   *db.Database
	bus        *events.Bus
	instrument string
	units      int
	dryRun     bool

	mu          sync.Mutex
	placed      bool
	openOrderID string
}

func New(gw Gateway, database *db.Database, bus *events.Bus, instrument string, units int, dryRun bool) *Executor {
	return &Executor{
		gw:         gw,
		database:   database,
		bus:        bus,
		instrument: instrument,
		units:      units,
		dryRun:     dryRun,
	}
}

// PlaceBracket submits the market order for a signal. Units are negated for
// shorts. The order is journaled before submission so a crash mid-flight
// leaves a PLACED row to reconcile against.
func (e *Executor) PlaceBracket(ctx context.Context, sig *detector.EntrySignal) (*Fill, error) {
	e.mu.Lock()
	if e.placed {
		e.mu.Unlock()
		return nil, ErrOrderAlreadyPlaced
	}
	e.placed = true
	e.mu.Unlock()

	units := e.units
	if sig.Direction == detector.Short {
		units = -units
	}

	order := db.Order{
		ID:         uuid.NewString(),
		SignalID:   sig.ID,
		Instrument: e.instrument,
		Units:      units,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Status:     db.OrderStatusPlaced,
		DryRun:     e.dryRun,
	}
	if e.database != nil {
		if err := e.database.CreateOrder(ctx, order); err != nil {
			log.Printf("executor: journal order: %v", err)
		}
	}
	e.bus.Publish(events.EventOrderPlaced, order)

	fill, err := e.gw.PlaceBracketOrder(ctx, e.instrument, units, sig.StopLoss, sig.TakeProfit)
	if err != nil {
		if e.database != nil {
			if dbErr := e.database.UpdateOrderStatus(ctx, order.ID, db.OrderStatusFailed); dbErr != nil {
				log.Printf("executor: mark order failed: %v", dbErr)
			}
		}
		return nil, fmt.Errorf("place bracket order: %w", err)
	}

	e.mu.Lock()
	e.openOrderID = order.ID
	e.mu.Unlock()

	if e.database != nil {
		if err := e.database.UpdateOrderFill(ctx, order.ID, fill.OrderID, fill.Price); err != nil {
			log.Printf("executor: journal fill: %v", err)
		}
	}
	order.BrokerOrderID = fill.OrderID
	order.FillPrice = fill.Price
	order.Status = db.OrderStatusFilled
	e.bus.Publish(events.EventOrderFilled, order)

	log.Printf("ORDER FILLED: %s %+d @ %.2f (SL %.2f / TP %.2f) model=%d",
		e.instrument, units, fill.Price, sig.StopLoss, sig.TakeProfit, sig.Model)
	return fill, nil
}

// OnTick advances dry-run bracket simulation. No-op for live trading, where
// the broker manages the bracket.
func (e *Executor) OnTick(ctx context.Context, bid, ask float64) {
	sim, ok := e.gw.(*DryRunGateway)
	if !ok {
		return
	}
	sim.Mark((bid + ask) / 2)

	if !e.hasOpenOrder() {
		return
	}
	if price, closed := sim.CheckExit(bid, ask); closed {
		e.markClosed(ctx, price)
	}
}

// PollPosition checks the broker for a position that closed server-side
// (stop or target hit). Intended to run on the wall-clock tick in live mode.
func (e *Executor) PollPosition(ctx context.Context) {
	if e.dryRun || !e.hasOpenOrder() {
		return
	}
	pos, err := e.gw.OpenPosition(ctx, e.instrument)
	if err != nil {
		log.Printf("executor: poll position: %v", err)
		return
	}
	if pos == nil {
		e.markClosed(ctx, 0)
	}
}

// ForceClose flattens any open position, e.g. on shutdown.
func (e *Executor) ForceClose(ctx context.Context) error {
	if err := e.gw.ClosePosition(ctx, e.instrument); err != nil {
		return fmt.Errorf("force close: %w", err)
	}
	if e.hasOpenOrder() {
		e.markClosed(ctx, 0)
	}
	return nil
}

// HasOpenPosition reports whether a filled order is still live.
func (e *Executor) HasOpenPosition() bool { return e.hasOpenOrder() }

// Reset clears the per-session guard for a new trading day. Only valid when
// no position is open.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openOrderID != "" {
		log.Println("executor: reset requested with open position; keeping guard")
		return
	}
	e.placed = false
}

func (e *Executor) hasOpenOrder() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openOrderID != ""
}

func (e *Executor) markClosed(ctx context.Context, price float64) {
	e.mu.Lock()
	id := e.openOrderID
	e.openOrderID = ""
	e.mu.Unlock()
	if id == "" {
		return
	}

	if e.database != nil {
		if err := e.database.CloseOrder(ctx, id, price); err != nil {
			log.Printf("executor: journal close: %v", err)
		}
	}
	e.bus.Publish(events.EventPositionClosed, PositionClosed{OrderID: id, Price: price})
	log.Printf("POSITION CLOSED: order=%s price=%.2f", id, price)
}
