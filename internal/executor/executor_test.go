package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/detector"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
)

func longSignal() *detector.EntrySignal {
	return &detector.EntrySignal{
		ID:         "sig-1",
		Model:      1,
		Direction:  detector.Long,
		EntryPrice: 2646.80,
		StopLoss:   2643.20,
		TakeProfit: 2654.00,
	}
}

func TestDryRunGatewayFillAndTakeProfit(t *testing.T) {
	gw := NewDryRunGateway(10000)
	gw.Mark(2646.80)

	fill, err := gw.PlaceBracketOrder(context.Background(), "XAU_USD", 3, 2643.20, 2654.00)
	if err != nil {
		t.Fatal(err)
	}
	if fill.Price != 2646.80 {
		t.Errorf("fill price = %.2f, want mark 2646.80", fill.Price)
	}

	pos, err := gw.OpenPosition(context.Background(), "XAU_USD")
	if err != nil || pos == nil {
		t.Fatalf("OpenPosition = %v, %v; want open position", pos, err)
	}
	if pos.LongUnits != 3 {
		t.Errorf("long units = %.0f, want 3", pos.LongUnits)
	}

	// Price short of the target: no exit.
	if _, closed := gw.CheckExit(2650.00, 2650.30); closed {
		t.Fatal("closed before target touched")
	}
	// Bid touches the target.
	price, closed := gw.CheckExit(2654.10, 2654.40)
	if !closed {
		t.Fatal("not closed at target")
	}
	if price != 2654.00 {
		t.Errorf("exit price = %.2f, want target 2654.00", price)
	}

	acct, err := gw.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	wantBalance := 10000 + 3*(2654.00-2646.80)
	if acct.Balance != wantBalance {
		t.Errorf("balance = %.2f, want %.2f", acct.Balance, wantBalance)
	}
	if pos, _ := gw.OpenPosition(context.Background(), "XAU_USD"); pos != nil {
		t.Error("position still open after exit")
	}
}

func TestDryRunGatewayStopLossShort(t *testing.T) {
	gw := NewDryRunGateway(10000)
	gw.Mark(2642.80)

	if _, err := gw.PlaceBracketOrder(context.Background(), "XAU_USD", -3, 2645.50, 2634.70); err != nil {
		t.Fatal(err)
	}

	// Ask touches the short stop.
	price, closed := gw.CheckExit(2645.40, 2645.60)
	if !closed {
		t.Fatal("not closed at stop")
	}
	if price != 2645.50 {
		t.Errorf("exit price = %.2f, want stop 2645.50", price)
	}

	acct, _ := gw.Summary(context.Background())
	wantBalance := 10000 - 3*(2645.50-2642.80)
	if acct.Balance != wantBalance {
		t.Errorf("balance = %.2f, want %.2f", acct.Balance, wantBalance)
	}
}

func TestDryRunGatewayRejectsSecondPosition(t *testing.T) {
	gw := NewDryRunGateway(10000)
	gw.Mark(2650)

	if _, err := gw.PlaceBracketOrder(context.Background(), "XAU_USD", 3, 2640, 2660); err != nil {
		t.Fatal(err)
	}
	if _, err := gw.PlaceBracketOrder(context.Background(), "XAU_USD", 3, 2640, 2660); err == nil {
		t.Fatal("second order accepted while a position is open")
	}
}

func TestExecutorAtMostOnce(t *testing.T) {
	gw := NewDryRunGateway(10000)
	gw.Mark(2646.80)
	bus := events.NewBus()
	exec := New(gw, nil, bus, "XAU_USD", 3, true)

	if _, err := exec.PlaceBracket(context.Background(), longSignal()); err != nil {
		t.Fatal(err)
	}
	_, err := exec.PlaceBracket(context.Background(), longSignal())
	if !errors.Is(err, ErrOrderAlreadyPlaced) {
		t.Fatalf("err = %v, want ErrOrderAlreadyPlaced", err)
	}
}

func TestExecutorPublishesOrderLifecycle(t *testing.T) {
	gw := NewDryRunGateway(10000)
	gw.Mark(2646.80)
	bus := events.NewBus()
	placed, unsubPlaced := bus.Subscribe(events.EventOrderPlaced, 10)
	defer unsubPlaced()
	filled, unsubFilled := bus.Subscribe(events.EventOrderFilled, 10)
	defer unsubFilled()
	closed, unsubClosed := bus.Subscribe(events.EventPositionClosed, 10)
	defer unsubClosed()

	exec := New(gw, nil, bus, "XAU_USD", 3, true)
	if _, err := exec.PlaceBracket(context.Background(), longSignal()); err != nil {
		t.Fatal(err)
	}
	if len(placed) != 1 || len(filled) != 1 {
		t.Fatalf("placed=%d filled=%d events, want 1 each", len(placed), len(filled))
	}
	if !exec.HasOpenPosition() {
		t.Fatal("no open position after fill")
	}

	// Target touch via the tick path closes the position.
	exec.OnTick(context.Background(), 2654.10, 2654.40)
	if len(closed) != 1 {
		t.Fatalf("closed=%d events, want 1", len(closed))
	}
	if exec.HasOpenPosition() {
		t.Fatal("position still open after exit")
	}
}

func TestExecutorShortUnitsNegated(t *testing.T) {
	gw := NewDryRunGateway(10000)
	gw.Mark(2642.80)
	exec := New(gw, nil, events.NewBus(), "XAU_USD", 3, true)

	sig := longSignal()
	sig.Direction = detector.Short
	sig.StopLoss = 2645.50
	sig.TakeProfit = 2634.70
	if _, err := exec.PlaceBracket(context.Background(), sig); err != nil {
		t.Fatal(err)
	}

	pos, err := gw.OpenPosition(context.Background(), "XAU_USD")
	if err != nil || pos == nil {
		t.Fatalf("OpenPosition = %v, %v", pos, err)
	}
	if pos.ShortUnits != -3 {
		t.Errorf("short units = %.0f, want -3", pos.ShortUnits)
	}
}

func TestExecutorResetGuardedByOpenPosition(t *testing.T) {
	gw := NewDryRunGateway(10000)
	gw.Mark(2646.80)
	exec := New(gw, nil, events.NewBus(), "XAU_USD", 3, true)

	if _, err := exec.PlaceBracket(context.Background(), longSignal()); err != nil {
		t.Fatal(err)
	}

	// Reset with a live position keeps the guard.
	exec.Reset()
	if _, err := exec.PlaceBracket(context.Background(), longSignal()); !errors.Is(err, ErrOrderAlreadyPlaced) {
		t.Fatalf("guard dropped while position open: err = %v", err)
	}

	exec.OnTick(context.Background(), 2654.10, 2654.40) // close at target
	exec.Reset()
	gw.Mark(2646.80)
	if _, err := exec.PlaceBracket(context.Background(), longSignal()); err != nil {
		t.Fatalf("place after clean reset: %v", err)
	}
}
