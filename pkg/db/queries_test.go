package db

import (
	"context"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return d
}

func TestMigrationsAreIdempotent(t *testing.T) {
	d := newTestDB(t)
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
}

func TestSessionUpsert(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	sess := Session{
		Day:        "2026-01-05",
		Instrument: "XAU_USD",
		State:      "OR_BUILDING",
	}
	if err := d.UpsertSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	sess.State = "SEARCHING"
	sess.ORHigh = 2645.50
	sess.ORLow = 2643.20
	sess.ORLockedAt = time.Date(2026, 1, 5, 14, 35, 0, 0, time.UTC)
	if err := d.UpsertSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, err := d.GetSession(ctx, "2026-01-05")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("session not found")
	}
	if got.State != "SEARCHING" {
		t.Errorf("state = %s, want SEARCHING", got.State)
	}
	if got.ORHigh != 2645.50 || got.ORLow != 2643.20 {
		t.Errorf("range = [%.2f, %.2f], want [2643.20, 2645.50]", got.ORLow, got.ORHigh)
	}

	missing, err := d.GetSession(ctx, "2026-01-06")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("got %+v for a missing day, want nil", missing)
	}
}

func TestSignalJournal(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	if err := d.UpsertSession(ctx, Session{Day: "2026-01-05", Instrument: "XAU_USD", State: "SEARCHING"}); err != nil {
		t.Fatal(err)
	}

	sig := Signal{
		ID:         "sig-1",
		Day:        "2026-01-05",
		Model:      1,
		Direction:  "LONG",
		EntryPrice: 2646.80,
		StopLoss:   2643.20,
		TakeProfit: 2654.00,
		DetectedAt: time.Date(2026, 1, 5, 15, 12, 0, 0, time.UTC),
	}
	if err := d.CreateSignal(ctx, sig); err != nil {
		t.Fatal(err)
	}

	signals, err := d.ListSignals(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	got := signals[0]
	if got.ID != "sig-1" || got.Model != 1 || got.Direction != "LONG" {
		t.Errorf("signal = %+v", got)
	}
	if got.EntryPrice != 2646.80 || got.StopLoss != 2643.20 || got.TakeProfit != 2654.00 {
		t.Errorf("prices = %.2f/%.2f/%.2f", got.EntryPrice, got.StopLoss, got.TakeProfit)
	}
}

func TestOrderLifecycle(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	order := Order{
		ID:         "ord-1",
		SignalID:   "sig-1",
		Instrument: "XAU_USD",
		Units:      3,
		StopLoss:   2643.20,
		TakeProfit: 2654.00,
		Status:     OrderStatusPlaced,
		DryRun:     true,
	}
	if err := d.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}

	if err := d.UpdateOrderFill(ctx, "ord-1", "broker-42", 2646.85); err != nil {
		t.Fatal(err)
	}
	if err := d.CloseOrder(ctx, "ord-1", 2654.00); err != nil {
		t.Fatal(err)
	}

	orders, err := d.ListOrders(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	got := orders[0]
	if got.Status != OrderStatusClosed {
		t.Errorf("status = %s, want %s", got.Status, OrderStatusClosed)
	}
	if got.BrokerOrderID != "broker-42" || got.FillPrice != 2646.85 || got.ClosePrice != 2654.00 {
		t.Errorf("fill = %+v", got)
	}
	if !got.DryRun {
		t.Error("dry run flag lost")
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	if err := d.CreateOrder(ctx, Order{
		ID: "ord-1", Instrument: "XAU_USD", Units: 3,
		StopLoss: 1, TakeProfit: 2, Status: OrderStatusPlaced,
	}); err != nil {
		t.Fatal(err)
	}
	if err := d.UpdateOrderStatus(ctx, "ord-1", OrderStatusFailed); err != nil {
		t.Fatal(err)
	}
	orders, err := d.ListOrders(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if orders[0].Status != OrderStatusFailed {
		t.Errorf("status = %s, want %s", orders[0].Status, OrderStatusFailed)
	}
}

func TestRecordDataQuality(t *testing.T) {
	d := newTestDB(t)
	if err := d.RecordDataQuality(context.Background(), "2026-01-05", "partial opening range", time.Now()); err != nil {
		t.Fatal(err)
	}
}
