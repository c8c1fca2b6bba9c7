package db

import (
	"context"
	"database/sql"
	"time"
)

// Order status values as journaled.
const (
	OrderStatusPlaced = "PLACED"
	OrderStatusFilled = "FILLED"
	OrderStatusClosed = "CLOSED"
	OrderStatusFailed = "FAILED"
)

// Session is one trading day's journaled state.
type Session struct {
	Day        string // YYYY-MM-DD in the session timezone
	Instrument string
	State      string
	ORHigh     float64
	ORLow      float64
	ORLockedAt time.Time
	TradeTaken bool
	ORWarning  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Signal is a journaled entry signal.
type Signal struct {
	ID         string
	Day        string
	Model      int
	Direction  string
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	DetectedAt time.Time
	CreatedAt  time.Time
}

// Order is a journaled bracket order (live or dry-run).
type Order struct {
	ID            string
	SignalID      string
	BrokerOrderID string
	Instrument    string
	Units         int
	FillPrice     float64
	ClosePrice    float64
	StopLoss      float64
	TakeProfit    float64
	Status        string
	DryRun        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UpsertSession stores the latest state for a trading day.
func (d *Database) UpsertSession(ctx context.Context, s Session) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO sessions (day, instrument, state, or_high, or_low, or_locked_at, trade_taken, or_warning, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(day) DO UPDATE SET
			state = excluded.state,
			or_high = excluded.or_high,
			or_low = excluded.or_low,
			or_locked_at = excluded.or_locked_at,
			trade_taken = excluded.trade_taken,
			or_warning = excluded.or_warning,
			updated_at = CURRENT_TIMESTAMP
	`, s.Day, s.Instrument, s.State, s.ORHigh, s.ORLow, nullTime(s.ORLockedAt), s.TradeTaken, s.ORWarning)
	return err
}

// GetSession returns the journaled session for a day, or nil if absent.
func (d *Database) GetSession(ctx context.Context, day string) (*Session, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT day, instrument, state, COALESCE(or_high, 0), COALESCE(or_low, 0),
		       COALESCE(or_locked_at, '0001-01-01 00:00:00'), trade_taken, COALESCE(or_warning, ''),
		       created_at, updated_at
		FROM sessions WHERE day = ?
	`, day)
	var s Session
	if err := row.Scan(&s.Day, &s.Instrument, &s.State, &s.ORHigh, &s.ORLow, &s.ORLockedAt, &s.TradeTaken, &s.ORWarning, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CreateSignal inserts a new signal row.
func (d *Database) CreateSignal(ctx context.Context, s Signal) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO signals (id, day, model, direction, entry_price, stop_loss, take_profit, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Day, s.Model, s.Direction, s.EntryPrice, s.StopLoss, s.TakeProfit, s.DetectedAt)
	return err
}

// ListSignals returns the most recent signals, newest first.
func (d *Database) ListSignals(ctx context.Context, limit int) ([]Signal, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, day, model, direction, entry_price, stop_loss, take_profit, detected_at, created_at
		FROM signals ORDER BY detected_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Signal
	for rows.Next() {
		var s Signal
		if err := rows.Scan(&s.ID, &s.Day, &s.Model, &s.Direction, &s.EntryPrice, &s.StopLoss, &s.TakeProfit, &s.DetectedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// CreateOrder inserts a new order row.
func (d *Database) CreateOrder(ctx context.Context, o Order) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (
			id, signal_id, broker_order_id, instrument, units, fill_price, stop_loss, take_profit, status, dry_run
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.SignalID, o.BrokerOrderID, o.Instrument, o.Units, o.FillPrice, o.StopLoss, o.TakeProfit, o.Status, o.DryRun)
	return err
}

// UpdateOrderStatus sets the status of an order.
func (d *Database) UpdateOrderStatus(ctx context.Context, id, status string) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	return err
}

// UpdateOrderFill records the broker fill for an order.
func (d *Database) UpdateOrderFill(ctx context.Context, id, brokerOrderID string, fillPrice float64) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, broker_order_id = ?, fill_price = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, OrderStatusFilled, brokerOrderID, fillPrice, id)
	return err
}

// CloseOrder marks an order closed at the given price.
func (d *Database) CloseOrder(ctx context.Context, id string, closePrice float64) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, close_price = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, OrderStatusClosed, closePrice, id)
	return err
}

// ListOrders returns the most recent orders, newest first.
func (d *Database) ListOrders(ctx context.Context, limit int) ([]Order, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, COALESCE(signal_id, ''), COALESCE(broker_order_id, ''), instrument, units,
		       COALESCE(fill_price, 0), COALESCE(close_price, 0), stop_loss, take_profit, status, dry_run,
		       created_at, updated_at
		FROM orders ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.SignalID, &o.BrokerOrderID, &o.Instrument, &o.Units, &o.FillPrice, &o.ClosePrice, &o.StopLoss, &o.TakeProfit, &o.Status, &o.DryRun, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// RecordDataQuality journals a data quality warning.
func (d *Database) RecordDataQuality(ctx context.Context, day, reason string, at time.Time) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO data_quality_events (day, reason, occurred_at) VALUES (?, ?, ?)
	`, day, reason, at)
	return err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
