package trader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/candle"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/detector"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/executor"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/market"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/monitor"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/session"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/db"
)

// Config holds everything the trading loop needs beyond its collaborators.
type Config struct {
	Instrument  string
	Session     session.Config
	Detector    detector.Params
	BufferSizes map[candle.Timeframe]int

	// ClockInterval drives session updates when no ticks arrive. Default 1s.
	ClockInterval time.Duration
}

// Snapshot is a read-only view of the live session for the API.
type Snapshot struct {
	Day        string        `json:"day"`
	State      session.State `json:"state"`
	ORHigh     float64       `json:"or_high"`
	ORLow      float64       `json:"or_low"`
	ORLockedAt *time.Time    `json:"or_locked_at,omitempty"`
	TradeTaken bool          `json:"trade_taken"`
	LastPrice  float64       `json:"last_price"`
	LastTickAt *time.Time    `json:"last_tick_at,omitempty"`
}

// Trader runs the tick-to-order pipeline on a single goroutine. All candle,
// session and detector state is confined to the Run loop; Snapshot reads go
// through a mutex-guarded copy.
type Trader struct {
	cfg      Config
	bus      *events.Bus
	database *db.Database
	exec     *executor.Executor
	metrics  *monitor.SystemMetrics

	agg     *candle.Aggregator
	machine *session.Machine
	det     *detector.Detector

	mu   sync.RWMutex
	snap Snapshot
}

func New(cfg Config, bus *events.Bus, database *db.Database, exec *executor.Executor, metrics *monitor.SystemMetrics) *Trader {
	if cfg.ClockInterval <= 0 {
		cfg.ClockInterval = time.Second
	}
	if cfg.BufferSizes == nil {
		cfg.BufferSizes = map[candle.Timeframe]int{candle.M1: 500, candle.M5: 100}
	}
	return &Trader{
		cfg:      cfg,
		bus:      bus,
		database: database,
		exec:     exec,
		metrics:  metrics,
		agg:      candle.NewAggregator(cfg.Session.Location, cfg.BufferSizes),
		machine:  session.NewMachine(cfg.Session, bus),
	}
}

// Snapshot returns the latest session view.
func (t *Trader) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// ForceClose flattens any open position. Safe to call from other goroutines.
func (t *Trader) ForceClose(ctx context.Context) error {
	return t.exec.ForceClose(ctx)
}

// Run consumes ticks until ctx is canceled. It returns a non-nil error only
// on a pipeline contract violation, which the caller treats as fatal.
func (t *Trader) Run(ctx context.Context) error {
	ticks, unsub := t.bus.Subscribe(events.EventTick, 200)
	defer unsub()

	clock := time.NewTicker(t.cfg.ClockInterval)
	defer clock.Stop()

	log.Printf("trader: running (instrument=%s, session %02d:%02d-%02d:%02d %s)",
		t.cfg.Instrument,
		t.cfg.Session.Open.Hour, t.cfg.Session.Open.Minute,
		t.cfg.Session.Close.Hour, t.cfg.Session.Close.Minute,
		t.cfg.Session.Location)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ticks:
			if !ok {
				return nil
			}
			tick, isTick := msg.(market.Tick)
			if !isTick {
				continue
			}
			if err := t.onTick(ctx, tick); err != nil {
				return err
			}
		case now := <-clock.C:
			if err := t.onClock(ctx, now); err != nil {
				return err
			}
			t.exec.PollPosition(ctx)
		}
	}
}

func (t *Trader) onTick(ctx context.Context, tick market.Tick) error {
	var timer *monitor.Timer
	if t.metrics != nil {
		t.metrics.IncrementTicks()
		timer = monitor.NewTimer(t.metrics.TickLatency)
		defer timer.Stop()
	}

	// Dry-run bracket simulation keys off every tick.
	t.exec.OnTick(ctx, tick.Bid, tick.Ask)

	sealed, err := t.agg.OnTick(tick.Time, tick.Bid, tick.Ask)
	if err != nil {
		var stale *candle.StaleTickError
		if errors.As(err, &stale) {
			if t.metrics != nil {
				t.metrics.IncrementStaleTicks()
			}
			log.Printf("trader: dropped %v", stale)
			return nil
		}
		return fmt.Errorf("aggregate tick: %w", err)
	}

	if err := t.advanceSession(ctx, tick.Time); err != nil {
		return err
	}

	for _, c := range sealed {
		if t.metrics != nil {
			t.metrics.IncrementCandles()
		}
		t.bus.Publish(events.EventCandleSealed, c)
		if c.Timeframe != candle.M1 {
			continue
		}
		if err := t.evaluate(ctx, c); err != nil {
			return err
		}
	}

	t.updateSnapshot(tick)
	return nil
}

// onClock keeps the session machine moving when the feed is quiet, e.g. the
// opening-range lock must fire even without a fresh tick.
func (t *Trader) onClock(ctx context.Context, now time.Time) error {
	return t.advanceSession(ctx, now)
}

func (t *Trader) advanceSession(ctx context.Context, now time.Time) error {
	before := t.machine.State()
	newDay := t.machine.Update(now, t.agg.Buffer(t.cfg.Session.ORTimeframe))
	if newDay {
		t.agg.Reset()
		t.det = nil
		t.exec.Reset()
	}

	// A fresh detector is built once per session, at the opening-range lock.
	if t.det == nil && t.machine.CanEvaluate() {
		or, _ := t.machine.OpeningRange()
		t.det = detector.New(or, t.cfg.Detector, t.bus, t.cfg.Session.Location)
		log.Printf("trader: detector armed for range [%.2f, %.2f]", or.Low, or.High)
	}

	if after := t.machine.State(); after != before || newDay {
		t.journalSession(ctx)
	}
	return nil
}

func (t *Trader) evaluate(ctx context.Context, c candle.Candle) error {
	if !t.machine.CanEvaluate() || t.det == nil {
		return nil
	}

	sig, err := t.det.Evaluate(c, t.machine.State())
	if err != nil {
		// Contract violations mean the loop's invariants are broken;
		// propagate so the process dies loudly instead of trading on.
		return fmt.Errorf("detector contract: %w", err)
	}
	if sig == nil {
		return nil
	}
	return t.handleSignal(ctx, sig, c.CloseTime)
}

func (t *Trader) handleSignal(ctx context.Context, sig *detector.EntrySignal, now time.Time) error {
	// Close the session before touching the broker so a slow or failing
	// order can never lead to a second evaluation.
	t.machine.MarkTradeTaken(now)

	if t.metrics != nil {
		t.metrics.IncrementSignals()
	}
	log.Printf("ENTRY SIGNAL model=%d %s entry=%.2f sl=%.2f tp=%.2f",
		sig.Model, sig.Direction, sig.EntryPrice, sig.StopLoss, sig.TakeProfit)
	t.bus.Publish(events.EventEntrySignal, *sig)

	if t.database != nil {
		rec := db.Signal{
			ID:         sig.ID,
			Day:        t.machine.Day().Format("2006-01-02"),
			Model:      sig.Model,
			Direction:  string(sig.Direction),
			EntryPrice: sig.EntryPrice,
			StopLoss:   sig.StopLoss,
			TakeProfit: sig.TakeProfit,
			DetectedAt: sig.DetectedAt,
		}
		if err := t.database.CreateSignal(ctx, rec); err != nil {
			log.Printf("trader: journal signal: %v", err)
		}
	}

	var orderTimer *monitor.Timer
	if t.metrics != nil {
		orderTimer = monitor.NewTimer(t.metrics.OrderLatency)
	}
	_, err := t.exec.PlaceBracket(ctx, sig)
	if orderTimer != nil {
		orderTimer.Stop()
	}
	if err != nil {
		if errors.Is(err, executor.ErrOrderAlreadyPlaced) {
			return fmt.Errorf("executor contract: %w", err)
		}
		// Broker rejection is an operational error, not a contract one.
		// The session stays DONE; no retry this day.
		if t.metrics != nil {
			t.metrics.IncrementErrors()
		}
		log.Printf("trader: order failed, standing down for the day: %v", err)
		return nil
	}
	if t.metrics != nil {
		t.metrics.IncrementOrders()
	}
	t.journalSession(ctx)
	return nil
}

func (t *Trader) journalSession(ctx context.Context) {
	if t.database == nil || t.machine.Day().IsZero() {
		return
	}
	rec := db.Session{
		Day:        t.machine.Day().Format("2006-01-02"),
		Instrument: t.cfg.Instrument,
		State:      string(t.machine.State()),
		TradeTaken: t.machine.TradeTaken(),
		ORWarning:  t.machine.ORWarning(),
	}
	if or, ok := t.machine.OpeningRange(); ok {
		rec.ORHigh = or.High
		rec.ORLow = or.Low
		rec.ORLockedAt = or.LockedAt
	}
	if err := t.database.UpsertSession(ctx, rec); err != nil {
		log.Printf("trader: journal session: %v", err)
	}
}

func (t *Trader) updateSnapshot(tick market.Tick) {
	snap := Snapshot{
		State:      t.machine.State(),
		TradeTaken: t.machine.TradeTaken(),
		LastPrice:  tick.Mid(),
	}
	if !t.machine.Day().IsZero() {
		snap.Day = t.machine.Day().Format("2006-01-02")
	}
	if or, ok := t.machine.OpeningRange(); ok {
		snap.ORHigh = or.High
		snap.ORLow = or.Low
		lockedAt := or.LockedAt
		snap.ORLockedAt = &lockedAt
	}
	if !tick.Time.IsZero() {
		at := tick.Time
		snap.LastTickAt = &at
	}

	t.mu.Lock()
	t.snap = snap
	t.mu.Unlock()
}
