package trader

import (
	"context"
	"testing"
	"time"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/candle"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/detector"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/executor"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/market"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/session"
)

func tickAt(h, m, s int, price float64) market.Tick {
	return market.Tick{
		Instrument: "XAU_USD",
		Time:       time.Date(2026, 1, 5, h, m, s, 0, time.UTC),
		Bid:        price,
		Ask:        price,
	}
}

func newTestTrader(t *testing.T) (*Trader, *executor.DryRunGateway, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	gw := executor.NewDryRunGateway(10000)
	exec := executor.New(gw, nil, bus, "XAU_USD", 3, true)

	core := New(Config{
		Instrument: "XAU_USD",
		Session: session.Config{
			Location:    time.UTC,
			Open:        session.TimeOfDay{Hour: 9, Minute: 30},
			Close:       session.TimeOfDay{Hour: 16, Minute: 0},
			ORDuration:  5 * time.Minute,
			ORTimeframe: candle.M5,
		},
		Detector: detector.Params{
			RetestPct:        0.05,
			FVGLookback:      3,
			RiskReward:       2,
			MinBodyRatio:     0.30,
			MaxInvalidations: 2,
		},
	}, bus, nil, exec, nil)
	return core, gw, bus
}

// drive pushes scripted ticks straight through the pipeline.
func drive(t *testing.T, core *Trader, ticks []market.Tick) {
	t.Helper()
	ctx := context.Background()
	for _, tk := range ticks {
		if err := core.onTick(ctx, tk); err != nil {
			t.Fatalf("onTick(%s %.2f): %v", tk.Time.Format("15:04:05"), tk.Mid(), err)
		}
	}
}

// Opening-range window: four ticks per minute shaping exact OHLC, building an
// OR of [2643.20, 2645.50].
func openingRangeTicks() []market.Tick {
	ticks := []market.Tick{
		tickAt(9, 30, 0, 2644.00),
		tickAt(9, 30, 15, 2645.50),
		tickAt(9, 30, 30, 2643.20),
		tickAt(9, 30, 45, 2644.50),
	}
	for m := 31; m <= 34; m++ {
		ticks = append(ticks,
			tickAt(9, m, 0, 2644.50),
			tickAt(9, m, 45, 2644.60),
		)
	}
	return ticks
}

func minuteTicks(m int, o, h, l, c float64) []market.Tick {
	return []market.Tick{
		tickAt(9, m, 0, o),
		tickAt(9, m, 15, h),
		tickAt(9, m, 30, l),
		tickAt(9, m, 45, c),
	}
}

func TestTraderFullSessionLongTrade(t *testing.T) {
	core, gw, bus := newTestTrader(t)
	signals, unsubSignals := bus.Subscribe(events.EventEntrySignal, 10)
	defer unsubSignals()

	// Before the open nothing happens.
	drive(t, core, []market.Tick{tickAt(9, 0, 0, 2644.00)})
	if got := core.Snapshot().State; got != session.StatePreOR {
		t.Fatalf("state = %s, want PRE_OR", got)
	}

	drive(t, core, openingRangeTicks())

	// First tick past 09:35 seals the OR candle and locks the range.
	drive(t, core, []market.Tick{tickAt(9, 35, 0, 2645.00)})
	snap := core.Snapshot()
	if snap.State != session.StateSearching {
		t.Fatalf("state = %s, want SEARCHING after lock", snap.State)
	}
	if snap.ORHigh != 2645.50 || snap.ORLow != 2643.20 {
		t.Fatalf("range = [%.2f, %.2f], want [2643.20, 2645.50]", snap.ORLow, snap.ORHigh)
	}

	// Breakout, retest, displacement on consecutive minutes.
	drive(t, core, minuteTicks(35, 2645.00, 2646.00, 2644.90, 2645.90))
	drive(t, core, minuteTicks(36, 2645.90, 2645.95, 2645.45, 2645.70))
	drive(t, core, minuteTicks(37, 2646.00, 2646.90, 2645.90, 2646.80))

	// The tick sealing the displacement candle triggers the one trade.
	drive(t, core, []market.Tick{tickAt(9, 38, 0, 2646.80)})

	snap = core.Snapshot()
	if snap.State != session.StateDone {
		t.Fatalf("state = %s, want DONE after trade", snap.State)
	}
	if !snap.TradeTaken {
		t.Fatal("trade not marked taken")
	}
	if len(signals) != 1 {
		t.Fatalf("%d entry signals published, want 1", len(signals))
	}
	sig, _ := (<-signals).(detector.EntrySignal)
	if sig.Direction != detector.Long || sig.StopLoss != 2643.20 {
		t.Fatalf("signal = %+v", sig)
	}

	pos, err := gw.OpenPosition(context.Background(), "XAU_USD")
	if err != nil || pos == nil {
		t.Fatalf("no open position after signal: %v", err)
	}

	// Take profit touch closes the simulated bracket.
	drive(t, core, []market.Tick{tickAt(9, 38, 30, 2654.10)})
	if pos, _ := gw.OpenPosition(context.Background(), "XAU_USD"); pos != nil {
		t.Fatal("position still open after target touch")
	}

	// Further candles are never evaluated: session is DONE.
	drive(t, core, minuteTicks(39, 2646.00, 2647.00, 2645.90, 2646.90))
	drive(t, core, []market.Tick{tickAt(9, 40, 0, 2646.90)})
	if got := core.Snapshot().State; got != session.StateDone {
		t.Fatalf("state = %s after trade, want DONE", got)
	}
}

func TestTraderDropsStaleTicks(t *testing.T) {
	core, _, _ := newTestTrader(t)

	drive(t, core, []market.Tick{
		tickAt(9, 31, 0, 2644.00),
		tickAt(9, 30, 59, 2643.00), // stale: must be dropped, not fatal
		tickAt(9, 31, 30, 2644.50),
	})

	snap := core.Snapshot()
	if snap.LastPrice != 2644.50 {
		t.Errorf("last price = %.2f, want 2644.50", snap.LastPrice)
	}
}

func TestTraderSessionCloseWithoutTrade(t *testing.T) {
	core, _, _ := newTestTrader(t)

	drive(t, core, openingRangeTicks())
	drive(t, core, []market.Tick{tickAt(9, 35, 0, 2644.50)})
	if got := core.Snapshot().State; got != session.StateSearching {
		t.Fatalf("state = %s, want SEARCHING", got)
	}

	// No breakout all day; the close transition fires from the clock path.
	if err := core.onClock(context.Background(), time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	snap := core.Snapshot()
	if core.machine.State() != session.StateDone {
		t.Fatalf("state = %s at close, want DONE", core.machine.State())
	}
	if snap.TradeTaken {
		t.Error("trade marked taken with no signal")
	}
}

func TestTraderResetsOnNewDay(t *testing.T) {
	core, _, _ := newTestTrader(t)

	drive(t, core, openingRangeTicks())
	drive(t, core, []market.Tick{tickAt(9, 35, 0, 2644.50)})
	if core.det == nil {
		t.Fatal("detector not armed after lock")
	}

	// Next trading day: everything per-session is discarded.
	next := market.Tick{
		Instrument: "XAU_USD",
		Time:       time.Date(2026, 1, 6, 8, 0, 0, 0, time.UTC),
		Bid:        2650, Ask: 2650,
	}
	drive(t, core, []market.Tick{next})

	if core.machine.State() != session.StatePreOR {
		t.Errorf("state = %s on new day, want PRE_OR", core.machine.State())
	}
	if core.det != nil {
		t.Error("detector survived the day boundary")
	}
	if core.agg.Buffer(candle.M5).Len() != 0 {
		t.Error("candle buffers survived the day boundary")
	}
}
