package detector

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/candle"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/session"
)

// Contract violations. Hitting either means the state machine and detector
// have desynchronized; callers treat them as fatal.
var (
	ErrNotSearching         = errors.New("detector: evaluated outside SEARCHING state")
	ErrSignalAlreadyEmitted = errors.New("detector: signal already emitted this session")
)

// Model is one entry strategy. Models are stateful, evaluated once per sealed
// candle in priority order, and short-circuit on the first match.
type Model interface {
	ID() int
	Name() string
	Evaluate(c candle.Candle) *EntrySignal
}

// Detector consumes sealed candles while the session is searching and emits
// at most one EntrySignal. A fresh Detector is created per session, right
// after the opening-range lock.
type Detector struct {
	or     session.OpeningRange
	params Params
	loc    *time.Location
	models []Model

	seen     int
	lastOpen time.Time
	signal   *EntrySignal
}

// New builds a detector for one session's locked opening range, with Model 1
// (retest + displacement) ahead of Model 2 (fair value gap).
func New(or session.OpeningRange, p Params, bus *events.Bus, loc *time.Location) *Detector {
	if loc == nil {
		loc = time.UTC
	}
	available := map[int]Model{
		1: newRetestModel(or, p, bus),
		2: newGapModel(or, p, bus),
	}
	order := p.EnabledModels
	if len(order) == 0 {
		order = []int{1, 2}
	}
	var models []Model
	for _, id := range order {
		if m, ok := available[id]; ok {
			models = append(models, m)
		}
	}
	return &Detector{
		or:     or,
		params: p,
		loc:    loc,
		models: models,
	}
}

// Signal returns the emitted signal, if any.
func (d *Detector) Signal() (*EntrySignal, bool) {
	return d.signal, d.signal != nil
}

// Evaluate processes one newly sealed candle and returns an EntrySignal when
// either model confirms. It must only be called while the session state is
// SEARCHING and before a signal has been emitted; anything else is a
// contract violation.
func (d *Detector) Evaluate(c candle.Candle, st session.State) (*EntrySignal, error) {
	if st != session.StateSearching {
		return nil, ErrNotSearching
	}
	if d.signal != nil {
		return nil, ErrSignalAlreadyEmitted
	}

	// Re-delivery of an already-processed candle is a no-op, never a
	// duplicate evaluation.
	if !d.lastOpen.IsZero() && !c.OpenTime.After(d.lastOpen) {
		return nil, nil
	}
	d.lastOpen = c.OpenTime

	d.seen++
	if d.seen <= d.params.SkipFirstN {
		return nil, nil
	}
	if d.params.MinEntryHour > 0 && d.beforeMinEntry(c.CloseTime) {
		return nil, nil
	}

	for _, m := range d.models {
		if sig := m.Evaluate(c); sig != nil {
			sig.ID = uuid.NewString()
			d.signal = sig
			return sig, nil
		}
	}
	return nil, nil
}

func (d *Detector) beforeMinEntry(t time.Time) bool {
	local := t.In(d.loc)
	h, m := local.Hour(), local.Minute()
	return h < d.params.MinEntryHour ||
		(h == d.params.MinEntryHour && m < d.params.MinEntryMinute)
}

// buildSignal computes stop loss and take profit for a confirmed entry.
// Stop loss sits at the opposite side of the opening range, extended to the
// retest extreme when the retest wicked beyond it; take profit is
// entry +/- RiskReward * risk distance.
func buildSignal(model int, dir Direction, entry candle.Candle, or session.OpeningRange, retest *candle.Candle, rr float64) *EntrySignal {
	price := entry.Close

	var sl float64
	if dir == Long {
		sl = or.Low
		if retest != nil && retest.Low < sl {
			sl = retest.Low
		}
	} else {
		sl = or.High
		if retest != nil && retest.High > sl {
			sl = retest.High
		}
	}

	var tp float64
	if dir == Long {
		tp = price + rr*(price-sl)
	} else {
		tp = price - rr*(sl-price)
	}

	sig := &EntrySignal{
		Model:      model,
		Direction:  dir,
		EntryPrice: price,
		StopLoss:   sl,
		TakeProfit: tp,
		DetectedAt: entry.CloseTime,
	}
	if retest != nil {
		sig.RetestAt = retest.OpenTime
	}
	return sig
}
