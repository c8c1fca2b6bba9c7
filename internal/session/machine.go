package session

import (
	"log"
	"time"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/candle"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
)

// State enumerates the phases of a trading session.
type State string

const (
	StatePreOR      State = "PRE_OR"      // before session open
	StateORBuilding State = "OR_BUILDING" // collecting opening-range candles
	StateSearching  State = "SEARCHING"   // range locked, looking for an entry
	StateTradeTaken State = "TRADE_TAKEN" // the one trade of the session was taken
	StateDone       State = "DONE"        // session over, no further evaluation
)

// OpeningRange is the high/low band observed during the opening-range window.
// Write-once: immutable after lock.
type OpeningRange struct {
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	LockedAt time.Time `json:"locked_at"`
}

// Width returns the range height.
func (r OpeningRange) Width() float64 { return r.High - r.Low }

// Transition is published on the bus for every state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// DataQualityWarning is published when the machine proceeds on degraded data.
type DataQualityWarning struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// TimeOfDay is a wall-clock time within the session timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) on(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// CandleSource provides sealed candles for the opening-range lock.
// *candle.Buffer satisfies it.
type CandleSource interface {
	Between(from, to time.Time) []candle.Candle
}

// Config holds the session schedule and opening-range filters.
type Config struct {
	Location    *time.Location
	Open        TimeOfDay     // session open (default 09:30)
	Close       TimeOfDay     // session close (default 16:00)
	ORDuration  time.Duration // opening-range window length (default 5m)
	ORTimeframe candle.Timeframe

	// Range width filter; out-of-bounds ranges close the session right
	// after the lock.
	EnableORFilter bool
	MinORRange     float64
	MaxORRange     float64
}

// Machine advances a trading session through its phases, driven by wall-clock
// time and sealed candles. One trade per session; the machine resets itself
// at each new calendar day in the configured timezone.
type Machine struct {
	cfg Config
	bus *events.Bus

	state      State
	day        time.Time // session date, midnight in cfg.Location
	or         *OpeningRange
	tradeTaken bool
	warnedOR   bool
	orWarning  string
}

// NewMachine creates a session machine starting in PRE_OR.
func NewMachine(cfg Config, bus *events.Bus) *Machine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ORDuration == 0 {
		cfg.ORDuration = 5 * time.Minute
	}
	if cfg.ORTimeframe == "" {
		cfg.ORTimeframe = candle.M5
	}
	return &Machine{cfg: cfg, bus: bus, state: StatePreOR}
}

// State returns the current session phase.
func (m *Machine) State() State { return m.state }

// Day returns the current session date (midnight in the session timezone).
func (m *Machine) Day() time.Time { return m.day }

// OpeningRange returns the locked range, if any.
func (m *Machine) OpeningRange() (OpeningRange, bool) {
	if m.or == nil {
		return OpeningRange{}, false
	}
	return *m.or, true
}

// TradeTaken reports whether this session's trade was taken.
func (m *Machine) TradeTaken() bool { return m.tradeTaken }

// ORWarning returns the last data quality warning of the session, if any.
func (m *Machine) ORWarning() string { return m.orWarning }

// CanEvaluate reports whether the detector may be invoked.
func (m *Machine) CanEvaluate() bool {
	return m.state == StateSearching && m.or != nil && !m.tradeTaken
}

// Update advances the machine for the given wall-clock time. src supplies the
// sealed candles of the opening-range timeframe. Returns true when a new
// session day started (callers discard prior-day detector/aggregator state).
func (m *Machine) Update(now time.Time, src CandleSource) bool {
	local := now.In(m.cfg.Location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.cfg.Location)

	newDay := false
	if !day.Equal(m.day) {
		newDay = !m.day.IsZero()
		m.resetForNewDay(day, local)
	}

	switch m.state {
	case StatePreOR:
		m.handlePreOR(local)
	case StateORBuilding:
		m.handleORBuilding(local, src)
	case StateSearching:
		m.handleSearching(local)
	}
	return newDay
}

func (m *Machine) resetForNewDay(day time.Time, now time.Time) {
	if !m.day.IsZero() {
		log.Printf("session: resetting for new day %s", day.Format("2006-01-02"))
		m.transition(StatePreOR, now)
	} else {
		m.state = StatePreOR
	}
	m.day = day
	m.or = nil
	m.tradeTaken = false
	m.warnedOR = false
	m.orWarning = ""
}

func (m *Machine) handlePreOR(now time.Time) {
	wd := now.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return
	}
	if !now.Before(m.cfg.Open.on(m.day, m.cfg.Location)) {
		m.transition(StateORBuilding, now)
	}
}

func (m *Machine) handleORBuilding(now time.Time, src CandleSource) {
	openAt := m.cfg.Open.on(m.day, m.cfg.Location)
	lockAt := openAt.Add(m.cfg.ORDuration)
	if now.Before(lockAt) {
		return
	}

	var candles []candle.Candle
	if src != nil {
		candles = src.Between(openAt, lockAt)
	}
	if len(candles) == 0 {
		// Nothing to lock from; stay building and flag the gap once.
		if !m.warnedOR {
			m.warnedOR = true
			m.warn("no opening-range candles at lock time", now)
		}
		return
	}

	expected := int(m.cfg.ORDuration / m.cfg.ORTimeframe.Duration())
	if len(candles) < expected {
		m.warn("opening range locked with partial data", now)
	}

	or := OpeningRange{High: candles[0].High, Low: candles[0].Low, LockedAt: now}
	for _, c := range candles[1:] {
		if c.High > or.High {
			or.High = c.High
		}
		if c.Low < or.Low {
			or.Low = c.Low
		}
	}
	m.or = &or
	log.Printf("session: OR locked high=%.2f low=%.2f width=%.2f", or.High, or.Low, or.Width())
	if m.bus != nil {
		m.bus.Publish(events.EventORLocked, or)
	}
	m.transition(StateSearching, now)

	if m.cfg.EnableORFilter {
		if w := or.Width(); w < m.cfg.MinORRange || w > m.cfg.MaxORRange {
			log.Printf("session: OR width %.2f outside [%.2f, %.2f], skipping today", w, m.cfg.MinORRange, m.cfg.MaxORRange)
			m.warn("opening range width outside configured bounds", now)
			m.transition(StateDone, now)
		}
	}
}

func (m *Machine) handleSearching(now time.Time) {
	if !now.Before(m.cfg.Close.on(m.day, m.cfg.Location)) {
		log.Printf("session: closed at %s with no trade", now.Format("15:04"))
		m.transition(StateDone, now)
	}
}

// MarkTradeTaken records the single trade of the session. The session moves
// to TRADE_TAKEN and immediately on to DONE.
func (m *Machine) MarkTradeTaken(now time.Time) {
	if m.state != StateSearching {
		return
	}
	m.tradeTaken = true
	m.transition(StateTradeTaken, now)
	m.transition(StateDone, now)
}

func (m *Machine) transition(to State, at time.Time) {
	from := m.state
	m.state = to
	log.Printf("session: %s -> %s", from, to)
	if m.bus != nil {
		m.bus.Publish(events.EventStateTransition, Transition{From: from, To: to, At: at})
	}
}

func (m *Machine) warn(reason string, at time.Time) {
	m.orWarning = reason
	log.Printf("session: data quality: %s", reason)
	if m.bus != nil {
		m.bus.Publish(events.EventDataQuality, DataQualityWarning{Reason: reason, At: at})
	}
}
