package detector

import (
	"log"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/candle"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/session"
)

const (
	phaseBreakout = iota
	phaseRetest
	phaseConfirm
)

// retestModel is Model 1: breakout, retest of the broken boundary, then a
// displacement candle confirming the move. A close back inside the opening
// range before the retest invalidates the setup and the search restarts,
// bounded by MaxInvalidations.
type retestModel struct {
	or  session.OpeningRange
	p   Params
	bus *events.Bus

	phase         int
	dir           Direction
	breakoutAt    candle.Candle
	retest        *candle.Candle
	invalidations int
	quiet         bool
	history       []candle.Candle
}

func newRetestModel(or session.OpeningRange, p Params, bus *events.Bus) *retestModel {
	return &retestModel{or: or, p: p, bus: bus}
}

func (m *retestModel) ID() int      { return 1 }
func (m *retestModel) Name() string { return "retest_displacement" }

func (m *retestModel) Evaluate(c candle.Candle) *EntrySignal {
	m.history = append(m.history, c)
	if len(m.history) > 50 {
		m.history = m.history[1:]
	}
	if m.quiet {
		return nil
	}

	switch m.phase {
	case phaseBreakout:
		m.checkBreakout(c)
	case phaseRetest:
		m.checkRetest(c)
	case phaseConfirm:
		return m.checkConfirmation(c)
	}
	return nil
}

func (m *retestModel) checkBreakout(c candle.Candle) {
	switch {
	case c.Close > m.or.High:
		m.dir = Long
	case c.Close < m.or.Low:
		m.dir = Short
	default:
		return
	}
	m.phase = phaseRetest
	m.breakoutAt = c
	log.Printf("detector: model 1 breakout %s close=%.2f", m.dir, c.Close)
	if m.bus != nil {
		m.bus.Publish(events.EventBreakout, Breakout{Model: 1, Direction: m.dir, Price: c.Close, At: c.CloseTime})
	}
}

// band returns the retest zone around the broken boundary; its width is
// RetestPct of the opening-range width.
func (m *retestModel) band() (low, high float64) {
	tol := m.or.Width() * m.p.RetestPct
	anchor := m.or.High
	if m.dir == Short {
		anchor = m.or.Low
	}
	return anchor - tol, anchor + tol
}

func (m *retestModel) checkRetest(c candle.Candle) {
	// Re-entering the range before a retest kills the setup.
	if (m.dir == Long && c.Close < m.or.High) || (m.dir == Short && c.Close > m.or.Low) {
		m.invalidate("re-entered opening range before retest", c)
		return
	}

	bandLow, bandHigh := m.band()
	if c.Low <= bandHigh && c.High >= bandLow {
		cc := c
		m.retest = &cc
		m.phase = phaseConfirm
		log.Printf("detector: model 1 retest %s band=%.2f-%.2f", m.dir, bandLow, bandHigh)
		if m.bus != nil {
			m.bus.Publish(events.EventRetest, Retest{Direction: m.dir, BandLow: bandLow, BandHigh: bandHigh, At: c.CloseTime})
		}
	}
}

func (m *retestModel) checkConfirmation(c candle.Candle) *EntrySignal {
	bandLow, bandHigh := m.band()
	if (m.dir == Long && c.Low < bandLow) || (m.dir == Short && c.High > bandHigh) {
		m.invalidate("broke through retest band", c)
		return nil
	}
	if len(m.history) < 2 {
		return nil
	}
	prev := m.history[len(m.history)-2]
	tol := m.or.Width() * m.p.RetestPct

	displaced := false
	if m.dir == Long {
		displaced = c.Close > m.retest.High+tol &&
			c.Close > prev.Close &&
			c.High > prev.High &&
			c.BodyRatio() >= m.p.MinBodyRatio
		if !displaced && len(m.history) >= 3 {
			c1 := m.history[len(m.history)-3]
			displaced = c1.High < c.Low // imbalance gap in trade direction
		}
	} else {
		displaced = c.Close < m.retest.Low-tol &&
			c.Close < prev.Close &&
			c.Low < prev.Low &&
			c.BodyRatio() >= m.p.MinBodyRatio
		if !displaced && len(m.history) >= 3 {
			c1 := m.history[len(m.history)-3]
			displaced = c1.Low > c.High
		}
	}
	if !displaced {
		return nil
	}

	sig := buildSignal(1, m.dir, c, m.or, m.retest, m.p.RiskReward)
	sig.BreakoutAt = m.breakoutAt.OpenTime
	log.Printf("detector: model 1 confirmed %s entry=%.2f sl=%.2f tp=%.2f", m.dir, sig.EntryPrice, sig.StopLoss, sig.TakeProfit)
	return sig
}

// invalidate drops the current setup and resumes the breakout search,
// unless the session already burned through MaxInvalidations attempts.
func (m *retestModel) invalidate(reason string, c candle.Candle) {
	log.Printf("detector: model 1 invalidated (%s)", reason)
	if m.bus != nil {
		m.bus.Publish(events.EventInvalidation, Invalidation{Model: 1, Direction: m.dir, Reason: reason, At: c.CloseTime})
	}
	m.invalidations++
	m.phase = phaseBreakout
	m.dir = ""
	m.retest = nil
	if m.p.MaxInvalidations > 0 && m.invalidations >= m.p.MaxInvalidations {
		log.Printf("detector: model 1 quiet after %d invalidations", m.invalidations)
		m.quiet = true
	}
}
