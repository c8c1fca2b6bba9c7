package detector

import (
	"log"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/candle"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/session"
)

const (
	gapPhaseBreakout = iota
	gapPhaseScan
	gapPhaseReturn
	gapPhaseContinue
)

// gapModel is Model 2: after a breakout, a three-candle fair value gap in the
// breakout direction becomes a confirmation zone; a return into the zone
// followed by a candle closing back in the breakout direction confirms entry.
type gapModel struct {
	or  session.OpeningRange
	p   Params
	bus *events.Bus

	phase      int
	dir        Direction
	breakoutAt candle.Candle
	gapLow     float64
	gapHigh    float64
	history    []candle.Candle
}

func newGapModel(or session.OpeningRange, p Params, bus *events.Bus) *gapModel {
	return &gapModel{or: or, p: p, bus: bus}
}

func (m *gapModel) ID() int      { return 2 }
func (m *gapModel) Name() string { return "fair_value_gap" }

func (m *gapModel) Evaluate(c candle.Candle) *EntrySignal {
	m.history = append(m.history, c)
	if len(m.history) > 50 {
		m.history = m.history[1:]
	}

	switch m.phase {
	case gapPhaseBreakout:
		m.checkBreakout(c)
	case gapPhaseScan:
		m.scanForGap(c)
	case gapPhaseReturn:
		m.checkReturn(c)
	case gapPhaseContinue:
		return m.checkContinuation(c)
	}
	return nil
}

func (m *gapModel) checkBreakout(c candle.Candle) {
	switch {
	case c.Close > m.or.High:
		m.dir = Long
	case c.Close < m.or.Low:
		m.dir = Short
	default:
		return
	}
	m.phase = gapPhaseScan
	m.breakoutAt = c
	if m.bus != nil {
		m.bus.Publish(events.EventBreakout, Breakout{Model: 2, Direction: m.dir, Price: c.Close, At: c.CloseTime})
	}
}

func (m *gapModel) scanForGap(c candle.Candle) {
	// Losing the breakout restarts the search.
	if (m.dir == Long && c.Close < m.or.High) || (m.dir == Short && c.Close > m.or.Low) {
		m.reset("re-entered opening range before gap formed", c)
		return
	}
	n := m.p.FVGLookback
	if n < 3 {
		n = 3
	}
	if len(m.history) < n {
		return
	}
	first := m.history[len(m.history)-n]

	if m.dir == Long && first.High < c.Low {
		m.gapLow, m.gapHigh = first.High, c.Low
	} else if m.dir == Short && first.Low > c.High {
		m.gapLow, m.gapHigh = c.High, first.Low
	} else {
		return
	}
	m.phase = gapPhaseReturn
	log.Printf("detector: model 2 gap %s zone=%.2f-%.2f", m.dir, m.gapLow, m.gapHigh)
}

func (m *gapModel) checkReturn(c candle.Candle) {
	// A close through the far side of the gap fills it completely and voids
	// the zone.
	if (m.dir == Long && c.Close < m.gapLow) || (m.dir == Short && c.Close > m.gapHigh) {
		m.reset("fair value gap filled", c)
		return
	}
	if (m.dir == Long && c.Low <= m.gapHigh) || (m.dir == Short && c.High >= m.gapLow) {
		m.phase = gapPhaseContinue
		log.Printf("detector: model 2 price returned into gap zone")
	}
}

func (m *gapModel) checkContinuation(c candle.Candle) *EntrySignal {
	if (m.dir == Long && c.Close < m.gapLow) || (m.dir == Short && c.Close > m.gapHigh) {
		m.reset("fair value gap filled", c)
		return nil
	}

	confirmed := (m.dir == Long && c.Bullish() && c.Close > m.gapHigh) ||
		(m.dir == Short && c.Bearish() && c.Close < m.gapLow)
	if !confirmed {
		return nil
	}

	sig := buildSignal(2, m.dir, c, m.or, nil, m.p.RiskReward)
	sig.BreakoutAt = m.breakoutAt.OpenTime
	log.Printf("detector: model 2 confirmed %s entry=%.2f sl=%.2f tp=%.2f", m.dir, sig.EntryPrice, sig.StopLoss, sig.TakeProfit)
	return sig
}

func (m *gapModel) reset(reason string, c candle.Candle) {
	log.Printf("detector: model 2 reset (%s)", reason)
	if m.bus != nil {
		m.bus.Publish(events.EventInvalidation, Invalidation{Model: 2, Direction: m.dir, Reason: reason, At: c.CloseTime})
	}
	m.phase = gapPhaseBreakout
	m.dir = ""
	m.gapLow, m.gapHigh = 0, 0
}
