package events

// Event enumerates high-level topics inside the trading core.
type Event string

const (
	EventTick            Event = "tick"
	EventCandleSealed    Event = "candle.sealed"
	EventStateTransition Event = "session.transition"
	EventORLocked        Event = "session.or_locked"
	EventBreakout        Event = "detector.breakout"
	EventRetest          Event = "detector.retest"
	EventInvalidation    Event = "detector.invalidation"
	EventEntrySignal     Event = "detector.signal"
	EventOrderPlaced     Event = "order.placed"
	EventOrderFilled     Event = "order.filled"
	EventPositionClosed  Event = "position.closed"
	EventDataQuality     Event = "data.quality"
)
