package candle

import (
	"fmt"
	"time"
)

// StaleTickError reports a tick older than the current bucket's open time.
// Stale ticks are dropped by the caller; they never mutate aggregator state.
type StaleTickError struct {
	TickTime   time.Time
	BucketOpen time.Time
}

func (e *StaleTickError) Error() string {
	return fmt.Sprintf("stale tick %s before bucket open %s",
		e.TickTime.Format(time.RFC3339), e.BucketOpen.Format(time.RFC3339))
}

type bucket struct {
	openTime time.Time
	open     float64
	high     float64
	low      float64
	close    float64
	ticks    int
}

type frame struct {
	tf  Timeframe
	buf *Buffer
	cur *bucket
}

// Aggregator buckets ticks into fixed-duration candles for every configured
// timeframe. Pure state transformation driven by caller-supplied ticks; no I/O.
type Aggregator struct {
	loc    *time.Location
	order  []Timeframe
	frames map[Timeframe]*frame
}

// NewAggregator creates an aggregator with one rolling buffer per timeframe.
// Candle windows are aligned in loc, the configured session timezone.
func NewAggregator(loc *time.Location, sizes map[Timeframe]int) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	a := &Aggregator{loc: loc, frames: make(map[Timeframe]*frame)}
	for _, tf := range []Timeframe{M1, M5} {
		if max, ok := sizes[tf]; ok {
			a.frames[tf] = &frame{tf: tf, buf: NewBuffer(tf, max)}
			a.order = append(a.order, tf)
		}
	}
	return a
}

// OnTick advances bucket state for every configured timeframe using the mid
// price. Crossing a bucket boundary seals the prior bucket into its buffer;
// skipped buckets are sealed as flat candles with the carry-forward close.
// Returns the candles sealed by this tick, finest timeframe first.
func (a *Aggregator) OnTick(ts time.Time, bid, ask float64) ([]Candle, error) {
	if len(a.order) == 0 {
		return nil, nil
	}
	mid := (bid + ask) / 2.0
	local := ts.In(a.loc)

	// A tick older than the finest bucket's open is stale for all frames.
	if f, ok := a.frames[a.order[0]]; ok && f.cur != nil && local.Before(f.cur.openTime) {
		return nil, &StaleTickError{TickTime: local, BucketOpen: f.cur.openTime}
	}

	var sealed []Candle
	for _, tf := range a.order {
		f := a.frames[tf]
		sealed = append(sealed, f.advance(local, mid, a.loc)...)
	}
	return sealed, nil
}

func (f *frame) advance(ts time.Time, mid float64, loc *time.Location) []Candle {
	d := f.tf.Duration()
	open := ts.Truncate(d).In(loc)

	if f.cur == nil {
		f.cur = &bucket{openTime: open, open: mid, high: mid, low: mid, close: mid, ticks: 1}
		return nil
	}

	if open.Equal(f.cur.openTime) {
		if mid > f.cur.high {
			f.cur.high = mid
		}
		if mid < f.cur.low {
			f.cur.low = mid
		}
		f.cur.close = mid
		f.cur.ticks++
		return nil
	}

	// Boundary crossed: seal the current bucket, then any empty buckets in
	// between using the carry-forward close.
	prevOpen := f.cur.openTime
	var sealed []Candle
	sealed = append(sealed, f.seal())
	carry := sealed[0].Close
	for t := prevOpen.Add(d); t.Before(open); t = t.Add(d) {
		flat := Candle{
			Timeframe: f.tf,
			OpenTime:  t,
			CloseTime: t.Add(d),
			Open:      carry, High: carry, Low: carry, Close: carry,
		}
		f.buf.append(flat)
		sealed = append(sealed, flat)
	}

	f.cur = &bucket{openTime: open, open: mid, high: mid, low: mid, close: mid, ticks: 1}
	return sealed
}

func (f *frame) seal() Candle {
	c := Candle{
		Timeframe: f.tf,
		OpenTime:  f.cur.openTime,
		CloseTime: f.cur.openTime.Add(f.tf.Duration()),
		Open:      f.cur.open,
		High:      f.cur.high,
		Low:       f.cur.low,
		Close:     f.cur.close,
		Ticks:     f.cur.ticks,
	}
	f.buf.append(c)
	return c
}

// Partial returns a copy of the in-progress candle for a timeframe without
// mutating state. ok is false when no tick has arrived for the bucket yet.
func (a *Aggregator) Partial(tf Timeframe) (Candle, bool) {
	f, found := a.frames[tf]
	if !found || f.cur == nil {
		return Candle{}, false
	}
	return Candle{
		Timeframe: tf,
		OpenTime:  f.cur.openTime,
		CloseTime: f.cur.openTime.Add(tf.Duration()),
		Open:      f.cur.open,
		High:      f.cur.high,
		Low:       f.cur.low,
		Close:     f.cur.close,
		Ticks:     f.cur.ticks,
	}, true
}

// Buffer returns the rolling buffer for a timeframe (read-only use).
func (a *Aggregator) Buffer(tf Timeframe) *Buffer {
	if f, ok := a.frames[tf]; ok {
		return f.buf
	}
	return nil
}

// Reset discards all buckets and buffers, keeping capacities. Called at the
// session day boundary.
func (a *Aggregator) Reset() {
	for _, tf := range a.order {
		f := a.frames[tf]
		a.frames[tf] = &frame{tf: tf, buf: NewBuffer(tf, f.buf.max)}
	}
}
