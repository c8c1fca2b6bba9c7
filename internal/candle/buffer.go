package candle

import "time"

// Buffer is a bounded ordered sequence of sealed candles for one timeframe.
// The oldest candle is evicted when capacity is exceeded. Only the Aggregator
// appends; consumers get copied snapshots.
type Buffer struct {
	tf      Timeframe
	max     int
	candles []Candle
}

// NewBuffer creates a buffer holding at most max sealed candles.
func NewBuffer(tf Timeframe, max int) *Buffer {
	if max <= 0 {
		max = 100
	}
	return &Buffer{tf: tf, max: max}
}

// Timeframe returns the buffer's timeframe.
func (b *Buffer) Timeframe() Timeframe { return b.tf }

// Len returns the number of sealed candles currently held.
func (b *Buffer) Len() int { return len(b.candles) }

func (b *Buffer) append(c Candle) {
	b.candles = append(b.candles, c)
	if len(b.candles) > b.max {
		b.candles = b.candles[1:]
	}
}

// Last returns up to n most recent candles, oldest first.
func (b *Buffer) Last(n int) []Candle {
	if n > len(b.candles) {
		n = len(b.candles)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Candle, n)
	copy(out, b.candles[len(b.candles)-n:])
	return out
}

// Between returns candles whose open time falls in [from, to), oldest first.
func (b *Buffer) Between(from, to time.Time) []Candle {
	var out []Candle
	for _, c := range b.candles {
		if !c.OpenTime.Before(from) && c.OpenTime.Before(to) {
			out = append(out, c)
		}
	}
	return out
}
