package candle

import (
	"errors"
	"testing"
	"time"
)

func at(h, m, s int) time.Time {
	return time.Date(2026, 1, 5, h, m, s, 0, time.UTC)
}

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	return NewAggregator(time.UTC, map[Timeframe]int{M1: 500, M5: 100})
}

func TestAggregatorSealsOnBoundary(t *testing.T) {
	agg := newTestAggregator(t)

	mustTick := func(ts time.Time, bid, ask float64) []Candle {
		t.Helper()
		sealed, err := agg.OnTick(ts, bid, ask)
		if err != nil {
			t.Fatalf("OnTick(%s): %v", ts, err)
		}
		return sealed
	}

	if sealed := mustTick(at(14, 30, 10), 2649.9, 2650.1); len(sealed) != 0 {
		t.Fatalf("first tick sealed %d candles, want 0", len(sealed))
	}
	mustTick(at(14, 30, 20), 2651.9, 2652.1) // high 2652
	mustTick(at(14, 30, 40), 2648.9, 2649.1) // low 2649
	mustTick(at(14, 30, 55), 2650.4, 2650.6) // close 2650.5

	sealed := mustTick(at(14, 31, 5), 2650.9, 2651.1)
	if len(sealed) != 1 {
		t.Fatalf("sealed %d candles, want 1", len(sealed))
	}
	c := sealed[0]
	if c.Timeframe != M1 {
		t.Errorf("timeframe = %s, want M1", c.Timeframe)
	}
	if !c.OpenTime.Equal(at(14, 30, 0)) || !c.CloseTime.Equal(at(14, 31, 0)) {
		t.Errorf("window = %s-%s, want 14:30-14:31", c.OpenTime, c.CloseTime)
	}
	if c.Open != 2650 || c.High != 2652 || c.Low != 2649 || c.Close != 2650.5 {
		t.Errorf("OHLC = %.1f/%.1f/%.1f/%.1f, want 2650/2652/2649/2650.5", c.Open, c.High, c.Low, c.Close)
	}
	if c.Ticks != 4 {
		t.Errorf("ticks = %d, want 4", c.Ticks)
	}
}

func TestAggregatorSealsBothTimeframes(t *testing.T) {
	agg := newTestAggregator(t)

	if _, err := agg.OnTick(at(14, 34, 30), 2650, 2650); err != nil {
		t.Fatal(err)
	}
	sealed, err := agg.OnTick(at(14, 35, 1), 2651, 2651)
	if err != nil {
		t.Fatal(err)
	}

	var gotM1, gotM5 bool
	for _, c := range sealed {
		switch c.Timeframe {
		case M1:
			gotM1 = true
		case M5:
			gotM5 = true
			if !c.OpenTime.Equal(at(14, 30, 0)) {
				t.Errorf("M5 open = %s, want 14:30", c.OpenTime)
			}
		}
	}
	if !gotM1 || !gotM5 {
		t.Fatalf("sealed M1=%v M5=%v, want both", gotM1, gotM5)
	}
}

func TestAggregatorRejectsStaleTick(t *testing.T) {
	agg := newTestAggregator(t)

	if _, err := agg.OnTick(at(14, 31, 0), 2650, 2650); err != nil {
		t.Fatal(err)
	}
	_, err := agg.OnTick(at(14, 30, 59), 2649, 2649)
	var stale *StaleTickError
	if !errors.As(err, &stale) {
		t.Fatalf("err = %v, want StaleTickError", err)
	}

	// State must be untouched: partial still reflects only the first tick.
	partial, ok := agg.Partial(M1)
	if !ok {
		t.Fatal("no partial candle")
	}
	if partial.Ticks != 1 || partial.Low != 2650 {
		t.Errorf("partial mutated by stale tick: ticks=%d low=%.1f", partial.Ticks, partial.Low)
	}
}

func TestAggregatorFillsGapsWithCarryForwardClose(t *testing.T) {
	agg := newTestAggregator(t)

	if _, err := agg.OnTick(at(14, 30, 30), 2650, 2650); err != nil {
		t.Fatal(err)
	}
	// Next tick three minutes later: 14:30 seals, 14:31 and 14:32 are flat.
	sealed, err := agg.OnTick(at(14, 33, 10), 2655, 2655)
	if err != nil {
		t.Fatal(err)
	}

	var m1 []Candle
	for _, c := range sealed {
		if c.Timeframe == M1 {
			m1 = append(m1, c)
		}
	}
	if len(m1) != 3 {
		t.Fatalf("sealed %d M1 candles, want 3", len(m1))
	}
	for _, c := range m1[1:] {
		if c.Open != 2650 || c.High != 2650 || c.Low != 2650 || c.Close != 2650 {
			t.Errorf("gap candle %s not flat at carry close: %+v", c.OpenTime, c)
		}
		if c.Ticks != 0 {
			t.Errorf("gap candle %s has %d ticks, want 0", c.OpenTime, c.Ticks)
		}
	}
}

func TestAggregatorReset(t *testing.T) {
	agg := newTestAggregator(t)

	if _, err := agg.OnTick(at(14, 30, 0), 2650, 2650); err != nil {
		t.Fatal(err)
	}
	if _, err := agg.OnTick(at(14, 31, 0), 2651, 2651); err != nil {
		t.Fatal(err)
	}
	agg.Reset()

	if agg.Buffer(M1).Len() != 0 {
		t.Error("buffer not empty after reset")
	}
	if _, ok := agg.Partial(M1); ok {
		t.Error("partial survives reset")
	}
	// A tick older than the pre-reset bucket must be accepted again.
	if _, err := agg.OnTick(at(14, 29, 0), 2650, 2650); err != nil {
		t.Errorf("tick after reset: %v", err)
	}
}

func TestBufferBetween(t *testing.T) {
	buf := NewBuffer(M1, 10)
	for i := 0; i < 5; i++ {
		buf.append(Candle{
			Timeframe: M1,
			OpenTime:  at(14, 30+i, 0),
			CloseTime: at(14, 31+i, 0),
		})
	}

	got := buf.Between(at(14, 31, 0), at(14, 33, 0))
	if len(got) != 2 {
		t.Fatalf("got %d candles, want 2", len(got))
	}
	if !got[0].OpenTime.Equal(at(14, 31, 0)) || !got[1].OpenTime.Equal(at(14, 32, 0)) {
		t.Errorf("wrong window: %s, %s", got[0].OpenTime, got[1].OpenTime)
	}
}

func TestBufferLastEvictsOldest(t *testing.T) {
	buf := NewBuffer(M1, 3)
	for i := 0; i < 5; i++ {
		buf.append(Candle{OpenTime: at(14, 30+i, 0)})
	}

	if buf.Len() != 3 {
		t.Fatalf("len = %d, want 3", buf.Len())
	}
	last := buf.Last(3)
	if !last[0].OpenTime.Equal(at(14, 32, 0)) {
		t.Errorf("oldest kept = %s, want 14:32", last[0].OpenTime)
	}
	if !last[2].OpenTime.Equal(at(14, 34, 0)) {
		t.Errorf("newest = %s, want 14:34", last[2].OpenTime)
	}
}

func TestBodyRatio(t *testing.T) {
	tests := []struct {
		name string
		c    Candle
		want float64
	}{
		{"full body", Candle{Open: 10, High: 12, Low: 10, Close: 12}, 1.0},
		{"half body", Candle{Open: 10, High: 12, Low: 10, Close: 11}, 0.5},
		{"doji", Candle{Open: 10, High: 11, Low: 9, Close: 10}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.BodyRatio(); got != tt.want {
				t.Errorf("BodyRatio() = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}
