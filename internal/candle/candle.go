package candle

import (
	"fmt"
	"time"
)

// Timeframe identifies a fixed candle duration.
type Timeframe string

const (
	M1 Timeframe = "M1"
	M5 Timeframe = "M5"
)

// Duration returns the bucket length of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	default:
		return time.Minute
	}
}

// Candle is a single OHLC candle built from mid prices.
// It is sealed (immutable) once its window elapses.
type Candle struct {
	Timeframe Timeframe `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Ticks     int       `json:"ticks"`
}

func (c Candle) String() string {
	return fmt.Sprintf("Candle(%s %s O:%.2f H:%.2f L:%.2f C:%.2f)",
		c.Timeframe, c.OpenTime.Format("15:04"), c.Open, c.High, c.Low, c.Close)
}

// Body returns the absolute open-to-close distance.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// BodyRatio returns body size relative to the full candle range.
func (c Candle) BodyRatio() float64 {
	full := c.High - c.Low
	if full < 0.0001 {
		full = 0.0001
	}
	return c.Body() / full
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool { return c.Close < c.Open }
