package market

import "time"

// Tick is a single externally produced price update. Immutable; consumed once
// by the candle aggregator.
type Tick struct {
	Instrument string    `json:"instrument"`
	Time       time.Time `json:"time"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
}

// Mid returns the mid price.
func (t Tick) Mid() float64 { return (t.Bid + t.Ask) / 2.0 }
