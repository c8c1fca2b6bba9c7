package detector

import (
	"time"
)

// Direction of a trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// EntrySignal is the terminal output of the detector: at most one per
// session, immutable once emitted.
type EntrySignal struct {
	ID         string    `json:"id"`
	Model      int       `json:"model"`
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	DetectedAt time.Time `json:"detected_at"`
	BreakoutAt time.Time `json:"breakout_at"`
	RetestAt   time.Time `json:"retest_at,omitempty"`
}

// Params are the tunables shared by both entry models.
type Params struct {
	SkipFirstN       int     // candles ignored after the OR lock
	RetestPct        float64 // retest band as a fraction of OR width
	FVGLookback      int     // candles spanned by a fair value gap (3)
	RiskReward       float64 // take profit = entry +/- RiskReward * risk
	MinBodyRatio     float64 // displacement body filter (0.30)
	MaxInvalidations int     // failed breakouts tolerated before going quiet
	MinEntryHour     int     // no entries before this local time; 0 disables
	MinEntryMinute   int

	// EnabledModels restricts which models run, in the given priority
	// order. Empty enables all models in default order.
	EnabledModels []int
}

// Breakout is published when a close beyond the opening range is seen.
type Breakout struct {
	Model     int       `json:"model"`
	Direction Direction `json:"direction"`
	Price     float64   `json:"price"`
	At        time.Time `json:"at"`
}

// Retest is published when price returns to the broken boundary.
type Retest struct {
	Direction Direction `json:"direction"`
	BandLow   float64   `json:"band_low"`
	BandHigh  float64   `json:"band_high"`
	At        time.Time `json:"at"`
}

// Invalidation is published when a setup is abandoned.
type Invalidation struct {
	Model     int       `json:"model"`
	Direction Direction `json:"direction"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}
