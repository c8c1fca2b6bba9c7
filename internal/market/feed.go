package market

import (
	"context"
	"log"
	"time"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/oanda"
)

// Feed streams prices from the OANDA pricing stream and publishes ticks to
// the event bus. This is the push-subscription market data source.
type Feed struct {
	Stream     *oanda.StreamClient
	Bus        *events.Bus
	Instrument string
}

// Start begins streaming in the background until ctx is canceled.
func (f *Feed) Start(ctx context.Context) {
	if f.Bus == nil || f.Stream == nil {
		log.Println("market feed not fully configured; skipping start")
		return
	}
	go f.Stream.Run(ctx, f.Instrument, func(ts time.Time, bid, ask float64) {
		f.Bus.Publish(events.EventTick, Tick{
			Instrument: f.Instrument,
			Time:       ts,
			Bid:        bid,
			Ask:        ask,
		})
	})
}
