package market

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/oanda"
)

// PollFeed fetches the current price over REST on an interval. It is the
// poll-loop market data source for environments where a long-lived stream is
// impractical; the core cannot tell the two feeds apart.
type PollFeed struct {
	Client     *oanda.Client
	Bus        *events.Bus
	Instrument string
	Interval   time.Duration
}

// Start begins polling in the background until ctx is canceled.
func (p *PollFeed) Start(ctx context.Context) {
	if p.Bus == nil || p.Client == nil {
		log.Println("poll feed not fully configured; skipping start")
		return
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	go func() {
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			price, err := p.Client.Pricing(ctx, p.Instrument)
			if err != nil {
				log.Printf("poll feed: pricing error: %v", err)
				continue
			}
			bid, ask := price.Bid(), price.Ask()
			if bid == 0 || ask == 0 {
				continue
			}
			ts := price.Time
			if ts.IsZero() {
				ts = time.Now().UTC()
			}
			p.Bus.Publish(events.EventTick, Tick{
				Instrument: p.Instrument,
				Time:       ts,
				Bid:        bid,
				Ask:        ask,
			})
		}
	}()
}
