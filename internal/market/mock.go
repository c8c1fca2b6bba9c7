package market

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
)

// MockFeed generates synthetic ticks for local development.
type MockFeed struct {
	Bus        *events.Bus
	Instrument string
	StartPrice float64
	Step       float64
	Spread     float64
	Interval   time.Duration
}

func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("mock feed: bus not set")
		return
	}
	if m.Instrument == "" {
		m.Instrument = "XAU_USD"
	}
	price := m.StartPrice
	if price == 0 {
		price = 2650.0
	}
	if m.Step == 0 {
		m.Step = 0.25
	}
	if m.Spread == 0 {
		m.Spread = 0.30
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				// simple random walk
				price += (rand.Float64()*2 - 1) * m.Step
				m.Bus.Publish(events.EventTick, Tick{
					Instrument: m.Instrument,
					Time:       now.UTC(),
					Bid:        price - m.Spread/2,
					Ask:        price + m.Spread/2,
				})
			}
		}
	}()
}
