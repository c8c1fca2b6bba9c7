package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/session"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/db"
)

// Monitor watches data quality events and emits alerts. When DB is set the
// warnings are also journaled.
type Monitor struct {
	Bus     *events.Bus
	Metrics *SystemMetrics
	DB      *db.Database
	AlertFn func(string)
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}
	if m.AlertFn == nil {
		m.AlertFn = func(s string) { log.Println("ALERT:", s) }
	}
	stream, unsub := m.Bus.Subscribe(events.EventDataQuality, 50)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				if m.Metrics != nil {
					m.Metrics.IncrementDataQuality()
				}
				m.journal(ctx, msg)
				m.AlertFn(formatAlert(msg))
			}
		}
	}()
}

func (m *Monitor) journal(ctx context.Context, msg any) {
	if m.DB == nil {
		return
	}
	warn, ok := msg.(session.DataQualityWarning)
	if !ok {
		return
	}
	day := warn.At.Format("2006-01-02")
	if err := m.DB.RecordDataQuality(ctx, day, warn.Reason, warn.At); err != nil {
		log.Printf("monitor: journal data quality: %v", err)
	}
}

func formatAlert(msg any) string {
	return "[" + time.Now().Format(time.RFC3339) + "] " + toString(msg)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case session.DataQualityWarning:
		return fmt.Sprintf("data quality: %s (at %s)", t.Reason, t.At.Format(time.RFC3339))
	default:
		return "alert triggered"
	}
}
