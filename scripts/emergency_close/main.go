package main

import (
	"context"
	"log"
	"time"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/config"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/oanda"
)

// emergency_close flattens any open position on the configured instrument,
// independent of the running trader. Use it when the main process is stuck
// or unreachable.
//
// Usage (from the repo root):
//   go run ./scripts/emergency_close

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config error: %v", err)
	}
	if cfg.OandaAccountID == "" || cfg.OandaToken == "" {
		log.Fatal("OANDA_ACCOUNT_ID and OANDA_ACCESS_TOKEN are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := oanda.NewClient(cfg.OandaAccountID, cfg.OandaToken, cfg.OandaPractice)

	pos, err := client.OpenPosition(ctx, cfg.Instrument)
	if err != nil {
		log.Fatalf("fetch position: %v", err)
	}
	if pos == nil || !pos.Open() {
		log.Printf("no open position on %s, nothing to do", cfg.Instrument)
		return
	}

	longUnits := pos.Long.Units.Float()
	shortUnits := pos.Short.Units.Float()
	log.Printf("open position on %s: long=%.0f short=%.0f unrealized=%.2f",
		cfg.Instrument, longUnits, shortUnits, pos.UnrealizedPL.Float())

	if err := client.ClosePosition(ctx, cfg.Instrument, longUnits > 0, shortUnits < 0); err != nil {
		log.Fatalf("close position: %v", err)
	}
	log.Printf("position on %s closed", cfg.Instrument)
}
