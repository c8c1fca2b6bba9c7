package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/api"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/candle"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/detector"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/executor"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/market"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/monitor"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/session"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/trader"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/config"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/db"
	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/pkg/oanda"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	loc, err := time.LoadLocation(cfg.SessionTimezone)
	if err != nil {
		log.Fatalf("load timezone %q: %v", cfg.SessionTimezone, err)
	}

	dbPath := cfg.DBPath
	if cfg.DryRun && cfg.DryRunDBPath != "" {
		dbPath = cfg.DryRunDBPath
	}
	log.Printf("starting %s trader (dry_run=%v, db=%s)", cfg.Instrument, cfg.DryRun, dbPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(dbPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	// Entry model params: env defaults overlaid with models.yaml when present.
	params := detector.Params{
		SkipFirstN:       cfg.SkipFirstN,
		RetestPct:        cfg.RetestPct,
		FVGLookback:      cfg.FVGLookback,
		RiskReward:       cfg.RiskReward,
		MinBodyRatio:     cfg.MinBodyRatio,
		MaxInvalidations: cfg.MaxInvalidations,
	}
	if cfg.MinEntryTime != "" {
		h, m, err := config.ParseClock(cfg.MinEntryTime)
		if err != nil {
			log.Fatalf("MIN_ENTRY_TIME: %v", err)
		}
		params.MinEntryHour, params.MinEntryMinute = h, m
	}
	if modelCfgs, err := detector.LoadConfig(cfg.ModelsPath); err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("load %s: %v", cfg.ModelsPath, err)
		}
		log.Printf("no %s, using environment defaults", cfg.ModelsPath)
	} else {
		params = detector.ApplyConfig(params, modelCfgs)
		if err := detector.SyncConfigToDB(database.DB, modelCfgs); err != nil {
			log.Printf("sync model configs: %v", err)
		}
		log.Printf("loaded %d entry model configs from %s", len(modelCfgs), cfg.ModelsPath)
	}

	openH, openM, err := config.ParseClock(cfg.SessionOpen)
	if err != nil {
		log.Fatalf("SESSION_OPEN: %v", err)
	}
	closeH, closeM, err := config.ParseClock(cfg.SessionClose)
	if err != nil {
		log.Fatalf("SESSION_CLOSE: %v", err)
	}
	sessionCfg := session.Config{
		Location:       loc,
		Open:           session.TimeOfDay{Hour: openH, Minute: openM},
		Close:          session.TimeOfDay{Hour: closeH, Minute: closeM},
		ORDuration:     time.Duration(cfg.ORDurationMin) * time.Minute,
		ORTimeframe:    candle.M5,
		EnableORFilter: cfg.EnableORFilter,
		MinORRange:     cfg.MinORRange,
		MaxORRange:     cfg.MaxORRange,
	}

	// Broker gateway: simulated fills in dry-run, OANDA REST otherwise.
	var client *oanda.Client
	if cfg.OandaAccountID != "" && cfg.OandaToken != "" {
		client = oanda.NewClient(cfg.OandaAccountID, cfg.OandaToken, cfg.OandaPractice)
	}
	var gateway executor.Gateway
	if cfg.DryRun {
		gateway = executor.NewDryRunGateway(cfg.DryRunInitialBalance)
		log.Printf("DRY RUN mode, simulated balance %.2f", cfg.DryRunInitialBalance)
	} else {
		if client == nil {
			log.Fatal("live mode requires OANDA credentials")
		}
		gateway = &executor.LiveGateway{Client: client}
	}
	exec := executor.New(gateway, database, bus, cfg.Instrument, cfg.Units, cfg.DryRun)

	sysMetrics := monitor.NewSystemMetrics()
	mon := &monitor.Monitor{Bus: bus, Metrics: sysMetrics, DB: database}
	mon.Start(ctx)

	core := trader.New(trader.Config{
		Instrument: cfg.Instrument,
		Session:    sessionCfg,
		Detector:   params,
		BufferSizes: map[candle.Timeframe]int{
			candle.M1: cfg.Max1mCandles,
			candle.M5: cfg.Max5mCandles,
		},
	}, bus, database, exec, sysMetrics)

	// Market data source
	feedMode := "stream"
	switch {
	case cfg.UseMockFeed:
		feedMode = "mock"
		mock := market.MockFeed{Bus: bus, Instrument: cfg.Instrument}
		mock.Start(ctx)
		log.Println("mock feed started")
	case cfg.UsePollFeed:
		feedMode = "poll"
		poll := market.PollFeed{
			Client:     client,
			Bus:        bus,
			Instrument: cfg.Instrument,
			Interval:   cfg.PollInterval,
		}
		poll.Start(ctx)
		log.Printf("poll feed started (every %s)", cfg.PollInterval)
	default:
		stream := oanda.NewStreamClient(cfg.OandaAccountID, cfg.OandaToken, cfg.OandaPractice)
		feed := market.Feed{Stream: stream, Bus: bus, Instrument: cfg.Instrument}
		feed.Start(ctx)
		log.Println("pricing stream started")
	}

	// Trading loop; a returned error is a contract violation.
	traderErr := make(chan error, 1)
	go func() {
		traderErr <- core.Run(ctx)
	}()

	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "v1.0-dev"
	}
	server := api.NewServer(bus, database, core, sysMetrics, api.SystemMeta{
		Instrument: cfg.Instrument,
		DryRun:     cfg.DryRun,
		FeedMode:   feedMode,
		Version:    version,
	}, cfg.JWTSecret, api.OperatorAuth{PasswordHash: cfg.OperatorPasswordHash})
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server failed: %v", err)
		}
	}()
	log.Printf("api listening on :%s", cfg.Port)

	// Shutdown: flatten any open position before exiting.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case err := <-traderErr:
		if err != nil {
			log.Printf("FATAL trading loop: %v", err)
		}
	}
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := exec.ForceClose(closeCtx); err != nil {
		log.Printf("force close on shutdown: %v", err)
	}
	log.Println("shutdown complete")
}
