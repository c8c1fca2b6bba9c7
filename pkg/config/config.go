package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the live trader.
type Config struct {
	Port string

	// OANDA
	OandaAccountID string
	OandaToken     string
	OandaPractice  bool
	Instrument     string
	Units          int

	// Feed selection
	UseMockFeed  bool
	UsePollFeed  bool
	PollInterval time.Duration

	// Session schedule (in SessionTimezone)
	SessionTimezone string
	SessionOpen     string // "09:30"
	SessionClose    string // "16:00"
	ORDurationMin   int    // opening-range window in minutes

	// Opening-range width filter
	EnableORFilter bool
	MinORRange     float64
	MaxORRange     float64

	// Entry models
	RiskReward       float64
	SkipFirstN       int
	FVGLookback      int
	RetestPct        float64
	MinBodyRatio     float64
	MaxInvalidations int
	MinEntryTime     string // "10:00"; empty disables

	// Candle buffers
	Max1mCandles int
	Max5mCandles int

	// Execution
	DryRun               bool
	DryRunInitialBalance float64

	// Model parameter file
	ModelsPath string

	// Database
	DBPath       string
	DryRunDBPath string

	// API auth
	JWTSecret            string
	OperatorPasswordHash string // bcrypt hash; empty disables login
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		OandaAccountID:       os.Getenv("OANDA_ACCOUNT_ID"),
		OandaToken:           os.Getenv("OANDA_ACCESS_TOKEN"),
		OandaPractice:        getEnv("OANDA_PRACTICE", "true") == "true",
		Instrument:           getEnv("INSTRUMENT", "XAU_USD"),
		Units:                getEnvInt("UNITS", 3),
		UseMockFeed:          getEnv("USE_MOCK_FEED", "false") == "true",
		UsePollFeed:          getEnv("USE_POLL_FEED", "false") == "true",
		PollInterval:         time.Duration(getEnvInt("POLL_INTERVAL_SEC", 15)) * time.Second,
		SessionTimezone:      getEnv("SESSION_TIMEZONE", "America/New_York"),
		SessionOpen:          getEnv("SESSION_OPEN", "09:30"),
		SessionClose:         getEnv("SESSION_CLOSE", "16:00"),
		ORDurationMin:        getEnvInt("OR_DURATION_MIN", 5),
		EnableORFilter:       getEnv("ENABLE_OR_FILTER", "true") == "true",
		MinORRange:           getEnvFloat("MIN_OR_RANGE", 12.0),
		MaxORRange:           getEnvFloat("MAX_OR_RANGE", 18.0),
		RiskReward:           getEnvFloat("RISK_REWARD", 2),
		SkipFirstN:           getEnvInt("SKIP_FIRST_N", 5),
		FVGLookback:          getEnvInt("FVG_LOOKBACK", 3),
		RetestPct:            getEnvFloat("RETEST_PCT", 0.05),
		MinBodyRatio:         getEnvFloat("MIN_BODY_RATIO", 0.30),
		MaxInvalidations:     getEnvInt("MAX_INVALIDATIONS", 2),
		MinEntryTime:         getEnv("MIN_ENTRY_TIME", "10:00"),
		Max1mCandles:         getEnvInt("MAX_1M_CANDLES", 500),
		Max5mCandles:         getEnvInt("MAX_5M_CANDLES", 100),
		DryRun:               getEnv("DRY_RUN", "false") == "true",
		DryRunInitialBalance: getEnvFloat("DRY_RUN_INITIAL_BALANCE", 10000.0),
		ModelsPath:           getEnv("MODELS_PATH", "models.yaml"),
		DBPath:               getEnv("DB_PATH", "./data/trader.db"),
		DryRunDBPath:         getEnv("DRY_RUN_DB_PATH", "./data/trader_dry.db"),
		JWTSecret:            getEnv("JWT_SECRET", "dev-secret"),
		OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),
	}

	if !cfg.DryRun && !cfg.UseMockFeed && (cfg.OandaAccountID == "" || cfg.OandaToken == "") {
		return nil, fmt.Errorf("OANDA_ACCOUNT_ID and OANDA_ACCESS_TOKEN are required outside dry-run/mock mode")
	}
	return cfg, nil
}

// ParseClock splits a "HH:MM" value into hour and minute.
func ParseClock(v string) (hour, minute int, err error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock value %q", v)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q", v)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q", v)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock value %q out of range", v)
	}
	return hour, minute, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
