package config

import "testing"

func TestParseClock(t *testing.T) {
	tests := []struct {
		in        string
		hour, min int
		wantErr   bool
	}{
		{"09:30", 9, 30, false},
		{"16:00", 16, 0, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"09:60", 0, 0, true},
		{"930", 0, 0, true},
		{"nine:30", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v, wantErr = %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && (h != tt.hour || m != tt.min) {
			t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.min)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DRY_RUN", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Instrument != "XAU_USD" {
		t.Errorf("instrument = %s", cfg.Instrument)
	}
	if cfg.SessionOpen != "09:30" || cfg.SessionClose != "16:00" {
		t.Errorf("session window = %s-%s", cfg.SessionOpen, cfg.SessionClose)
	}
	if cfg.ORDurationMin != 5 || cfg.Units != 3 {
		t.Errorf("or_duration = %d, units = %d", cfg.ORDurationMin, cfg.Units)
	}
	if !cfg.EnableORFilter || cfg.MinORRange != 12.0 || cfg.MaxORRange != 18.0 {
		t.Errorf("or filter = %v [%.1f, %.1f]", cfg.EnableORFilter, cfg.MinORRange, cfg.MaxORRange)
	}
}

func TestLoadRequiresCredentialsForLive(t *testing.T) {
	t.Setenv("DRY_RUN", "false")
	t.Setenv("USE_MOCK_FEED", "false")
	t.Setenv("OANDA_ACCOUNT_ID", "")
	t.Setenv("OANDA_ACCESS_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("live mode without credentials did not error")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DRY_RUN", "true")
	t.Setenv("RISK_REWARD", "3")
	t.Setenv("MAX_INVALIDATIONS", "1")
	t.Setenv("MIN_ENTRY_TIME", "10:30")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RiskReward != 3 || cfg.MaxInvalidations != 1 || cfg.MinEntryTime != "10:30" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}
