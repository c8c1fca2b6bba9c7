package detector

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelConfig is one entry model's tuning in YAML. Unset numeric fields keep
// the environment-derived defaults.
type ModelConfig struct {
	ID         int                    `yaml:"id"`
	Name       string                 `yaml:"name"`
	Enabled    bool                   `yaml:"enabled"`
	Parameters map[string]interface{} `yaml:"parameters"`
}

// ConfigFile is the top-level YAML structure.
type ConfigFile struct {
	Models []ModelConfig `yaml:"models"`
}

// LoadConfig reads entry model configs from a YAML file.
func LoadConfig(path string) ([]ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	return file.Models, nil
}

// ApplyConfig overlays YAML model configs onto base params. Model order in
// the file is evaluation priority; disabled models are dropped.
func ApplyConfig(base Params, configs []ModelConfig) Params {
	if len(configs) == 0 {
		return base
	}

	p := base
	p.EnabledModels = nil
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		p.EnabledModels = append(p.EnabledModels, cfg.ID)

		for key, raw := range cfg.Parameters {
			switch key {
			case "retest_pct":
				if v, ok := asFloat(raw); ok {
					p.RetestPct = v
				}
			case "min_body_ratio":
				if v, ok := asFloat(raw); ok {
					p.MinBodyRatio = v
				}
			case "risk_reward":
				if v, ok := asFloat(raw); ok {
					p.RiskReward = v
				}
			case "skip_first_n":
				if v, ok := asInt(raw); ok {
					p.SkipFirstN = v
				}
			case "fvg_lookback":
				if v, ok := asInt(raw); ok {
					p.FVGLookback = v
				}
			case "max_invalidations":
				if v, ok := asInt(raw); ok {
					p.MaxInvalidations = v
				}
			}
		}
	}
	return p
}

// SyncConfigToDB upserts model configs into the database for auditability.
func SyncConfigToDB(db *sql.DB, configs []ModelConfig) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO entry_models (id, name, enabled, parameters, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			enabled = excluded.enabled,
			parameters = excluded.parameters,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, cfg := range configs {
		paramsJSON, err := json.Marshal(cfg.Parameters)
		if err != nil {
			return fmt.Errorf("marshal parameters for model %d: %w", cfg.ID, err)
		}
		if _, err := stmt.Exec(cfg.ID, cfg.Name, cfg.Enabled, string(paramsJSON)); err != nil {
			return fmt.Errorf("upsert model %d: %w", cfg.ID, err)
		}
	}

	return tx.Commit()
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
