package strategy

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is one named strategy configuration in YAML.
type Preset struct {
	Name     string `yaml:"name"`
	Params   Params `yaml:",inline"`
	IsActive bool   `yaml:"is_active"`
}

// presetFile is the top-level YAML structure.
type presetFile struct {
	Strategies []Preset `yaml:"strategies"`
}

// LoadPresets reads strategy presets from a YAML file.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Strategies, nil
}

// SyncPresetsToDB upserts presets into the strategies table, keyed by name,
// so edits to the YAML survive restarts without duplicating rows.
func SyncPresetsToDB(db *sql.DB, presets []Preset) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO strategies (name, strategy_type, exchange, symbol, timeframe, balance_pct, take_profit_pct, stop_loss_pct, extra_params, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			strategy_type = excluded.strategy_type,
			exchange = excluded.exchange,
			symbol = excluded.symbol,
			timeframe = excluded.timeframe,
			balance_pct = excluded.balance_pct,
			take_profit_pct = excluded.take_profit_pct,
			stop_loss_pct = excluded.stop_loss_pct,
			extra_params = excluded.extra_params,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range presets {
		extraJSON, err := json.Marshal(p.Params.Extra)
		if err != nil {
			return fmt.Errorf("marshal extras for preset %s: %w", p.Name, err)
		}
		_, err = stmt.Exec(
			p.Name,
			p.Params.Type,
			p.Params.Exchange,
			p.Params.Symbol,
			p.Params.Timeframe,
			p.Params.BalancePct,
			p.Params.TakeProfitPct,
			p.Params.StopLossPct,
			string(extraJSON),
			p.IsActive,
		)
		if err != nil {
			return fmt.Errorf("upsert preset %s: %w", p.Name, err)
		}
	}
	return tx.Commit()
}
