package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trading-bot/pkg/db"
)

func TestLoadPresets(t *testing.T) {
	yamlBody := `
strategies:
  - name: btc-momentum
    type: technical
    exchange: binance
    symbol: BTCUSDT
    timeframe: 15m
    balance_pct: 10
    take_profit_pct: 4
    stop_loss_pct: 2
    extra:
      rsi_length: 10
    is_active: true
  - name: xbt-breakout
    type: breakout
    exchange: bitmex
    symbol: XBTUSD
    timeframe: 1h
    balance_pct: 5
    take_profit_pct: 6
    stop_loss_pct: 3
    extra:
      min_volume: 2000
`
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	presets, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	if len(presets) != 2 {
		t.Fatalf("expected 2 presets, got %d", len(presets))
	}

	p := presets[0]
	if p.Name != "btc-momentum" || !p.IsActive {
		t.Fatalf("first preset header wrong: %+v", p)
	}
	if p.Params.Type != "technical" || p.Params.Timeframe != "15m" || p.Params.BalancePct != 10 {
		t.Fatalf("inline params not decoded: %+v", p.Params)
	}
	if p.Params.Extra["rsi_length"] != 10 {
		t.Fatalf("extra params not decoded: %+v", p.Params.Extra)
	}

	if presets[1].Params.Extra["min_volume"] != 2000 {
		t.Fatalf("second preset extras wrong: %+v", presets[1].Params.Extra)
	}

	if _, err := LoadPresets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file must error")
	}
}

func TestSyncPresetsToDBUpserts(t *testing.T) {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	preset := Preset{
		Name: "btc-momentum",
		Params: Params{
			Type: "technical", Exchange: "binance", Symbol: "BTCUSDT", Timeframe: "15m",
			BalancePct: 10, TakeProfitPct: 4, StopLossPct: 2,
			Extra: map[string]float64{"rsi_length": 10},
		},
		IsActive: true,
	}
	if err := SyncPresetsToDB(database.DB, []Preset{preset}); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// A second sync with changed values must update in place, not duplicate.
	preset.Params.BalancePct = 20
	if err := SyncPresetsToDB(database.DB, []Preset{preset}); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	ctx := context.Background()
	rows, err := database.Queries().Strategies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", len(rows))
	}
	if rows[0].BalancePct != 20 {
		t.Fatalf("upsert did not update balance_pct: %+v", rows[0])
	}
}
