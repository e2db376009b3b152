package db

import (
	"context"
	"testing"
)

func newTestDB(t *testing.T) *Queries {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return database.Queries()
}

func TestWatchlistRoundTrip(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	if err := q.AddToWatchlist(ctx, "BTCUSDT", "binance"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := q.AddToWatchlist(ctx, "XBTUSD", "bitmex"); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Duplicate add is a no-op.
	if err := q.AddToWatchlist(ctx, "BTCUSDT", "binance"); err != nil {
		t.Fatalf("duplicate add: %v", err)
	}

	entries, err := q.Watchlist(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}

	if err := q.RemoveFromWatchlist(ctx, "BTCUSDT", "binance"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := q.RemoveFromWatchlist(ctx, "BTCUSDT", "binance"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}

	if err := q.AddToWatchlist(ctx, "", "binance"); err == nil {
		t.Fatalf("empty symbol must be rejected")
	}
}

func TestStrategyRows(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO strategies (name, strategy_type, exchange, symbol, timeframe, balance_pct, take_profit_pct, stop_loss_pct, extra_params, is_active)
		VALUES ('btc-momentum', 'technical', 'binance', 'BTCUSDT', '15m', 10, 4, 2, '{"rsi_length":10}', 1)
	`)
	if err != nil {
		t.Fatalf("seed strategy: %v", err)
	}

	all, err := q.Strategies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Name != "btc-momentum" || !all[0].IsActive {
		t.Fatalf("strategies wrong: %+v", all)
	}

	s, err := q.StrategyByName(ctx, "btc-momentum")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if s.Type != "technical" || s.BalancePct != 10 || s.ExtraParams != `{"rsi_length":10}` {
		t.Fatalf("row wrong: %+v", s)
	}

	if _, err := q.StrategyByName(ctx, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTradeJournal(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	older := ClosedTrade{
		ID: "t1", Strategy: "breakout", Exchange: "bitmex", Symbol: "XBTUSD",
		Side: "SELL", Quantity: 200, EntryPrice: 20000, ExitPrice: 19000,
		EntryTime: 1000, ExitTime: 2000, PnL: 0.0005, Reason: "take profit",
	}
	newer := older
	newer.ID, newer.ExitTime = "t2", 3000

	if err := q.RecordClosedTrade(ctx, older); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := q.RecordClosedTrade(ctx, newer); err != nil {
		t.Fatalf("record: %v", err)
	}

	trades, err := q.ClosedTrades(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(trades) != 2 || trades[0].ID != "t2" {
		t.Fatalf("expected newest first, got %+v", trades)
	}
	if trades[1].Reason != "take profit" || trades[1].PnL != 0.0005 {
		t.Fatalf("journal row wrong: %+v", trades[1])
	}

	// Duplicate IDs are rejected by the primary key.
	if err := q.RecordClosedTrade(ctx, older); err == nil {
		t.Fatalf("duplicate trade id must fail")
	}
}
