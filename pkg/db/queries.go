// Package db persists the watchlist, strategy configurations and the trade
// journal in SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound marks lookups that matched no row.
var ErrNotFound = errors.New("record not found")

// Queries bundles the typed statements over one database.
type Queries struct {
	db *sql.DB
}

// ----------------------------------------
// Watchlist
// ----------------------------------------

// AddToWatchlist registers a contract; adding twice is a no-op.
func (q *Queries) AddToWatchlist(ctx context.Context, symbol, exchange string) error {
	if symbol == "" || exchange == "" {
		return errors.New("symbol and exchange are required")
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO watchlist (symbol, exchange) VALUES (?, ?)
		ON CONFLICT(symbol, exchange) DO NOTHING
	`, symbol, exchange)
	if err != nil {
		return fmt.Errorf("add watchlist entry: %w", err)
	}
	return nil
}

// RemoveFromWatchlist drops a contract from the watchlist.
func (q *Queries) RemoveFromWatchlist(ctx context.Context, symbol, exchange string) error {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM watchlist WHERE symbol = ? AND exchange = ?
	`, symbol, exchange)
	if err != nil {
		return fmt.Errorf("remove watchlist entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Watchlist returns every tracked contract.
func (q *Queries) Watchlist(ctx context.Context) ([]WatchlistEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT symbol, exchange FROM watchlist ORDER BY exchange, symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []WatchlistEntry
	for rows.Next() {
		var e WatchlistEntry
		if err := rows.Scan(&e.Symbol, &e.Exchange); err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Strategies
// ----------------------------------------

// Strategies returns the persisted strategy configurations.
func (q *Queries) Strategies(ctx context.Context) ([]StrategyRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, strategy_type, exchange, symbol, timeframe,
		       balance_pct, take_profit_pct, stop_loss_pct,
		       COALESCE(extra_params, ''), is_active
		FROM strategies ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var out []StrategyRow
	for rows.Next() {
		var s StrategyRow
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &s.Exchange, &s.Symbol, &s.Timeframe,
			&s.BalancePct, &s.TakeProfitPct, &s.StopLossPct, &s.ExtraParams, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StrategyByName looks up one configuration.
func (q *Queries) StrategyByName(ctx context.Context, name string) (StrategyRow, error) {
	var s StrategyRow
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, strategy_type, exchange, symbol, timeframe,
		       balance_pct, take_profit_pct, stop_loss_pct,
		       COALESCE(extra_params, ''), is_active
		FROM strategies WHERE name = ?
	`, name).Scan(&s.ID, &s.Name, &s.Type, &s.Exchange, &s.Symbol, &s.Timeframe,
		&s.BalancePct, &s.TakeProfitPct, &s.StopLossPct, &s.ExtraParams, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return StrategyRow{}, ErrNotFound
	}
	if err != nil {
		return StrategyRow{}, fmt.Errorf("query strategy %s: %w", name, err)
	}
	return s, nil
}

// ----------------------------------------
// Trade journal
// ----------------------------------------

// RecordClosedTrade appends one realized trade to the journal.
func (q *Queries) RecordClosedTrade(ctx context.Context, t ClosedTrade) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO closed_trades (id, strategy, exchange, symbol, side, quantity,
		    entry_price, exit_price, entry_time, exit_time, pnl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Strategy, t.Exchange, t.Symbol, t.Side, t.Quantity,
		t.EntryPrice, t.ExitPrice, t.EntryTime, t.ExitTime, t.PnL, t.Reason)
	if err != nil {
		return fmt.Errorf("record closed trade: %w", err)
	}
	return nil
}

// ClosedTrades returns the most recent journal entries, newest first.
func (q *Queries) ClosedTrades(ctx context.Context, limit int) ([]ClosedTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, strategy, exchange, symbol, side, quantity,
		       entry_price, exit_price, entry_time, exit_time, pnl, COALESCE(reason, '')
		FROM closed_trades ORDER BY exit_time DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query closed trades: %w", err)
	}
	defer rows.Close()

	var out []ClosedTrade
	for rows.Next() {
		var t ClosedTrade
		if err := rows.Scan(&t.ID, &t.Strategy, &t.Exchange, &t.Symbol, &t.Side, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.EntryTime, &t.ExitTime, &t.PnL, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan closed trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
