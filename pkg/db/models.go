package db

// WatchlistEntry is one contract the operator tracks.
type WatchlistEntry struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

// StrategyRow is a persisted strategy configuration.
type StrategyRow struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Exchange      string  `json:"exchange"`
	Symbol        string  `json:"symbol"`
	Timeframe     string  `json:"timeframe"`
	BalancePct    float64 `json:"balance_pct"`
	TakeProfitPct float64 `json:"take_profit_pct"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	ExtraParams   string  `json:"extra_params"`
	IsActive      bool    `json:"is_active"`
}

// ClosedTrade is one realized trade in the journal.
type ClosedTrade struct {
	ID         string  `json:"id"`
	Strategy   string  `json:"strategy"`
	Exchange   string  `json:"exchange"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	EntryTime  int64   `json:"entry_time"`
	ExitTime   int64   `json:"exit_time"`
	PnL        float64 `json:"pnl"`
	Reason     string  `json:"reason"`
}
