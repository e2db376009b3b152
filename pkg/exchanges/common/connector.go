package common

import "context"

// Connector is the REST surface every exchange adapter implements. The
// aggregator, strategy evaluator and order executor only ever see this
// interface; per-exchange quirks (signature scheme, PnL math, sizing rules)
// stay behind it.
type Connector interface {
	// Name identifies the venue ("binance", "bitmex").
	Name() string

	GetContracts(ctx context.Context) (map[string]Contract, error)
	GetBalances(ctx context.Context) (map[string]Balance, error)
	GetHistoricalCandles(ctx context.Context, contract Contract, timeframe string) ([]Candle, error)

	// GetBidAsk polls the current best bid/ask over REST. It backs the same
	// quote board the stream feeds, last writer wins.
	GetBidAsk(ctx context.Context, contract Contract) (QuoteUpdate, error)

	// PlaceOrder submits an order. It is NOT retried on failure here: a blind
	// retry risks a duplicate position, so the retry decision belongs to the
	// caller.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderStatus, error)
	CancelOrder(ctx context.Context, contract Contract, orderID string) (OrderStatus, error)
	GetOrderStatus(ctx context.Context, contract Contract, orderID string) (OrderStatus, error)

	// TradeSize converts a balance percentage into an order quantity in
	// contract units at the given price, applying the venue's multiplier and
	// inverse/quanto rules and rounding to the lot size.
	TradeSize(ctx context.Context, contract Contract, price float64, balancePct float64) (float64, error)
}
