package common

// Side denotes trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes the order types the connectors support.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good Till Cancelled
	TIFIOC TimeInForce = "IOC" // Immediate Or Cancel
	TIFFOK TimeInForce = "FOK" // Fill Or Kill
)

// StatusCode normalizes exchange order status into a small set.
type StatusCode string

const (
	StatusNew      StatusCode = "NEW"
	StatusPartial  StatusCode = "PARTIALLY_FILLED"
	StatusFilled   StatusCode = "FILLED"
	StatusCanceled StatusCode = "CANCELED"
	StatusRejected StatusCode = "REJECTED"
	StatusUnknown  StatusCode = "UNKNOWN"
)

// Contract describes a tradable instrument. Immutable after the catalog fetch;
// refreshed only by re-fetching the whole catalog.
type Contract struct {
	Symbol        string  `json:"symbol"`
	Exchange      string  `json:"exchange"`
	BaseAsset     string  `json:"base_asset"`
	QuoteAsset    string  `json:"quote_asset"`
	PriceDecimals int     `json:"price_decimals"`
	QtyDecimals   int     `json:"qty_decimals"`
	TickSize      float64 `json:"tick_size"`
	LotSize       float64 `json:"lot_size"`
	Multiplier    float64 `json:"multiplier"`
	Inverse       bool    `json:"inverse"`
	Quanto        bool    `json:"quanto"`
}

// Balance is one asset's account balance.
type Balance struct {
	Asset         string  `json:"asset"`
	WalletBalance float64 `json:"wallet_balance"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Candle is the wire-level OHLCV bar returned by historical endpoints.
// Timestamp is the bar open time in milliseconds, aligned to the timeframe.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Timeframe string  `json:"timeframe"`
}

// OrderRequest captures an order intent to be sent to an exchange.
// Quantity and Price must already be rounded to the contract's lot/tick steps.
type OrderRequest struct {
	Contract    Contract
	Side        Side
	Type        OrderType
	Quantity    float64
	Price       float64 // LIMIT only
	TimeInForce TimeInForce
	ClientID    string
}

// OrderStatus is the exchange's view of an order.
type OrderStatus struct {
	OrderID     string
	Symbol      string
	Status      StatusCode
	AvgPrice    float64
	ExecutedQty float64
}

// QuoteUpdate is a best bid/ask change delivered by a stream or REST poll.
type QuoteUpdate struct {
	Exchange string
	Symbol   string
	Bid      float64
	Ask      float64
}

// TradePrint is a single executed trade delivered by a stream.
// Timestamp is the exchange event time in milliseconds.
type TradePrint struct {
	Exchange  string
	Symbol    string
	Price     float64
	Size      float64
	Timestamp int64
}
