package bitmex

import (
	"strconv"

	"trading-bot/pkg/exchanges/common"
)

type instrument struct {
	Symbol        string  `json:"symbol"`
	RootSymbol    string  `json:"rootSymbol"`
	QuoteCurrency string  `json:"quoteCurrency"`
	TickSize      float64 `json:"tickSize"`
	LotSize       float64 `json:"lotSize"`
	Multiplier    float64 `json:"multiplier"`
	IsInverse     bool    `json:"isInverse"`
	IsQuanto      bool    `json:"isQuanto"`
	BidPrice      float64 `json:"bidPrice"`
	AskPrice      float64 `json:"askPrice"`
}

type marginEntry struct {
	Currency      string  `json:"currency"`
	WalletBalance float64 `json:"walletBalance"`
	UnrealisedPnl float64 `json:"unrealisedPnl"`
}

type bucketedTrade struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type orderEntry struct {
	OrderID   string  `json:"orderID"`
	Symbol    string  `json:"symbol"`
	OrdStatus string  `json:"ordStatus"`
	AvgPx     float64 `json:"avgPx"`
	CumQty    float64 `json:"cumQty"`
}

func (o orderEntry) toStatus() common.OrderStatus {
	return common.OrderStatus{
		OrderID:     o.OrderID,
		Symbol:      o.Symbol,
		Status:      mapStatus(o.OrdStatus),
		AvgPrice:    o.AvgPx,
		ExecutedQty: o.CumQty,
	}
}

func mapStatus(s string) common.StatusCode {
	switch s {
	case "New":
		return common.StatusNew
	case "PartiallyFilled":
		return common.StatusPartial
	case "Filled":
		return common.StatusFilled
	case "Canceled", "Expired":
		return common.StatusCanceled
	case "Rejected":
		return common.StatusRejected
	default:
		return common.StatusUnknown
	}
}

// formatFloat renders a float without exponent notation, as the API requires.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// decimalsFromStep counts the decimal places a step size implies, e.g. a
// 0.05 tick needs two.
func decimalsFromStep(step float64) int {
	if step <= 0 {
		return 0
	}
	s := strconv.FormatFloat(step, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return len(s) - i - 1
		}
	}
	return 0
}
