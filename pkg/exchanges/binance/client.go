package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trading-bot/pkg/exchanges/common"
)

// Config holds Binance USDT-M futures credentials.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
}

// Client talks to the Binance USDT-M futures REST API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	clock      *common.Clock
	usage      *common.UsageTracker
}

// NewClient builds a REST client; Testnet switches the base URL.
func NewClient(cfg Config) *Client {
	base := "https://fapi.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binancefuture.com"
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		usage:      common.NewUsageTracker(2400, time.Minute),
	}
	c.clock = common.NewClock(c.GetServerTime)
	return c
}

// Name identifies the venue.
func (c *Client) Name() string { return "binance" }

// Clock exposes the server-time clock so main can run periodic resyncs.
func (c *Client) Clock() *common.Clock { return c.clock }

// NearLimit reports whether the observed request weight is close to the
// venue's budget. Pollers back off rather than spend the remainder.
func (c *Client) NearLimit() bool { return c.usage.NearLimit() }

// sign computes the HMAC-SHA256 hex signature over the url-encoded query
// string, per the Binance futures signature scheme.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// request issues one REST call. Signed requests get a timestamp and a
// signature appended to the query string. Binance futures accepts all order
// parameters in the query string regardless of method, so the body stays
// empty. A nil result always comes with a non-nil error; callers must treat
// it as "the operation did not happen", never as a zero value.
func (c *Client) request(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.clock.Now(), 10))
		params.Set("signature", c.sign(params.Encode()))
	}

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodDelete:
	default:
		return nil, fmt.Errorf("binance: unsupported method %q", method)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	c.usage.Observe(res.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance %s %s status %d: %s", method, path, res.StatusCode, string(body))
	}
	return body, nil
}

// GetContracts fetches the tradable instrument catalog.
func (c *Client) GetContracts(ctx context.Context) (map[string]common.Contract, error) {
	body, err := c.request(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil, false)
	if err != nil {
		return nil, err
	}

	var info exchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}

	contracts := make(map[string]common.Contract, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.MarginAsset == "BUSD" {
			continue
		}
		contracts[s.Symbol] = common.Contract{
			Symbol:        s.Symbol,
			Exchange:      c.Name(),
			BaseAsset:     s.BaseAsset,
			QuoteAsset:    s.QuoteAsset,
			PriceDecimals: s.PricePrecision,
			QtyDecimals:   s.QuantityPrecision,
			TickSize:      1 / math.Pow10(s.PricePrecision),
			LotSize:       1 / math.Pow10(s.QuantityPrecision),
			Multiplier:    1,
		}
	}
	return contracts, nil
}

// GetBalances fetches per-asset account balances.
func (c *Client) GetBalances(ctx context.Context) (map[string]common.Balance, error) {
	body, err := c.request(ctx, http.MethodGet, "/fapi/v1/account", nil, true)
	if err != nil {
		return nil, err
	}

	var acct accountInfo
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}

	balances := make(map[string]common.Balance, len(acct.Assets))
	for _, a := range acct.Assets {
		balances[a.Asset] = common.Balance{
			Asset:         a.Asset,
			WalletBalance: parseFloat(a.WalletBalance),
			UnrealizedPnL: parseFloat(a.UnrealizedProfit),
		}
	}
	return balances, nil
}

// GetHistoricalCandles fetches the most recent klines for a contract.
func (c *Client) GetHistoricalCandles(ctx context.Context, contract common.Contract, timeframe string) ([]common.Candle, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("interval", timeframe)
	params.Set("limit", "1000")

	body, err := c.request(ctx, http.MethodGet, "/fapi/v1/klines", params, false)
	if err != nil {
		return nil, err
	}

	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]common.Candle, 0, len(raw))
	for _, k := range raw {
		// Binance returns 12 fields per kline; the first 6 are all we need.
		if len(k) < 6 {
			continue
		}
		candles = append(candles, common.Candle{
			Timestamp: toInt64(k[0]),
			Open:      toFloat(k[1]),
			High:      toFloat(k[2]),
			Low:       toFloat(k[3]),
			Close:     toFloat(k[4]),
			Volume:    toFloat(k[5]),
			Timeframe: timeframe,
		})
	}
	return candles, nil
}

// GetBidAsk polls the best bid/ask for a contract.
func (c *Client) GetBidAsk(ctx context.Context, contract common.Contract) (common.QuoteUpdate, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)

	body, err := c.request(ctx, http.MethodGet, "/fapi/v1/ticker/bookTicker", params, false)
	if err != nil {
		return common.QuoteUpdate{}, err
	}

	var t bookTicker
	if err := json.Unmarshal(body, &t); err != nil {
		return common.QuoteUpdate{}, fmt.Errorf("decode book ticker: %w", err)
	}
	return common.QuoteUpdate{
		Exchange: c.Name(),
		Symbol:   contract.Symbol,
		Bid:      parseFloat(t.BidPrice),
		Ask:      parseFloat(t.AskPrice),
	}, nil
}

// PlaceOrder submits an order, rounding quantity and price to the contract's
// lot/tick steps. Never retried here: a duplicate market order is worse than
// a missed one.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", req.Contract.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", formatFloat(common.RoundToStep(req.Quantity, req.Contract.LotSize)))

	if req.Type == common.OrderTypeLimit {
		params.Set("price", formatFloat(common.RoundToStep(req.Price, req.Contract.TickSize)))
		tif := req.TimeInForce
		if tif == "" {
			tif = common.TIFGTC
		}
		params.Set("timeInForce", string(tif))
	}
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}

	body, err := c.request(ctx, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		return common.OrderStatus{}, err
	}
	return decodeOrder(body)
}

// CancelOrder cancels an order by exchange order ID.
func (c *Client) CancelOrder(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("orderId", orderID)

	body, err := c.request(ctx, http.MethodDelete, "/fapi/v1/order", params, true)
	if err != nil {
		return common.OrderStatus{}, err
	}
	return decodeOrder(body)
}

// GetOrderStatus queries a single order. Binance occasionally rejects this
// endpoint under heavy market load; the caller's polling loop absorbs that.
func (c *Client) GetOrderStatus(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("orderId", orderID)

	body, err := c.request(ctx, http.MethodGet, "/fapi/v1/order", params, true)
	if err != nil {
		return common.OrderStatus{}, err
	}
	return decodeOrder(body)
}

// TradeSize converts a USDT balance percentage into a base-asset quantity at
// the given price, rounded to the contract's lot size.
func (c *Client) TradeSize(ctx context.Context, contract common.Contract, price float64, balancePct float64) (float64, error) {
	balances, err := c.GetBalances(ctx)
	if err != nil {
		return 0, err
	}
	usdt, ok := balances["USDT"]
	if !ok {
		return 0, fmt.Errorf("binance: no USDT balance")
	}

	size := usdt.WalletBalance * balancePct / 100 / price
	size = common.RoundToStep(size, contract.LotSize)

	log.Printf("binance: USDT balance %.2f, trade size %v %s", usdt.WalletBalance, size, contract.Symbol)
	return size, nil
}

// GetServerTime fetches the exchange clock in milliseconds.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	body, err := c.request(ctx, http.MethodGet, "/fapi/v1/time", nil, false)
	if err != nil {
		return 0, err
	}
	var res struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, err
	}
	return res.ServerTime, nil
}

func decodeOrder(body []byte) (common.OrderStatus, error) {
	var o orderResp
	if err := json.Unmarshal(body, &o); err != nil {
		return common.OrderStatus{}, fmt.Errorf("decode order: %w", err)
	}
	return common.OrderStatus{
		OrderID:     strconv.FormatInt(o.OrderID, 10),
		Symbol:      o.Symbol,
		Status:      mapStatus(o.Status),
		AvgPrice:    parseFloat(o.AvgPrice),
		ExecutedQty: parseFloat(o.ExecutedQty),
	}, nil
}

func mapStatus(s string) common.StatusCode {
	switch s {
	case "NEW":
		return common.StatusNew
	case "PARTIALLY_FILLED":
		return common.StatusPartial
	case "FILLED":
		return common.StatusFilled
	case "CANCELED", "EXPIRED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	default:
		return common.StatusUnknown
	}
}
