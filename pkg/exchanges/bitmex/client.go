package bitmex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trading-bot/pkg/exchanges/common"
)

// Config holds BitMEX credentials.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
}

// Client talks to the BitMEX REST API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a REST client; Testnet switches the base URL.
func NewClient(cfg Config) *Client {
	base := "https://www.bitmex.com"
	if cfg.Testnet {
		base = "https://testnet.bitmex.com"
	}
	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the venue.
func (c *Client) Name() string { return "bitmex" }

// sign computes the HMAC-SHA256 hex signature over
// method + path + "?" + query + expires (the query segment is omitted when
// there are no parameters), per the BitMEX signature scheme.
func (c *Client) sign(method, path, query, expires string) string {
	message := method + path + expires
	if query != "" {
		message = method + path + "?" + query + expires
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// request issues one REST call. Every request is signed with a short expiry
// window instead of a timestamp. A nil result always comes with a non-nil
// error; callers must treat it as "the operation did not happen".
func (c *Client) request(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodDelete:
	default:
		return nil, fmt.Errorf("bitmex: unsupported method %q", method)
	}

	query := ""
	if params != nil {
		query = params.Encode()
	}
	target := c.baseURL + path
	if query != "" {
		target += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}

	expires := strconv.FormatInt(time.Now().Unix()+5, 10)
	req.Header.Set("api-expires", expires)
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("api-signature", c.sign(method, path, query, expires))

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bitmex %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bitmex %s %s status %d: %s", method, path, res.StatusCode, string(body))
	}
	return body, nil
}

// GetContracts fetches the active instrument catalog.
func (c *Client) GetContracts(ctx context.Context) (map[string]common.Contract, error) {
	body, err := c.request(ctx, http.MethodGet, "/api/v1/instrument/active", nil)
	if err != nil {
		return nil, err
	}

	var instruments []instrument
	if err := json.Unmarshal(body, &instruments); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}

	contracts := make(map[string]common.Contract, len(instruments))
	for _, in := range instruments {
		contracts[in.Symbol] = common.Contract{
			Symbol:        in.Symbol,
			Exchange:      c.Name(),
			BaseAsset:     in.RootSymbol,
			QuoteAsset:    in.QuoteCurrency,
			PriceDecimals: decimalsFromStep(in.TickSize),
			QtyDecimals:   decimalsFromStep(in.LotSize),
			TickSize:      in.TickSize,
			LotSize:       in.LotSize,
			// The instrument feed quotes the multiplier in satoshis;
			// normalize to XBT so sizing and PnL stay in wallet units.
			Multiplier: abs(in.Multiplier) / 1e8,
			Inverse:    in.IsInverse,
			Quanto:     in.IsQuanto,
		}
	}
	return contracts, nil
}

// GetBalances fetches margin balances for all currencies, converted from
// satoshis to XBT.
func (c *Client) GetBalances(ctx context.Context) (map[string]common.Balance, error) {
	params := url.Values{}
	params.Set("currency", "all")

	body, err := c.request(ctx, http.MethodGet, "/api/v1/user/margin", params)
	if err != nil {
		return nil, err
	}

	var margins []marginEntry
	if err := json.Unmarshal(body, &margins); err != nil {
		return nil, fmt.Errorf("decode margin: %w", err)
	}

	balances := make(map[string]common.Balance, len(margins))
	for _, m := range margins {
		balances[m.Currency] = common.Balance{
			Asset:         m.Currency,
			WalletBalance: m.WalletBalance / 1e8,
			UnrealizedPnL: m.UnrealisedPnl / 1e8,
		}
	}
	return balances, nil
}

// GetHistoricalCandles fetches bucketed trades, newest first on the wire,
// returned here oldest first.
func (c *Client) GetHistoricalCandles(ctx context.Context, contract common.Contract, timeframe string) ([]common.Candle, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("partial", "true")
	params.Set("binSize", timeframe)
	params.Set("count", "500")
	params.Set("reverse", "true")

	body, err := c.request(ctx, http.MethodGet, "/api/v1/trade/bucketed", params)
	if err != nil {
		return nil, err
	}

	var raw []bucketedTrade
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode bucketed trades: %w", err)
	}

	candles := make([]common.Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		b := raw[i]
		ts, err := time.Parse(time.RFC3339, b.Timestamp)
		if err != nil {
			log.Printf("bitmex: bad bucket timestamp %q: %v", b.Timestamp, err)
			continue
		}
		candles = append(candles, common.Candle{
			Timestamp: ts.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Timeframe: timeframe,
		})
	}
	return candles, nil
}

// GetBidAsk polls the current best bid/ask from the instrument endpoint.
func (c *Client) GetBidAsk(ctx context.Context, contract common.Contract) (common.QuoteUpdate, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)

	body, err := c.request(ctx, http.MethodGet, "/api/v1/instrument", params)
	if err != nil {
		return common.QuoteUpdate{}, err
	}

	var instruments []instrument
	if err := json.Unmarshal(body, &instruments); err != nil {
		return common.QuoteUpdate{}, fmt.Errorf("decode instrument: %w", err)
	}
	if len(instruments) == 0 {
		return common.QuoteUpdate{}, fmt.Errorf("bitmex: no instrument data for %s", contract.Symbol)
	}
	return common.QuoteUpdate{
		Exchange: c.Name(),
		Symbol:   contract.Symbol,
		Bid:      instruments[0].BidPrice,
		Ask:      instruments[0].AskPrice,
	}, nil
}

// PlaceOrder submits an order, rounding quantity and price to the contract's
// lot/tick steps.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", req.Contract.Symbol)
	params.Set("side", sideName(req.Side))
	params.Set("orderQty", formatFloat(common.RoundToStep(req.Quantity, req.Contract.LotSize)))
	params.Set("ordType", ordTypeName(req.Type))

	if req.Type == common.OrderTypeLimit {
		params.Set("price", formatFloat(common.RoundToStep(req.Price, req.Contract.TickSize)))
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", tifName(req.TimeInForce))
	}
	if req.ClientID != "" {
		params.Set("clOrdID", req.ClientID)
	}

	body, err := c.request(ctx, http.MethodPost, "/api/v1/order", params)
	if err != nil {
		return common.OrderStatus{}, err
	}

	var o orderEntry
	if err := json.Unmarshal(body, &o); err != nil {
		return common.OrderStatus{}, fmt.Errorf("decode order: %w", err)
	}
	return o.toStatus(), nil
}

// CancelOrder cancels by order ID. BitMEX answers with a list even for a
// single cancel.
func (c *Client) CancelOrder(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("orderID", orderID)

	body, err := c.request(ctx, http.MethodDelete, "/api/v1/order", params)
	if err != nil {
		return common.OrderStatus{}, err
	}

	var orders []orderEntry
	if err := json.Unmarshal(body, &orders); err != nil {
		return common.OrderStatus{}, fmt.Errorf("decode cancel: %w", err)
	}
	if len(orders) == 0 {
		return common.OrderStatus{}, fmt.Errorf("bitmex: cancel %s returned no orders", orderID)
	}
	return orders[0].toStatus(), nil
}

// GetOrderStatus queries recent orders for the contract and picks out the
// requested ID; BitMEX has no single-order lookup.
func (c *Client) GetOrderStatus(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("reverse", "true")

	body, err := c.request(ctx, http.MethodGet, "/api/v1/order", params)
	if err != nil {
		return common.OrderStatus{}, err
	}

	var orders []orderEntry
	if err := json.Unmarshal(body, &orders); err != nil {
		return common.OrderStatus{}, fmt.Errorf("decode orders: %w", err)
	}
	for _, o := range orders {
		if o.OrderID == orderID {
			return o.toStatus(), nil
		}
	}
	return common.OrderStatus{}, fmt.Errorf("bitmex: order %s not found for %s", orderID, contract.Symbol)
}

// TradeSize converts an XBT balance percentage into a number of contracts at
// the given price. Inverse contracts are worth multiplier/price XBT each,
// quanto and linear contracts multiplier*price. Contracts trade in whole
// units, so the result is floored.
func (c *Client) TradeSize(ctx context.Context, contract common.Contract, price float64, balancePct float64) (float64, error) {
	balances, err := c.GetBalances(ctx)
	if err != nil {
		return 0, err
	}
	xbt, ok := balances["XBt"]
	if !ok {
		return 0, fmt.Errorf("bitmex: no XBt balance")
	}

	budget := xbt.WalletBalance * balancePct / 100

	var contracts float64
	if contract.Inverse {
		contracts = budget / (contract.Multiplier / price)
	} else {
		contracts = budget / (contract.Multiplier * price)
	}
	contracts = common.FloorToStep(contracts, 1)

	log.Printf("bitmex: XBT balance %.8f, %v contracts of %s", xbt.WalletBalance, contracts, contract.Symbol)
	return contracts, nil
}

func sideName(s common.Side) string {
	if s == common.SideBuy {
		return "Buy"
	}
	return "Sell"
}

func ordTypeName(t common.OrderType) string {
	if t == common.OrderTypeLimit {
		return "Limit"
	}
	return "Market"
}

func tifName(tif common.TimeInForce) string {
	switch tif {
	case common.TIFIOC:
		return "ImmediateOrCancel"
	case common.TIFFOK:
		return "FillOrKill"
	default:
		return "GoodTillCancel"
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
