package bitmex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"trading-bot/pkg/exchanges/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "test-key", APISecret: "test-secret"})
	c.baseURL = srv.URL
	return c
}

func TestRequestSignsMethodPathQueryExpires(t *testing.T) {
	var verified bool
	var freshExpiry bool

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		expires := r.Header.Get("api-expires")
		sig := r.Header.Get("api-signature")

		message := r.Method + r.URL.Path + expires
		if r.URL.RawQuery != "" {
			message = r.Method + r.URL.Path + "?" + r.URL.RawQuery + expires
		}
		mac := hmac.New(sha256.New, []byte("test-secret"))
		mac.Write([]byte(message))
		verified = sig == hex.EncodeToString(mac.Sum(nil))

		exp, _ := strconv.ParseInt(expires, 10, 64)
		freshExpiry = exp > time.Now().Unix()

		w.Write([]byte(`[]`))
	})

	if _, err := c.GetBalances(context.Background()); err != nil {
		t.Fatalf("GetBalances: %v", err)
	}
	if !verified {
		t.Fatalf("signature does not cover method+path+query+expires")
	}
	if !freshExpiry {
		t.Fatalf("api-expires is not in the future")
	}
}

func TestGetContractsNormalizesMultiplier(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"XBTUSD","rootSymbol":"XBT","quoteCurrency":"USD","tickSize":0.5,"lotSize":100,"multiplier":-100000000,"isInverse":true,"isQuanto":false},
			{"symbol":"ETHUSD","rootSymbol":"ETH","quoteCurrency":"USD","tickSize":0.05,"lotSize":1,"multiplier":100,"isInverse":false,"isQuanto":true}
		]`))
	})

	contracts, err := c.GetContracts(context.Background())
	if err != nil {
		t.Fatalf("GetContracts: %v", err)
	}

	xbt := contracts["XBTUSD"]
	if !xbt.Inverse || xbt.Multiplier != 1 {
		t.Fatalf("inverse multiplier not normalized to XBT: %+v", xbt)
	}
	if xbt.PriceDecimals != 1 {
		t.Fatalf("0.5 tick implies 1 decimal, got %d", xbt.PriceDecimals)
	}

	eth := contracts["ETHUSD"]
	if !eth.Quanto || eth.Multiplier != 0.000001 {
		t.Fatalf("quanto multiplier not normalized: %+v", eth)
	}
	if eth.PriceDecimals != 2 {
		t.Fatalf("0.05 tick implies 2 decimals, got %d", eth.PriceDecimals)
	}
}

func TestGetHistoricalCandlesOldestFirst(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("reverse") != "true" || q.Get("partial") != "true" {
			t.Errorf("expected reverse+partial query, got %v", q)
		}
		// Newest first, as the endpoint returns with reverse=true.
		w.Write([]byte(`[
			{"timestamp":"2023-08-31T01:00:00.000Z","open":101,"high":102,"low":100,"close":101.5,"volume":20},
			{"timestamp":"2023-08-31T00:00:00.000Z","open":100,"high":101,"low":99,"close":101,"volume":10}
		]`))
	})

	candles, err := c.GetHistoricalCandles(context.Background(), common.Contract{Symbol: "XBTUSD"}, "1h")
	if err != nil {
		t.Fatalf("GetHistoricalCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Timestamp >= candles[1].Timestamp {
		t.Fatalf("candles not oldest first: %d then %d", candles[0].Timestamp, candles[1].Timestamp)
	}
	if candles[0].Open != 100 || candles[1].Close != 101.5 {
		t.Fatalf("candles parsed wrong: %+v", candles)
	}
}

func TestTradeSizeInverseAndQuanto(t *testing.T) {
	// One XBT in the wallet, expressed in satoshis on the wire.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"currency":"XBt","walletBalance":100000000,"unrealisedPnl":0}]`))
	})

	inverse := common.Contract{Symbol: "XBTUSD", Inverse: true, Multiplier: 1, LotSize: 100}
	got, err := c.TradeSize(context.Background(), inverse, 20000, 100)
	if err != nil {
		t.Fatalf("TradeSize inverse: %v", err)
	}
	// 1 XBT / (1/20000) = 20000 contracts.
	if got != 20000 {
		t.Fatalf("inverse sizing: expected 20000 contracts, got %v", got)
	}

	quanto := common.Contract{Symbol: "ETHUSD", Quanto: true, Multiplier: 0.000001, LotSize: 1}
	got, err = c.TradeSize(context.Background(), quanto, 2000, 50)
	if err != nil {
		t.Fatalf("TradeSize quanto: %v", err)
	}
	// 0.5 XBT / (0.000001*2000) = 250 contracts.
	if got != 250 {
		t.Fatalf("quanto sizing: expected 250 contracts, got %v", got)
	}
}

func TestTradeSizeFloorsToWholeContracts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"currency":"XBt","walletBalance":33000000,"unrealisedPnl":0}]`))
	})

	inverse := common.Contract{Symbol: "XBTUSD", Inverse: true, Multiplier: 1, LotSize: 1}
	got, err := c.TradeSize(context.Background(), inverse, 10001, 10)
	if err != nil {
		t.Fatalf("TradeSize: %v", err)
	}
	if got != float64(int64(got)) {
		t.Fatalf("contract count not whole: %v", got)
	}
}

func TestGetOrderStatusPicksOrderByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"orderID":"aaa","symbol":"XBTUSD","ordStatus":"Filled","avgPx":20000,"cumQty":100},
			{"orderID":"bbb","symbol":"XBTUSD","ordStatus":"New","avgPx":0,"cumQty":0}
		]`))
	})

	status, err := c.GetOrderStatus(context.Background(), common.Contract{Symbol: "XBTUSD"}, "bbb")
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if status.OrderID != "bbb" || status.Status != common.StatusNew {
		t.Fatalf("wrong order picked: %+v", status)
	}

	if _, err := c.GetOrderStatus(context.Background(), common.Contract{Symbol: "XBTUSD"}, "zzz"); err == nil {
		t.Fatalf("expected error for unknown order id")
	}
}

func TestDecimalsFromStep(t *testing.T) {
	tests := []struct {
		step float64
		want int
	}{
		{0.5, 1},
		{0.05, 2},
		{0.001, 3},
		{1, 0},
		{100, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := decimalsFromStep(tt.step); got != tt.want {
			t.Fatalf("decimalsFromStep(%v)=%d, expected %d", tt.step, got, tt.want)
		}
	}
}
