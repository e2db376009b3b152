package order

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"trading-bot/internal/events"
	"trading-bot/pkg/exchanges/common"
)

// fakeConn scripts a venue for executor tests.
type fakeConn struct {
	mu           sync.Mutex
	tradeSize    float64
	placeErr     error
	fillAfter    int // status polls before the order reports filled; -1 never fills
	fillPrice    float64
	statusCalls  int
	cancelCalls  int
	placedOrders []common.OrderRequest
}

func (f *fakeConn) Name() string { return "fake" }

func (f *fakeConn) GetContracts(context.Context) (map[string]common.Contract, error) {
	return nil, nil
}

func (f *fakeConn) GetBalances(context.Context) (map[string]common.Balance, error) {
	return nil, nil
}

func (f *fakeConn) GetHistoricalCandles(context.Context, common.Contract, string) ([]common.Candle, error) {
	return nil, nil
}

func (f *fakeConn) GetBidAsk(context.Context, common.Contract) (common.QuoteUpdate, error) {
	return common.QuoteUpdate{}, nil
}

func (f *fakeConn) PlaceOrder(_ context.Context, req common.OrderRequest) (common.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return common.OrderStatus{}, f.placeErr
	}
	f.placedOrders = append(f.placedOrders, req)
	return common.OrderStatus{OrderID: fmt.Sprintf("ord-%d", len(f.placedOrders)), Symbol: req.Contract.Symbol, Status: common.StatusNew}, nil
}

func (f *fakeConn) CancelOrder(_ context.Context, _ common.Contract, orderID string) (common.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return common.OrderStatus{OrderID: orderID, Status: common.StatusCanceled}, nil
}

func (f *fakeConn) GetOrderStatus(_ context.Context, _ common.Contract, orderID string) (common.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.fillAfter >= 0 && f.statusCalls > f.fillAfter {
		return common.OrderStatus{OrderID: orderID, Status: common.StatusFilled, AvgPrice: f.fillPrice, ExecutedQty: f.tradeSize}, nil
	}
	return common.OrderStatus{OrderID: orderID, Status: common.StatusNew}, nil
}

func (f *fakeConn) TradeSize(context.Context, common.Contract, float64, float64) (float64, error) {
	return f.tradeSize, nil
}

func newTestExecutor(conn *fakeConn) *Executor {
	e := NewExecutor(conn, events.NewBus(), events.NewLogFeed(0))
	e.pollInterval = time.Millisecond
	e.maxPolls = 3
	return e
}

var linear = common.Contract{Symbol: "BTCUSDT", Exchange: "binance", Multiplier: 1, LotSize: 0.001}

func TestOpenPositionConfirmsFill(t *testing.T) {
	conn := &fakeConn{tradeSize: 0.5, fillAfter: 1, fillPrice: 20000}
	e := newTestExecutor(conn)

	tr, err := e.OpenPosition(context.Background(), linear, common.SideBuy, 20000, 10, 5, 2, "test")
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	if tr.CurrentState() != StateOpen {
		t.Fatalf("expected OPEN, got %s", tr.CurrentState())
	}
	entry, ok := tr.EntryPrice()
	if !ok || entry != 20000 {
		t.Fatalf("entry price not recorded: %v %v", entry, ok)
	}
	if len(conn.placedOrders) != 1 || conn.placedOrders[0].Side != common.SideBuy {
		t.Fatalf("entry order wrong: %+v", conn.placedOrders)
	}
}

func TestOpenPositionBoundedPollingFails(t *testing.T) {
	conn := &fakeConn{tradeSize: 0.5, fillAfter: -1}
	e := newTestExecutor(conn)

	tr, err := e.OpenPosition(context.Background(), linear, common.SideBuy, 20000, 10, 0, 0, "test")
	if err == nil {
		t.Fatalf("expected error when order never fills")
	}
	if tr.CurrentState() != StateEntryFailed {
		t.Fatalf("expected ENTRY_FAILED, got %s", tr.CurrentState())
	}
	if conn.statusCalls != e.maxPolls {
		t.Fatalf("expected exactly %d polls, got %d", e.maxPolls, conn.statusCalls)
	}
	if conn.cancelCalls != 1 {
		t.Fatalf("unfilled entry must be cancelled, got %d cancels", conn.cancelCalls)
	}
	if _, ok := tr.EntryPrice(); ok {
		t.Fatalf("failed entry must not record a price")
	}
}

func TestOpenPositionZeroSizeRejected(t *testing.T) {
	conn := &fakeConn{tradeSize: 0}
	e := newTestExecutor(conn)

	if _, err := e.OpenPosition(context.Background(), linear, common.SideBuy, 20000, 10, 0, 0, "test"); err == nil {
		t.Fatalf("expected error for zero trade size")
	}
	if len(conn.placedOrders) != 0 {
		t.Fatalf("no order may be placed for zero size")
	}
}

func TestRequestExitTwoPhase(t *testing.T) {
	conn := &fakeConn{tradeSize: 0.5, fillAfter: 0, fillPrice: 20000}
	e := newTestExecutor(conn)

	tr, err := e.OpenPosition(context.Background(), linear, common.SideBuy, 20000, 10, 0, 0, "test")
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	var closed []Snapshot
	e.OnClosed = func(s Snapshot) { closed = append(closed, s) }

	conn.mu.Lock()
	conn.statusCalls = 0
	conn.fillPrice = 21000
	conn.mu.Unlock()

	if err := e.RequestExit(context.Background(), tr, "take profit"); err != nil {
		t.Fatalf("RequestExit: %v", err)
	}
	if tr.CurrentState() != StateClosed {
		t.Fatalf("expected CLOSED, got %s", tr.CurrentState())
	}
	if len(conn.placedOrders) != 2 || conn.placedOrders[1].Side != common.SideSell {
		t.Fatalf("exit must be the opposite side: %+v", conn.placedOrders)
	}
	if len(closed) != 1 {
		t.Fatalf("OnClosed not invoked")
	}
	// Long 0.5 from 20000 to 21000 on a multiplier-1 contract.
	if closed[0].PnL != 500 {
		t.Fatalf("realized pnl wrong: %v", closed[0].PnL)
	}

	// A second exit request on a closed trade is a no-op.
	if err := e.RequestExit(context.Background(), tr, "again"); err != nil {
		t.Fatalf("exit on closed trade must be a no-op, got %v", err)
	}
	if len(conn.placedOrders) != 2 {
		t.Fatalf("closed trade placed another order: %+v", conn.placedOrders)
	}
}

func TestRequestExitRevertsOnRejection(t *testing.T) {
	conn := &fakeConn{tradeSize: 0.5, fillAfter: 0, fillPrice: 20000}
	e := newTestExecutor(conn)

	tr, err := e.OpenPosition(context.Background(), linear, common.SideBuy, 20000, 10, 0, 0, "test")
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	conn.mu.Lock()
	conn.placeErr = fmt.Errorf("venue down")
	conn.mu.Unlock()

	if err := e.RequestExit(context.Background(), tr, "stop loss"); err == nil {
		t.Fatalf("expected error from rejected exit")
	}
	if tr.CurrentState() != StateOpen {
		t.Fatalf("rejected exit must revert to OPEN, got %s", tr.CurrentState())
	}
}

func TestSetEntryOnlyOnce(t *testing.T) {
	tr := &Trade{ID: "t1", Contract: linear, Side: common.SideBuy, state: StatePendingEntry}
	if err := tr.SetEntry(100, 1); err != nil {
		t.Fatalf("first SetEntry: %v", err)
	}
	if err := tr.SetEntry(200, 2); err == nil {
		t.Fatalf("second SetEntry must fail")
	}
	if p, _ := tr.EntryPrice(); p != 100 {
		t.Fatalf("entry price moved: %v", p)
	}
}

func TestPnLFormulas(t *testing.T) {
	lin := common.Contract{Multiplier: 1}
	inv := common.Contract{Multiplier: 1, Inverse: true}

	tests := []struct {
		name     string
		contract common.Contract
		side     common.Side
		entry    float64
		current  float64
		qty      float64
		want     float64
	}{
		{"linear long profit", lin, common.SideBuy, 100, 110, 2, 20},
		{"linear long loss", lin, common.SideBuy, 100, 90, 2, -20},
		{"linear short profit", lin, common.SideSell, 100, 90, 2, 20},
		{"linear short loss", lin, common.SideSell, 100, 110, 2, -20},
		{"inverse long profit", inv, common.SideBuy, 100, 125, 1000, 2},
		{"inverse short profit", inv, common.SideSell, 125, 100, 1000, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PnL(tt.contract, tt.side, tt.entry, tt.current, tt.qty)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("PnL=%v, expected %v", got, tt.want)
			}
		})
	}
}

func TestMoveRatioSignFlipsForShorts(t *testing.T) {
	long := &Trade{Contract: linear, Side: common.SideBuy, state: StatePendingEntry}
	long.SetEntry(100, 1)
	if got := long.MoveRatio(105); got != 5 {
		t.Fatalf("long move: %v", got)
	}

	short := &Trade{Contract: linear, Side: common.SideSell, state: StatePendingEntry}
	short.SetEntry(100, 1)
	if got := short.MoveRatio(95); got != 5 {
		t.Fatalf("short move: %v", got)
	}
	if got := short.MoveRatio(105); got != -5 {
		t.Fatalf("short adverse move: %v", got)
	}
}
