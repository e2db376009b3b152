package order

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-bot/internal/events"
	"trading-bot/pkg/exchanges/common"
)

// fillPollInterval is how often a pending order is re-queried.
const fillPollInterval = 2 * time.Second

// maxFillPolls bounds the fill wait; a market order that has not filled after
// this many polls is treated as failed and cancelled.
const maxFillPolls = 15

// Executor turns strategy signals into venue orders and walks each trade
// through its lifecycle. OpenPosition and RequestExit block while polling for
// fills; callers run them off the market-data goroutine.
type Executor struct {
	conn common.Connector
	bus  *events.Bus
	feed *events.LogFeed

	pollInterval time.Duration
	maxPolls     int

	// OnClosed, when set, receives every trade that reaches CLOSED. Wired to
	// the trade journal at startup; must be set before the first signal.
	OnClosed func(Snapshot)

	mu     sync.Mutex
	trades []*Trade
}

// NewExecutor builds an executor for one venue connection.
func NewExecutor(conn common.Connector, bus *events.Bus, feed *events.LogFeed) *Executor {
	return &Executor{
		conn:         conn,
		bus:          bus,
		feed:         feed,
		pollInterval: fillPollInterval,
		maxPolls:     maxFillPolls,
	}
}

// Trades returns snapshots of every trade this executor has handled.
func (e *Executor) Trades() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Snapshot, 0, len(e.trades))
	for _, t := range e.trades {
		out = append(out, t.View())
	}
	return out
}

// OpenPosition sizes and submits a market entry, then polls until the fill is
// confirmed. The returned trade is OPEN on success. On a rejected or unfilled
// entry the trade ends ENTRY_FAILED and an error is returned; the order is
// never resubmitted here, a duplicate entry being worse than a missed one.
func (e *Executor) OpenPosition(ctx context.Context, contract common.Contract, side common.Side, price, balancePct, tpPct, slPct float64, strategy string) (*Trade, error) {
	qty, err := e.conn.TradeSize(ctx, contract, price, balancePct)
	if err != nil {
		return nil, fmt.Errorf("size %s: %w", contract.Symbol, err)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("size %s: balance too small for %v%% at %v", contract.Symbol, balancePct, price)
	}

	t := &Trade{
		ID:            uuid.NewString(),
		Strategy:      strategy,
		Contract:      contract,
		Side:          side,
		Quantity:      qty,
		TakeProfitPct: tpPct,
		StopLossPct:   slPct,
		state:         StatePendingEntry,
	}
	e.mu.Lock()
	e.trades = append(e.trades, t)
	e.mu.Unlock()

	status, err := e.conn.PlaceOrder(ctx, common.OrderRequest{
		Contract: contract,
		Side:     side,
		Type:     common.OrderTypeMarket,
		Quantity: qty,
		ClientID: t.ID,
	})
	if err != nil {
		t.fail("entry order rejected")
		e.feed.Add("%s: %s entry on %s rejected: %v", strategy, side, contract.Symbol, err)
		e.bus.Publish(events.EventTradeFailed, t.View())
		return t, err
	}
	t.setEntryOrderID(status.OrderID)

	fill, err := e.awaitFill(ctx, contract, status.OrderID)
	if err != nil {
		e.cancelQuietly(contract, status.OrderID)
		t.fail("entry fill not confirmed")
		e.feed.Add("%s: %s entry on %s failed: %v", strategy, side, contract.Symbol, err)
		e.bus.Publish(events.EventTradeFailed, t.View())
		return t, err
	}

	if err := t.SetEntry(fill.AvgPrice, time.Now().UnixMilli()); err != nil {
		return t, err
	}
	e.feed.Add("%s: opened %s %v %s @ %v", strategy, side, qty, contract.Symbol, fill.AvgPrice)
	log.Printf("order: trade %s open, %s %v %s @ %v", t.ID, side, qty, contract.Symbol, fill.AvgPrice)
	e.bus.Publish(events.EventTradeOpened, t.View())
	return t, nil
}

// RequestExit submits a market order on the opposite side and confirms the
// fill before marking the trade closed. The trade stays counted as open while
// the exit is in flight; if the exit cannot be confirmed it reverts to OPEN so
// the trigger fires again on the next tick.
func (e *Executor) RequestExit(ctx context.Context, t *Trade, reason string) error {
	if !t.beginExit(reason) {
		return nil
	}

	status, err := e.conn.PlaceOrder(ctx, common.OrderRequest{
		Contract: t.Contract,
		Side:     t.Side.Opposite(),
		Type:     common.OrderTypeMarket,
		Quantity: t.Quantity,
		ClientID: uuid.NewString(),
	})
	if err != nil {
		t.abortExit()
		e.feed.Add("%s: exit on %s rejected: %v", t.Strategy, t.Contract.Symbol, err)
		return fmt.Errorf("exit %s: %w", t.Contract.Symbol, err)
	}
	t.setExitOrderID(status.OrderID)

	fill, err := e.awaitFill(ctx, t.Contract, status.OrderID)
	if err != nil {
		e.cancelQuietly(t.Contract, status.OrderID)
		t.abortExit()
		e.feed.Add("%s: exit on %s not confirmed: %v", t.Strategy, t.Contract.Symbol, err)
		return fmt.Errorf("exit %s: %w", t.Contract.Symbol, err)
	}

	t.close(fill.AvgPrice, time.Now().UnixMilli())
	snap := t.View()
	e.feed.Add("%s: closed %s %s @ %v (%s), pnl %v", t.Strategy, t.Side, t.Contract.Symbol, fill.AvgPrice, reason, snap.PnL)
	log.Printf("order: trade %s closed (%s), pnl %v", t.ID, reason, snap.PnL)
	e.bus.Publish(events.EventTradeClosed, snap)
	if e.OnClosed != nil {
		e.OnClosed(snap)
	}
	return nil
}

// awaitFill polls order status on a fixed interval until the order fills, is
// cancelled or rejected, the poll budget runs out, or ctx ends.
func (e *Executor) awaitFill(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	for i := 0; i < e.maxPolls; i++ {
		status, err := e.conn.GetOrderStatus(ctx, contract, orderID)
		if err != nil {
			// Transient venue errors are absorbed by the next poll.
			log.Printf("order: status %s: %v", orderID, err)
		} else {
			switch status.Status {
			case common.StatusFilled:
				return status, nil
			case common.StatusCanceled, common.StatusRejected:
				return status, fmt.Errorf("order %s ended %s", orderID, status.Status)
			}
		}

		select {
		case <-ctx.Done():
			return common.OrderStatus{}, ctx.Err()
		case <-time.After(e.pollInterval):
		}
	}
	return common.OrderStatus{}, fmt.Errorf("order %s not filled after %d polls", orderID, e.maxPolls)
}

// cancelQuietly tries to cancel an order whose fate is unknown; failure only
// gets logged since the order may already be gone.
func (e *Executor) cancelQuietly(contract common.Contract, orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := e.conn.CancelOrder(ctx, contract, orderID); err != nil {
		log.Printf("order: cancel %s: %v", orderID, err)
	}
}

func (t *Trade) setEntryOrderID(id string) {
	t.mu.Lock()
	t.entryOrderID = id
	t.mu.Unlock()
}

func (t *Trade) setExitOrderID(id string) {
	t.mu.Lock()
	t.exitOrderID = id
	t.mu.Unlock()
}

func (t *Trade) fail(reason string) {
	t.mu.Lock()
	t.state = StateEntryFailed
	t.reason = reason
	t.mu.Unlock()
}

// beginExit moves OPEN to EXIT_REQUESTED; it reports false when the trade is
// in any other state so concurrent triggers collapse into one exit.
func (t *Trade) beginExit(reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return false
	}
	t.state = StateExitRequested
	t.reason = reason
	return true
}

func (t *Trade) abortExit() {
	t.mu.Lock()
	if t.state == StateExitRequested {
		t.state = StateOpen
	}
	t.mu.Unlock()
}

func (t *Trade) close(exitPrice float64, at int64) {
	t.mu.Lock()
	t.exitPrice = exitPrice
	t.exitTime = at
	t.state = StateClosed
	if t.entryPrice != nil {
		t.pnl = PnL(t.Contract, t.Side, *t.entryPrice, exitPrice, t.Quantity)
	}
	t.mu.Unlock()
}
