package order

import (
	"fmt"
	"sync"

	"trading-bot/pkg/exchanges/common"
)

// State is the lifecycle stage of a trade.
type State string

const (
	// StatePendingEntry means the entry order is out but not confirmed filled.
	StatePendingEntry State = "PENDING_ENTRY"
	// StateOpen means the entry filled and the position is live.
	StateOpen State = "OPEN"
	// StateExitRequested means an exit order is out; the position stays
	// counted as open until the fill is confirmed.
	StateExitRequested State = "EXIT_REQUESTED"
	// StateClosed means the exit filled and PnL is realized.
	StateClosed State = "CLOSED"
	// StateEntryFailed means the entry never filled and was cancelled.
	StateEntryFailed State = "ENTRY_FAILED"
)

// Trade is one position from entry to exit. All fields behind mu; use the
// accessor methods from concurrent callers.
type Trade struct {
	mu sync.Mutex

	ID       string
	Strategy string
	Contract common.Contract
	Side     common.Side
	Quantity float64

	TakeProfitPct float64
	StopLossPct   float64

	// entryPrice is set exactly once, when the entry fill is confirmed.
	entryPrice *float64
	entryTime  int64

	exitPrice float64
	exitTime  int64

	state  State
	pnl    float64
	reason string

	entryOrderID string
	exitOrderID  string
}

// Snapshot is an immutable copy of a trade for the HTTP layer and persistence.
type Snapshot struct {
	ID            string         `json:"id"`
	Strategy      string         `json:"strategy"`
	Exchange      string         `json:"exchange"`
	Symbol        string         `json:"symbol"`
	Side          common.Side    `json:"side"`
	Quantity      float64        `json:"quantity"`
	State         State          `json:"state"`
	EntryPrice    float64        `json:"entry_price"`
	EntryTime     int64          `json:"entry_time"`
	ExitPrice     float64        `json:"exit_price,omitempty"`
	ExitTime      int64          `json:"exit_time,omitempty"`
	PnL           float64        `json:"pnl"`
	Reason        string         `json:"reason,omitempty"`
	TakeProfitPct float64        `json:"take_profit_pct"`
	StopLossPct   float64        `json:"stop_loss_pct"`
}

// SetEntry records the confirmed entry fill. It fails if the entry was
// already recorded; an entry price must never move once set.
func (t *Trade) SetEntry(price float64, at int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entryPrice != nil {
		return fmt.Errorf("trade %s: entry price already set to %v", t.ID, *t.entryPrice)
	}
	p := price
	t.entryPrice = &p
	t.entryTime = at
	t.state = StateOpen
	return nil
}

// EntryPrice returns the confirmed entry price, or false before the fill.
func (t *Trade) EntryPrice() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entryPrice == nil {
		return 0, false
	}
	return *t.entryPrice, true
}

// CurrentState returns the current lifecycle stage.
func (t *Trade) CurrentState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// MarkPnL refreshes the unrealized PnL using the price the position would
// exit at right now: the bid for a long, the ask for a short.
func (t *Trade) MarkPnL(bid, ask float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entryPrice == nil || (t.state != StateOpen && t.state != StateExitRequested) {
		return
	}
	exit := bid
	if t.Side == common.SideSell {
		exit = ask
	}
	if exit == 0 {
		return
	}
	t.pnl = PnL(t.Contract, t.Side, *t.entryPrice, exit, t.Quantity)
}

// MoveRatio returns the signed percentage move from entry to price, positive
// when the position is in profit. Zero before the entry fill.
func (t *Trade) MoveRatio(price float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entryPrice == nil || *t.entryPrice == 0 {
		return 0
	}
	move := (price - *t.entryPrice) / *t.entryPrice * 100
	if t.Side == common.SideSell {
		move = -move
	}
	return move
}

// View copies the trade for external consumers.
func (t *Trade) View() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		ID:            t.ID,
		Strategy:      t.Strategy,
		Exchange:      t.Contract.Exchange,
		Symbol:        t.Contract.Symbol,
		Side:          t.Side,
		Quantity:      t.Quantity,
		State:         t.state,
		EntryTime:     t.entryTime,
		ExitPrice:     t.exitPrice,
		ExitTime:      t.exitTime,
		PnL:           t.pnl,
		Reason:        t.reason,
		TakeProfitPct: t.TakeProfitPct,
		StopLossPct:   t.StopLossPct,
	}
	if t.entryPrice != nil {
		s.EntryPrice = *t.entryPrice
	}
	return s
}

// PnL computes position profit in the contract's settlement units. Linear and
// quanto contracts gain (current-entry) per unit of multiplier*quantity;
// inverse contracts settle in the base asset and gain (1/entry - 1/current).
// A short position is the exact negation of the long.
func PnL(c common.Contract, side common.Side, entry, current, qty float64) float64 {
	if entry == 0 || current == 0 {
		return 0
	}
	var raw float64
	if c.Inverse {
		raw = (1/entry - 1/current) * c.Multiplier * qty
	} else {
		raw = (current - entry) * c.Multiplier * qty
	}
	if side == common.SideSell {
		raw = -raw
	}
	return raw
}
