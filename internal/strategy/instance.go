package strategy

import (
	"context"
	"log"
	"sync"

	"trading-bot/internal/events"
	"trading-bot/internal/market"
	"trading-bot/internal/order"
	"trading-bot/pkg/exchanges/common"
)

// trader is the slice of the executor an instance drives.
type trader interface {
	OpenPosition(ctx context.Context, contract common.Contract, side common.Side, price, balancePct, tpPct, slPct float64, strategy string) (*order.Trade, error)
	RequestExit(ctx context.Context, t *order.Trade, reason string) error
}

// Instance is one running strategy on one contract. It owns its candle
// aggregator and position pointer; all access goes through mu because market
// data arrives on the stream goroutine while entries and exits complete on
// their own goroutines.
type Instance struct {
	ID       string
	Params   Params
	Contract common.Contract

	rule Rule
	agg  *market.Aggregator
	exec trader
	bus  *events.Bus
	feed *events.LogFeed

	mu       sync.Mutex
	trade    *order.Trade
	entering bool
	running  bool
}

// View is a read-only copy of instance state for the HTTP layer.
type View struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Rule      string  `json:"rule"`
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Running   bool    `json:"running"`
	HasTrade  bool    `json:"has_trade"`
	Candles   int     `json:"candles"`
	LastClose float64 `json:"last_close"`
}

// NewInstance wires a rule to an aggregator seeded with historical candles.
func NewInstance(id string, p Params, contract common.Contract, seed []common.Candle, exec trader, bus *events.Bus, feed *events.LogFeed) (*Instance, error) {
	r, err := NewRule(p)
	if err != nil {
		return nil, err
	}
	agg, err := market.NewAggregator(contract.Symbol, p.Timeframe, seed)
	if err != nil {
		return nil, err
	}
	return &Instance{
		ID:       id,
		Params:   p,
		Contract: contract,
		rule:     r,
		agg:      agg,
		exec:     exec,
		bus:      bus,
		feed:     feed,
		running:  true,
	}, nil
}

// Stop halts signal generation. An open trade keeps its exit triggers so a
// stopped strategy still unwinds on TP/SL.
func (in *Instance) Stop() {
	in.mu.Lock()
	in.running = false
	in.mu.Unlock()
	in.feed.Add("%s: stopped on %s %s", in.rule.Name(), in.Contract.Exchange, in.Contract.Symbol)
}

// Running reports whether the instance still takes entries.
func (in *Instance) Running() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.running
}

// OnTrade folds one trade print into the candle series, then either checks
// exit triggers for the open position or evaluates the entry rule when a bar
// closed. Called from the stream goroutine; order placement is pushed onto
// separate goroutines so the stream never stalls behind the venue.
func (in *Instance) OnTrade(ctx context.Context, print common.TradePrint) {
	in.mu.Lock()

	res := in.agg.Ingest(print)
	if res == market.ResultNewBar || res == market.ResultGapFilled {
		if cs := in.agg.Candles(); len(cs) > 1 {
			in.bus.Publish(events.EventCandleClosed, cs[len(cs)-2])
		}
	}

	// A trade that reached a terminal state frees the slot.
	if in.trade != nil {
		switch in.trade.CurrentState() {
		case order.StateClosed, order.StateEntryFailed:
			in.trade = nil
		}
	}

	if in.trade != nil {
		t := in.trade
		in.mu.Unlock()
		in.checkExits(ctx, t, print.Price)
		return
	}

	if in.entering || !in.running || (res != market.ResultNewBar && res != market.ResultGapFilled) {
		in.mu.Unlock()
		return
	}

	sig := in.rule.Evaluate(in.agg.Candles())
	if sig == SignalNone {
		in.mu.Unlock()
		return
	}
	in.entering = true
	in.mu.Unlock()

	in.bus.Publish(events.EventStrategySignal, map[string]any{
		"instance": in.ID, "signal": sig.String(), "symbol": in.Contract.Symbol,
	})
	in.feed.Add("%s: %s signal on %s %s @ %v", in.rule.Name(), sig, in.Contract.Exchange, in.Contract.Symbol, print.Price)

	go in.enter(ctx, sig, print.Price)
}

// enter runs the blocking entry flow off the stream goroutine.
func (in *Instance) enter(ctx context.Context, sig Signal, price float64) {
	t, err := in.exec.OpenPosition(ctx, in.Contract, sig.Side(), price,
		in.Params.BalancePct, in.Params.TakeProfitPct, in.Params.StopLossPct, in.rule.Name())

	in.mu.Lock()
	in.entering = false
	if err == nil && t != nil && t.CurrentState() == order.StateOpen {
		in.trade = t
	}
	in.mu.Unlock()

	if err != nil {
		log.Printf("strategy %s: entry failed: %v", in.ID, err)
	}
}

// checkExits fires the take-profit or stop-loss exit when the price move from
// entry crosses a configured threshold. The executor collapses duplicate
// triggers, so firing on every print is safe.
func (in *Instance) checkExits(ctx context.Context, t *order.Trade, price float64) {
	if t.CurrentState() != order.StateOpen {
		return
	}
	move := t.MoveRatio(price)

	switch {
	case in.Params.TakeProfitPct > 0 && move >= in.Params.TakeProfitPct:
		go in.exit(ctx, t, "take profit")
	case in.Params.StopLossPct > 0 && move <= -in.Params.StopLossPct:
		go in.exit(ctx, t, "stop loss")
	}
}

func (in *Instance) exit(ctx context.Context, t *order.Trade, reason string) {
	if err := in.exec.RequestExit(ctx, t, reason); err != nil {
		log.Printf("strategy %s: %s exit failed: %v", in.ID, reason, err)
	}
}

// OnQuote refreshes the open position's unrealized PnL from the top of book.
func (in *Instance) OnQuote(q common.QuoteUpdate) {
	in.mu.Lock()
	t := in.trade
	in.mu.Unlock()
	if t != nil {
		t.MarkPnL(q.Bid, q.Ask)
	}
}

// Snapshot copies the instance state for external consumers.
func (in *Instance) Snapshot() View {
	in.mu.Lock()
	defer in.mu.Unlock()

	v := View{
		ID:        in.ID,
		Type:      in.Params.Type,
		Rule:      in.rule.Name(),
		Exchange:  in.Contract.Exchange,
		Symbol:    in.Contract.Symbol,
		Timeframe: in.Params.Timeframe,
		Running:   in.running,
		HasTrade:  in.trade != nil,
		Candles:   len(in.agg.Candles()),
	}
	if last, ok := in.agg.Last(); ok {
		v.LastClose = last.Close
	}
	return v
}
