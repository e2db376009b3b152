package strategy

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-bot/internal/events"
	"trading-bot/internal/market"
	"trading-bot/internal/order"
	"trading-bot/pkg/exchanges/common"
)

// Manager owns every running strategy instance and routes market data to
// them. One executor per venue is shared by that venue's instances.
type Manager struct {
	conns map[string]common.Connector
	execs map[string]*order.Executor
	board *market.QuoteBoard
	bus   *events.Bus
	feed  *events.LogFeed

	mu        sync.RWMutex
	instances map[string]*Instance
	contracts map[string]map[string]common.Contract
}

// NewManager wires a manager over the configured venue connections.
func NewManager(conns map[string]common.Connector, execs map[string]*order.Executor, board *market.QuoteBoard, bus *events.Bus, feed *events.LogFeed) *Manager {
	return &Manager{
		conns:     conns,
		execs:     execs,
		board:     board,
		bus:       bus,
		feed:      feed,
		instances: make(map[string]*Instance),
		contracts: make(map[string]map[string]common.Contract),
	}
}

// Contracts returns the catalog for a venue, fetched once and cached.
func (m *Manager) Contracts(ctx context.Context, exchange string) (map[string]common.Contract, error) {
	conn, ok := m.conns[exchange]
	if !ok {
		return nil, fmt.Errorf("unknown exchange %q", exchange)
	}

	m.mu.RLock()
	catalog := m.contracts[exchange]
	m.mu.RUnlock()
	if catalog != nil {
		return catalog, nil
	}

	fetched, err := conn.GetContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s contracts: %w", exchange, err)
	}
	m.mu.Lock()
	m.contracts[exchange] = fetched
	m.mu.Unlock()
	return fetched, nil
}

// Contract resolves a single symbol on a venue.
func (m *Manager) Contract(ctx context.Context, exchange, symbol string) (common.Contract, error) {
	catalog, err := m.Contracts(ctx, exchange)
	if err != nil {
		return common.Contract{}, err
	}
	c, ok := catalog[symbol]
	if !ok {
		return common.Contract{}, fmt.Errorf("unknown contract %s on %s", symbol, exchange)
	}
	return c, nil
}

// Start creates, seeds and registers a new instance. The candle history is
// fetched up front so indicator rules have a full lookback before the first
// live print.
func (m *Manager) Start(ctx context.Context, p Params) (View, error) {
	if !market.ValidTimeframe(p.Timeframe) {
		return View{}, fmt.Errorf("unsupported timeframe %q", p.Timeframe)
	}
	if p.BalancePct <= 0 || p.BalancePct > 100 {
		return View{}, fmt.Errorf("balance_pct %v out of (0,100]", p.BalancePct)
	}

	contract, err := m.Contract(ctx, p.Exchange, p.Symbol)
	if err != nil {
		return View{}, err
	}
	conn := m.conns[p.Exchange]
	exec, ok := m.execs[p.Exchange]
	if !ok {
		return View{}, fmt.Errorf("no executor for exchange %q", p.Exchange)
	}

	seed, err := conn.GetHistoricalCandles(ctx, contract, p.Timeframe)
	if err != nil {
		return View{}, fmt.Errorf("seed candles %s %s: %w", p.Symbol, p.Timeframe, err)
	}

	in, err := NewInstance(uuid.NewString(), p, contract, seed, exec, m.bus, m.feed)
	if err != nil {
		return View{}, err
	}

	m.mu.Lock()
	m.instances[in.ID] = in
	m.mu.Unlock()

	m.feed.Add("started %s on %s %s %s (%d seed candles)", p.Type, p.Exchange, p.Symbol, p.Timeframe, len(seed))
	return in.Snapshot(), nil
}

// Stop halts an instance's entries. The instance stays registered so its open
// trade keeps receiving exit checks.
func (m *Manager) Stop(id string) error {
	m.mu.RLock()
	in, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown strategy instance %q", id)
	}
	in.Stop()
	return nil
}

// List snapshots every registered instance.
func (m *Manager) List() []View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]View, 0, len(m.instances))
	for _, in := range m.instances {
		out = append(out, in.Snapshot())
	}
	return out
}

// Trades aggregates trade snapshots across all venue executors.
func (m *Manager) Trades() []order.Snapshot {
	var out []order.Snapshot
	for _, e := range m.execs {
		out = append(out, e.Trades()...)
	}
	return out
}

// OnTrade routes a trade print to the instances watching that contract.
// Called from a stream goroutine.
func (m *Manager) OnTrade(ctx context.Context, print common.TradePrint) {
	m.mu.RLock()
	targets := make([]*Instance, 0, 2)
	for _, in := range m.instances {
		if in.Contract.Exchange == print.Exchange && in.Contract.Symbol == print.Symbol {
			targets = append(targets, in)
		}
	}
	m.mu.RUnlock()

	for _, in := range targets {
		in.OnTrade(ctx, print)
	}
}

// OnQuote updates the quote board and open-position PnL marks. Called from a
// stream goroutine and from the REST poller.
func (m *Manager) OnQuote(q common.QuoteUpdate) {
	m.board.Apply(q)
	m.bus.Publish(events.EventQuoteTick, q)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, in := range m.instances {
		if in.Contract.Exchange == q.Exchange && in.Contract.Symbol == q.Symbol {
			in.OnQuote(q)
		}
	}
}

// usageReporter is implemented by clients that track the venue's request
// weight accounting.
type usageReporter interface {
	NearLimit() bool
}

// PollQuotes refreshes the quote board over REST on a fixed interval until
// ctx is cancelled. The websocket feed is the primary quote source; polling
// covers the window between a stream drop and its reconnect, so a stale board
// never pins an open position's PnL mark.
func (m *Manager) PollQuotes(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollQuotesOnce(ctx)
		}
	}
}

// pollQuotesOnce fetches the top of book for every contract a registered
// instance watches. Venues whose request-weight budget is nearly spent are
// skipped for the cycle; quote polls are not worth a ban.
func (m *Manager) pollQuotesOnce(ctx context.Context) {
	m.mu.RLock()
	targets := make(map[string]common.Contract, len(m.instances))
	for _, in := range m.instances {
		targets[in.Contract.Exchange+":"+in.Contract.Symbol] = in.Contract
	}
	m.mu.RUnlock()

	skipped := make(map[string]bool, len(m.conns))
	for _, contract := range targets {
		conn, ok := m.conns[contract.Exchange]
		if !ok || skipped[contract.Exchange] {
			continue
		}
		if r, ok := conn.(usageReporter); ok && r.NearLimit() {
			log.Printf("[QUOTES] %s near rate limit, skipping poll cycle", contract.Exchange)
			skipped[contract.Exchange] = true
			continue
		}

		q, err := conn.GetBidAsk(ctx, contract)
		if err != nil {
			log.Printf("[QUOTES] poll %s %s: %v", contract.Exchange, contract.Symbol, err)
			continue
		}
		m.OnQuote(q)
	}
}
