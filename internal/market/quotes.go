package market

import (
	"hash/fnv"
	"sync"
	"time"

	"trading-bot/pkg/exchanges/common"
)

const numShards = 16

// Quote is the last known top of book for one contract.
type Quote struct {
	Bid       float64
	Ask       float64
	UpdatedAt time.Time
}

// QuoteBoard holds the latest bid/ask per exchange+symbol, sharded to keep
// lock contention low under a firehose of book updates. Writes are
// last-writer-wins; readers always see a consistent pair because each entry is
// replaced whole under the shard lock.
type QuoteBoard struct {
	shards [numShards]*quoteShard
}

type quoteShard struct {
	mu    sync.RWMutex
	items map[string]Quote
}

// NewQuoteBoard creates an empty board.
func NewQuoteBoard() *QuoteBoard {
	b := &QuoteBoard{}
	for i := 0; i < numShards; i++ {
		b.shards[i] = &quoteShard{items: make(map[string]Quote)}
	}
	return b
}

func key(exchange, symbol string) string {
	return exchange + ":" + symbol
}

func (b *QuoteBoard) getShard(k string) *quoteShard {
	h := fnv.New32a()
	h.Write([]byte(k))
	return b.shards[h.Sum32()%numShards]
}

// Apply merges one update into the board. A zero bid or ask leaves the
// existing side untouched; some feeds push one side at a time.
func (b *QuoteBoard) Apply(u common.QuoteUpdate) {
	k := key(u.Exchange, u.Symbol)
	shard := b.getShard(k)

	shard.mu.Lock()
	q := shard.items[k]
	if u.Bid != 0 {
		q.Bid = u.Bid
	}
	if u.Ask != 0 {
		q.Ask = u.Ask
	}
	q.UpdatedAt = time.Now()
	shard.items[k] = q
	shard.mu.Unlock()
}

// Get returns the latest quote for a contract.
func (b *QuoteBoard) Get(exchange, symbol string) (Quote, bool) {
	k := key(exchange, symbol)
	shard := b.getShard(k)

	shard.mu.RLock()
	q, ok := shard.items[k]
	shard.mu.RUnlock()
	return q, ok
}

// Snapshot copies the whole board, keyed by "exchange:symbol".
func (b *QuoteBoard) Snapshot() map[string]Quote {
	out := make(map[string]Quote)
	for _, shard := range b.shards {
		shard.mu.RLock()
		for k, q := range shard.items {
			out[k] = q
		}
		shard.mu.RUnlock()
	}
	return out
}
