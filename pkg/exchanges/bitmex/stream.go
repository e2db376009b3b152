package bitmex

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-bot/pkg/exchanges/common"
)

// reconnectDelay is the fixed backoff between connection attempts.
const reconnectDelay = 2 * time.Second

// Stream maintains the persistent BitMEX websocket. BitMEX pushes whole
// tables rather than per-symbol streams, so subscriptions are table names and
// inbound frames carry a table discriminator.
type Stream struct {
	url    string
	dialer *websocket.Dialer

	// OnQuote and OnTrade receive parsed events on the Run goroutine, in
	// arrival order. OnState reports "open" and "closed" transitions. Set the
	// callbacks before calling Run.
	OnQuote func(common.QuoteUpdate)
	OnTrade func(common.TradePrint)
	OnState func(state string)

	mu     sync.Mutex
	conn   *websocket.Conn
	topics []string
	seen   map[string]bool
}

// NewStream builds a stream client; testnet toggles the host.
func NewStream(testnet bool) *Stream {
	u := "wss://ws.bitmex.com/realtime"
	if testnet {
		u = "wss://ws.testnet.bitmex.com/realtime"
	}
	return &Stream{
		url:    u,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		seen:   make(map[string]bool),
	}
}

// Subscribe registers topics ("instrument", "trade", or filtered forms like
// "trade:XBTUSD") and sends the subscription immediately when connected.
// Registered topics are replayed on every reconnect.
func (s *Stream) Subscribe(topics ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for _, topic := range topics {
		if s.seen[topic] {
			continue
		}
		s.seen[topic] = true
		s.topics = append(s.topics, topic)
		added = append(added, topic)
	}
	if s.conn != nil && len(added) > 0 {
		s.sendSubscribeLocked(added)
	}
}

// sendSubscribeLocked writes one subscribe frame. Callers hold mu.
func (s *Stream) sendSubscribeLocked(topics []string) {
	msg := subscribeMsg{Op: "subscribe", Args: topics}
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Printf("bitmex ws: subscribe %d topics: %v", len(topics), err)
	}
}

// Run drives the connect/read/reconnect loop until ctx is cancelled. The
// shutdown flag is checked before every reconnect attempt, so cancellation
// never races a fresh dial.
func (s *Stream) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			log.Printf("bitmex ws: connect: %v", err)
			if !sleepCtx(ctx, reconnectDelay) {
				return
			}
			continue
		}

		log.Printf("bitmex ws: connection opened")
		if s.OnState != nil {
			s.OnState("open")
		}
		s.mu.Lock()
		s.conn = conn
		if len(s.topics) > 0 {
			s.sendSubscribeLocked(s.topics)
		}
		s.mu.Unlock()

		s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
		log.Printf("bitmex ws: connection closed")
		if s.OnState != nil {
			s.OnState("closed")
		}

		if !sleepCtx(ctx, reconnectDelay) {
			return
		}
	}
}

// readLoop dispatches inbound frames until the connection drops.
func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("bitmex ws: read: %v", err)
			}
			return
		}
		s.dispatch(msg)
	}
}

// dispatch routes a frame by its table discriminator. Instrument updates are
// partial: a row may carry only a bid or only an ask, and missing fields must
// not overwrite the book with zeros.
func (s *Stream) dispatch(msg []byte) {
	var head struct {
		Table string `json:"table"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return
	}

	switch head.Table {
	case "instrument":
		var frame struct {
			Data []struct {
				Symbol   string   `json:"symbol"`
				BidPrice *float64 `json:"bidPrice"`
				AskPrice *float64 `json:"askPrice"`
			} `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil {
			log.Printf("bitmex ws: parse instrument: %v", err)
			return
		}
		if s.OnQuote == nil {
			return
		}
		for _, row := range frame.Data {
			if row.BidPrice == nil && row.AskPrice == nil {
				continue
			}
			update := common.QuoteUpdate{Exchange: "bitmex", Symbol: row.Symbol}
			if row.BidPrice != nil {
				update.Bid = *row.BidPrice
			}
			if row.AskPrice != nil {
				update.Ask = *row.AskPrice
			}
			s.OnQuote(update)
		}
	case "trade":
		var frame struct {
			Data []struct {
				Symbol    string  `json:"symbol"`
				Price     float64 `json:"price"`
				Size      float64 `json:"size"`
				Timestamp string  `json:"timestamp"`
			} `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil {
			log.Printf("bitmex ws: parse trade: %v", err)
			return
		}
		if s.OnTrade == nil {
			return
		}
		for _, row := range frame.Data {
			ts, err := time.Parse(time.RFC3339, row.Timestamp)
			if err != nil {
				log.Printf("bitmex ws: bad trade timestamp %q: %v", row.Timestamp, err)
				continue
			}
			s.OnTrade(common.TradePrint{
				Exchange:  "bitmex",
				Symbol:    row.Symbol,
				Price:     row.Price,
				Size:      row.Size,
				Timestamp: ts.UnixMilli(),
			})
		}
	}
}

type subscribeMsg struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// sleepCtx waits d or until ctx is cancelled; it reports whether the caller
// should keep running.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
