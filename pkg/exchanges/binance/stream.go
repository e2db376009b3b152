package binance

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-bot/pkg/exchanges/common"
)

// maxParamsPerSubscribe caps the stream names in one SUBSCRIBE frame; the
// exchange rejects batches much beyond 300 symbols.
const maxParamsPerSubscribe = 300

// reconnectDelay is the fixed backoff between connection attempts.
const reconnectDelay = 2 * time.Second

// Stream maintains the persistent market-data websocket. One Run loop owns
// the connection, reconnects forever with a fixed backoff, and re-subscribes
// the registered channel list on every open (subscriptions do not survive a
// reconnect).
type Stream struct {
	url    string
	dialer *websocket.Dialer

	// OnQuote and OnTrade receive parsed events on the Run goroutine, in
	// arrival order. OnState reports "open" and "closed" transitions. Set the
	// callbacks before calling Run.
	OnQuote func(common.QuoteUpdate)
	OnTrade func(common.TradePrint)
	OnState func(state string)

	mu      sync.Mutex
	conn    *websocket.Conn
	streams []string
	seen    map[string]bool
	nextID  int
}

// NewStream builds a stream client; testnet toggles the host.
func NewStream(testnet bool) *Stream {
	u := "wss://fstream.binance.com/ws"
	if testnet {
		u = "wss://stream.binancefuture.com/ws"
	}
	return &Stream{
		url:    u,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		seen:   make(map[string]bool),
		nextID: 1,
	}
}

// Subscribe registers symbols on a channel ("bookTicker", "aggTrade") and
// sends the subscription immediately when connected. Registered streams are
// replayed on every reconnect.
func (s *Stream) Subscribe(channel string, symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for _, sym := range symbols {
		name := strings.ToLower(sym) + "@" + channel
		if s.seen[name] {
			continue
		}
		s.seen[name] = true
		s.streams = append(s.streams, name)
		added = append(added, name)
	}
	if s.conn != nil && len(added) > 0 {
		s.sendSubscribeLocked(added)
	}
}

// sendSubscribeLocked writes SUBSCRIBE frames in batches the exchange
// accepts, each with a monotonically increasing request id. Callers hold mu.
func (s *Stream) sendSubscribeLocked(streams []string) {
	for start := 0; start < len(streams); start += maxParamsPerSubscribe {
		end := start + maxParamsPerSubscribe
		if end > len(streams) {
			end = len(streams)
		}
		msg := subscribeMsg{Method: "SUBSCRIBE", Params: streams[start:end], ID: s.nextID}
		s.nextID++
		if err := s.conn.WriteJSON(msg); err != nil {
			log.Printf("binance ws: subscribe %d streams: %v", end-start, err)
			return
		}
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
			log.Printf("binance ws: connect: %v", err)
			if !sleepCtx(ctx, reconnectDelay) {
				return
			}
			continue
		}

		log.Printf("binance ws: connection opened")
		if s.OnState != nil {
			s.OnState("open")
		}
		s.mu.Lock()
		s.conn = conn
		if len(s.streams) > 0 {
			s.sendSubscribeLocked(s.streams)
		}
		s.mu.Unlock()

		s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
		log.Printf("binance ws: connection closed")
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
				log.Printf("binance ws: read: %v", err)
			}
			return
		}
		s.dispatch(msg)
	}
}

// dispatch routes a frame by its event-type discriminator.
func (s *Stream) dispatch(msg []byte) {
	var head struct {
		Event string `json:"e"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return
	}

	switch head.Event {
	case "bookTicker":
		var raw struct {
			Symbol string `json:"s"`
			Bid    string `json:"b"`
			Ask    string `json:"a"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			log.Printf("binance ws: parse bookTicker: %v", err)
			return
		}
		if s.OnQuote != nil {
			s.OnQuote(common.QuoteUpdate{
				Exchange: "binance",
				Symbol:   raw.Symbol,
				Bid:      parseFloat(raw.Bid),
				Ask:      parseFloat(raw.Ask),
			})
		}
	case "aggTrade":
		var raw struct {
			Symbol    string `json:"s"`
			Price     string `json:"p"`
			Qty       string `json:"q"`
			TradeTime int64  `json:"T"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			log.Printf("binance ws: parse aggTrade: %v", err)
			return
		}
		if s.OnTrade != nil {
			s.OnTrade(common.TradePrint{
				Exchange:  "binance",
				Symbol:    raw.Symbol,
				Price:     parseFloat(raw.Price),
				Size:      parseFloat(raw.Qty),
				Timestamp: raw.TradeTime,
			})
		}
	}
}

type subscribeMsg struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
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
