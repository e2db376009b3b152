package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"trading-bot/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pushTopics are the bus events forwarded to websocket clients.
var pushTopics = []events.Event{
	events.EventCandleClosed,
	events.EventStrategySignal,
	events.EventTradeOpened,
	events.EventTradeClosed,
	events.EventTradeFailed,
	events.EventStreamState,
}

type pushMessage struct {
	Event events.Event `json:"event"`
	Data  any          `json:"data"`
}

// websocketHandler streams bus events to one client until it disconnects. A
// websocket connection allows a single concurrent writer, so the per-topic
// subscriptions are funneled through one channel before writing.
func (s *Server) websocketHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[API] ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	merged := make(chan pushMessage, 256)
	for _, topic := range pushTopics {
		ch, unsub := s.Bus.Subscribe(topic, 64)
		defer unsub()
		go forward(topic, ch, merged, done)
	}

	// The client sends nothing meaningful; reading surfaces the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-merged:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func forward(topic events.Event, ch <-chan any, merged chan<- pushMessage, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			select {
			case merged <- pushMessage{Event: topic, Data: payload}:
			case <-done:
				return
			}
		}
	}
}
