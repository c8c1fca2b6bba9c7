package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rigneshroot/xauusd-live-trader-bot-oanda/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pushedEvents are the bus events forwarded to websocket clients.
var pushedEvents = []events.Event{
	events.EventStateTransition,
	events.EventORLocked,
	events.EventBreakout,
	events.EventRetest,
	events.EventInvalidation,
	events.EventEntrySignal,
	events.EventOrderPlaced,
	events.EventOrderFilled,
	events.EventPositionClosed,
	events.EventDataQuality,
}

type wsFrame struct {
	Event   events.Event `json:"event"`
	Payload any          `json:"payload"`
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	// Fan the subscribed events into one channel for the write loop.
	merged := make(chan wsFrame, 100)
	done := make(chan struct{})
	defer close(done)

	for _, ev := range pushedEvents {
		stream, unsub := s.Bus.Subscribe(ev, 50)
		go func(ev events.Event, stream <-chan any, unsub func()) {
			defer unsub()
			for {
				select {
				case <-done:
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					select {
					case merged <- wsFrame{Event: ev, Payload: msg}:
					default: // drop when the client is slow
					}
				}
			}
		}(ev, stream, unsub)
	}

	for frame := range merged {
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
