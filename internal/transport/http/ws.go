package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dispatch-monitor/sentinel/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	subscribeDepth = 64
)

// Hub bridges the notify bus onto websocket clients. Each connection gets
// its own bus subscription; a client that cannot keep up drops events
// instead of stalling the poll cycle.
type Hub struct {
	bus      *notify.Bus
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewHub(bus *notify.Bus, log *zap.SugaredLogger) *Hub {
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	events, cancel := h.bus.Subscribe(subscribeDepth)
	done := make(chan struct{})

	// Reader exists only to detect the client closing.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			cancel()
			conn.Close()
		}()

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
}
