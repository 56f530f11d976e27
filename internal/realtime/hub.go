// Package realtime pushes seat-map change notices to websocket clients
// watching an event.  Clients re-fetch availability when told; the seat
// map itself is never pushed.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/theater-seat-reservation/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 512
	sendBuffer = 16
)

// TypeSeatsChanged is the only notice the hub sends.
const TypeSeatsChanged = "seats_changed"

// Notice is the JSON frame written to subscribers.
type Notice struct {
	Type    string `json:"type"`
	EventID uint64 `json:"event_id"`
}

// client is one websocket subscribed to one event.
type client struct {
	eventID uint64
	conn    *websocket.Conn
	send    chan []byte
}

// Hub tracks websocket subscribers per event id.
type Hub struct {
	mu       sync.RWMutex
	subs     map[uint64]map[*client]struct{}
	upgrader websocket.Upgrader
	log      *log.Logger
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[uint64]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.New("realtime"),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[c.eventID]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[c.eventID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[c.eventID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.subs, c.eventID)
	}
}

// Subscribers reports how many clients watch eventID.
func (h *Hub) Subscribers(eventID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[eventID])
}

// SeatsChanged tells every subscriber of eventID to re-fetch the seat map.
// Slow clients whose buffer is full miss the notice.
func (h *Hub) SeatsChanged(eventID uint64) {
	data, err := json.Marshal(Notice{Type: TypeSeatsChanged, EventID: eventID})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[eventID] {
		select {
		case c.send <- data:
		default:
		}
	}
}

// BookingConfirmed and BookingCancelled let the hub act as a
// reservation.Notifier when no broker sits in between.
func (h *Hub) BookingConfirmed(_ context.Context, b *model.Booking) { h.SeatsChanged(b.EventID) }

func (h *Hub) BookingCancelled(_ context.Context, b *model.Booking) { h.SeatsChanged(b.EventID) }

// ServeWS upgrades the request and subscribes the connection to eventID.
// It blocks until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, eventID uint64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{eventID: eventID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.log.Debugf("subscriber joined event %d", eventID)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// readPump only drains control frames; clients have nothing to say.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		h.log.Debugf("subscriber left event %d", c.eventID)
	}()

	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warnf("websocket read on event %d: %v", c.eventID, err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		for c := range set {
			close(c.send)
		}
		delete(h.subs, id)
	}
}
