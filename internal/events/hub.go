// apps/go-server/internal/events/hub.go
//
// WebSocket event hub for play screens.
// Responsibilities:
//   - Upgrade GET /play/{category}/events and register the connection under
//     its (player, category) screen key.
//   - Fan screen events out to every subscriber of the key as {t, p} frames.
//   - Keep connections healthy: ping loop, read deadline refreshed on pong.
//
// Publish never blocks the screen: a subscriber whose buffer is full misses
// the frame. Every frame carries the full view, so the next one catches it up.

package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/tankguess/apps/go-server/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 4 << 10
	sendBuffer = 16
)

type subscriber struct {
	send chan []byte
}

// Hub implements session.Publisher.
type Hub struct {
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[session.Key]map[*subscriber]struct{}
}

// NewHub returns a hub accepting upgrades from origin ("" or "*" allows any).
func NewHub(origin string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return origin == "" || origin == "*" || o == "" || o == origin
			},
		},
		subs: make(map[session.Key]map[*subscriber]struct{}),
	}
}

// Publish implements session.Publisher.
func (h *Hub) Publish(key session.Key, ev session.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := h.subs[key]
	if len(subs) == 0 {
		return
	}
	data, err := frame(ev)
	if err != nil {
		log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("encode event")
		return
	}
	for sub := range subs {
		select {
		case sub.send <- data:
		default:
			log.Warn().Str("player", key.Player).Msg("event subscriber lagging, frame dropped")
		}
	}
}

// Subscribers returns the number of connections for key.
func (h *Hub) Subscribers(key session.Key) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Serve upgrades the request and streams key's events until the client goes
// away. initial is sent in the welcome frame.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, key session.Key, initial session.View) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Debug().Err(err).Msg("websocket upgrade")
		return
	}

	welcome, err := Encode(MsgWelcome, Welcome{PlayerID: key.Player, View: initial})
	if err != nil {
		conn.Close()
		return
	}
	sub := &subscriber{send: make(chan []byte, sendBuffer)}
	sub.send <- welcome
	h.add(key, sub)
	log.Debug().Str("player", key.Player).Str("category", string(key.Category)).Msg("events subscribed")

	done := make(chan struct{})
	go h.writePump(conn, sub, done)

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// The stream is server to client; reads only drive pongs and close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(key, sub)
	close(done)
	conn.Close()
	log.Debug().Str("player", key.Player).Str("category", string(key.Category)).Msg("events unsubscribed")
}

func (h *Hub) writePump(conn *websocket.Conn, sub *subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) add(key session.Key, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscriber]struct{})
	}
	h.subs[key][sub] = struct{}{}
}

func (h *Hub) remove(key session.Key, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[key], sub)
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}
