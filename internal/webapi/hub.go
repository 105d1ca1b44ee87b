// hub.go - websocket event stream, fed by engine.EventSink
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package webapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/constellationstudio/engine/internal/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans out engine.Event values to every connected websocket client.
// It implements engine.EventSink so the engine can publish directly into
// it with no intermediate queue.
type hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	log     zerolog.Logger
}

func newHub(log zerolog.Logger) *hub {
	return &hub{clients: make(map[*wsClient]struct{}), log: log}
}

// Publish implements engine.EventSink.
func (h *hub) Publish(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", ev.Type).Msg("webapi: event marshal failed")
		return
	}
	h.mu.RLock()
	snapshot := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()
	for _, c := range snapshot {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// serveWS upgrades the request and pumps events to the client until it
// disconnects. Writes only ever happen from the write-pump goroutine; the
// read loop exists solely to notice the peer going away.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("webapi: websocket upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, 16)}
	h.register(c)

	go func() {
		defer h.unregister(c)
		defer conn.Close()
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister(c)
			conn.Close()
			return
		}
	}
}
