// Package feed pushes catalog change events to connected clients over
// websocket and plain TCP (one JSON object per line).
package feed

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"releasehub/internal/logging"
	"releasehub/internal/metrics"
)

const writeTimeout = 2 * time.Second

type Hub struct {
	mu        sync.Mutex
	clients   map[net.Conn]struct{}
	wsClients map[*websocket.Conn]struct{}
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[net.Conn]struct{}),
		wsClients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	h.updateGauge()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
	h.updateGauge()
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	h.wsClients[ws] = struct{}{}
	h.mu.Unlock()
	h.updateGauge()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
	h.updateGauge()
}

// Publish sends v as JSON to every client. Clients that fail a write are
// dropped.
func (h *Hub) Publish(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logging.Warn().Err(err).Msg("feed: marshal event")
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := c.Write(b); err != nil {
			_ = c.Close()
			delete(h.clients, c)
		}
	}
	for ws := range h.wsClients {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
	h.mu.Unlock()
	h.updateGauge()
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
	}
}

func (h *Hub) updateGauge() {
	s := h.Stats()
	metrics.FeedClients.Set(float64(s.TCPClients + s.WSClients))
}

func welcome(transport string, clients int) []byte {
	return []byte(fmt.Sprintf("{\"type\":\"welcome\",\"transport\":%q,\"clients\":%d}\n", transport, clients))
}
