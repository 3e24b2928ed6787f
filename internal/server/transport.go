package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"duelnet/internal/observability"
	"duelnet/internal/protocol"
)

// MaxConnections bounds total concurrent peers, and MaxConnectionsPerIP
// bounds per-source-IP connections, mirroring internal/api/websocket.go's
// DoS-resistant connection limits.
const (
	MaxConnections      = 200
	MaxConnectionsPerIP = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		if isAllowedOrigin(r.Header.Get("Origin")) {
			return true
		}
		observability.RecordConnectionRejected("origin")
		return false
	},
}

// isAllowedOrigin mirrors internal/api/ratelimit.go's IsAllowedOrigin,
// narrowed to localhost development origins since this protocol core has
// no public web admin panel to defend.
func isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	return strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1")
}

// Hub accepts WebSocket connections, assigns each a peer id, and relays
// binary frames between the transport and ServerProtocol. Grounded on
// internal/api/websocket.go's register/unregister/broadcast channel hub,
// narrowed from an n-to-n JSON broadcast hub to a one-peer-per-connection
// binary relay, since every message here is addressed to exactly one
// peer (an unreliable RPC transport, not a chat-style broadcast).
type Hub struct {
	proto *ServerProtocol
	spawn func() protocol.Vec2

	mu          sync.Mutex
	connsByIP   map[string]int
	nextPeerNum uint64
}

// NewHub creates a transport hub delivering connections into proto.
// spawn supplies the world-space spawn point for each new player.
func NewHub(proto *ServerProtocol, spawn func() protocol.Vec2) *Hub {
	return &Hub{
		proto:     proto,
		spawn:     spawn,
		connsByIP: make(map[string]int),
	}
}

func (h *Hub) allowIP(ip string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connsByIP[ip] >= MaxConnectionsPerIP {
		return false
	}
	h.connsByIP[ip]++
	return true
}

func (h *Hub) releaseIP(ip string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connsByIP[ip] > 0 {
		h.connsByIP[ip]--
	}
}

func (h *Hub) nextPeerID() string {
	n := atomic.AddUint64(&h.nextPeerNum, 1)
	return fmt.Sprintf("peer-%d", n)
}

// ServeWS upgrades the request to a WebSocket and runs the connection's
// read/write loop until it closes. Intended to be wired directly as a
// chi route handler.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.proto.PeerCount() >= MaxConnections {
		observability.RecordConnectionRejected("total_limit")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ip := clientIP(r)
	if !h.allowIP(ip) {
		observability.RecordConnectionRejected("ip_limit")
		http.Error(w, "too many connections from your address", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.releaseIP(ip)
		return
	}

	peerID := h.nextPeerID()
	sendCh := make(chan []byte, 64)
	done := make(chan struct{})

	go h.writePump(conn, sendCh, done)

	h.proto.Connect(peerID, h.spawn(), func(b []byte) {
		select {
		case sendCh <- b:
		default:
			// Backpressure: drop rather than block the simulation tick on
			// a slow reader. The next snapshot supersedes this one anyway.
		}
	})
	log.Printf("📡 peer connected: %s (%s)", peerID, ip)

	h.readPump(conn, peerID)

	close(done)
	conn.Close()
	h.proto.Disconnect(peerID)
	h.releaseIP(ip)
	log.Printf("📡 peer disconnected: %s", peerID)
}

func (h *Hub) readPump(conn *websocket.Conn, peerID string) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		h.proto.HandleMessage(peerID, data, time.Now())
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sendCh chan []byte, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case b := <-sendCh:
			if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
				return
			}
		}
	}
}

// clientIP extracts the caller's address the same way
// internal/api/ratelimit.go's GetClientIP does, including the same
// X-Forwarded-For caveat for untrusted proxies.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		return host[:idx]
	}
	return host
}
