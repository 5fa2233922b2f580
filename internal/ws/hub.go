// Package ws is the live-push transport: an authenticated websocket per
// client and a registry of who is connected.
package ws

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gochat/internal/common"
	"gochat/internal/config"
	"gochat/internal/metrics"
)

var (
	ErrOffline    = errors.New("user has no open connection")
	ErrBufferFull = errors.New("send buffer full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Options struct {
	SendBuffer   int
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SendBuffer:   cfg.Delivery.SendBufferSize,
		PingInterval: cfg.Delivery.PingInterval,
		PongTimeout:  cfg.Delivery.PongTimeout,
		WriteTimeout: cfg.Delivery.WriteTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 10 * time.Second
	}
	if o.PongTimeout <= o.PingInterval {
		o.PongTimeout = o.PingInterval + o.PingInterval/2
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	return o
}

// Hub maps user ids to their open connections. A user may be connected
// from several devices at once.
type Hub struct {
	clients map[string][]*Client
	mu      sync.RWMutex

	secret  []byte
	opts    Options
	metrics *metrics.Metrics
}

func NewHub(secret []byte, opts Options, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string][]*Client),
		secret:  secret,
		opts:    opts.withDefaults(),
		metrics: m,
	}
}

// NewHubFromConfig is the wire provider.
func NewHubFromConfig(cfg *config.Config, m *metrics.Metrics) *Hub {
	return NewHub([]byte(cfg.Auth.JWTSecret), OptionsFromConfig(cfg), m)
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.userID] = append(h.clients[client.userID], client)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectedClients.Inc()
	}
	log.Printf("Client connected: %s", client.userID)
}

// Unregister removes the client and closes its send channel. Calling it
// twice for the same client is harmless.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	removed := false
	clients := h.clients[client.userID]
	for i, c := range clients {
		if c == client {
			clients = append(clients[:i], clients[i+1:]...)
			removed = true
			break
		}
	}
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	} else {
		h.clients[client.userID] = clients
	}
	if removed {
		close(client.send)
	}
	h.mu.Unlock()

	if removed {
		if h.metrics != nil {
			h.metrics.ConnectedClients.Dec()
		}
		log.Printf("Client disconnected: %s", client.userID)
	}
}

func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Push queues data on every connection of userID without blocking. It
// succeeds if at least one connection accepted the frame.
func (h *Hub) Push(userID string, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.clients[userID]
	if len(clients) == 0 {
		return ErrOffline
	}

	delivered := 0
	for _, c := range clients {
		select {
		case c.send <- data:
			delivered++
		default:
		}
	}
	if delivered == 0 {
		return ErrBufferFull
	}
	return nil
}

// ConnectionCount is used by the health endpoint.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// ServeWS authenticates the caller, upgrades the connection and starts its
// pumps. Browsers pass the token as ?token= since they cannot set headers.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenString := common.BearerToken(r)
	if tokenString == "" {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	claims, err := common.ValidToken(h.secret, tokenString)
	if err != nil {
		common.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for %s: %v", claims.UserID, err)
		return
	}

	client := newClient(h, conn, claims.UserID)
	h.Register(client)

	go client.writePump()
	go client.readPump()
}
