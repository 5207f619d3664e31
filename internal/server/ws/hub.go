// Package ws fans market events out to WebSocket clients. The hub subscribes
// to the Redis signal bus and forwards event envelopes as JSON text frames;
// clients narrow the stream by event type.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pullmarket/pullmarket/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // subscribed event types, "*" suffix allowed
	mu   sync.RWMutex
}

// subscribeMsg is the JSON message a client sends to adjust its event-type
// filter, e.g. {"action":"subscribe","types":["market.*","token.minted"]}.
type subscribeMsg struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Types  []string `json:"types"`
}

// Hub manages a set of connected WebSocket clients and broadcasts events
// from the Redis signal bus to all subscribed clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan eventMsg
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	channel    string
	mu         sync.RWMutex
	logger     *slog.Logger
	mode       string
	startedAt  time.Time
	stats      StatsFunc
}

// eventMsg carries a raw event envelope along with its type so the hub can
// route it only to clients subscribed to that type.
type eventMsg struct {
	eventType string
	data      []byte
}

// StatsFunc reports live counters included in the status frame sent to each
// client on connect. May be nil.
type StatsFunc func() (totalProjects, activeMarkets int)

// Config captures runtime metadata used in hub status snapshots sent to
// WebSocket clients on connect.
type Config struct {
	// Channel is the signal bus channel carrying event envelopes.
	Channel   string
	Mode      string
	StartedAt time.Time
	Stats     StatsFunc
}

// NewHub creates a WebSocket hub that bridges the Redis signal bus to
// connected clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan eventMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		channel:    cfg.Channel,
		logger:     logger,
		mode:       mode,
		startedAt:  startedAt,
		stats:      cfg.Stats,
	}
}

// Run starts the hub's main event loop. It should be called in a goroutine.
// It handles client registration, unregistration, and event broadcasting.
// The loop exits when the provided context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	go h.subscribeToBus(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.Int("total_clients", h.clientCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.wantsType(msg.eventType) {
					select {
					case c.send <- msg.data:
					default:
						// Client's send buffer is full; drop the event.
						h.logger.Warn("ws: dropping event for slow client")
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// subscribeToBus subscribes to the event channel and forwards decoded
// envelopes to the hub's broadcast channel.
func (h *Hub) subscribeToBus(ctx context.Context) {
	msgCh, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to event channel",
			slog.String("channel", h.channel),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.Info("ws: subscribed to event channel", slog.String("channel", h.channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: event channel subscription closed")
				return
			}
			var env domain.Event
			if err := json.Unmarshal(data, &env); err != nil {
				h.logger.Warn("ws: discarding malformed event", slog.String("error", err.Error()))
				continue
			}
			h.broadcast <- eventMsg{
				eventType: env.Type,
				data:      data,
			}
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: map[string]bool{"*": true}, // all event types until narrowed
	}

	h.register <- c
	c.sendInitialStatus()

	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump reads messages from the WebSocket connection. It handles
// subscription management requests (JSON text frames) from the client.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if jsonErr := json.Unmarshal(message, &sub); jsonErr == nil && sub.Action != "" {
			c.handleSubscription(sub)
		}
	}
}

// handleSubscription processes subscribe/unsubscribe requests from the
// client. The first explicit subscribe replaces the catch-all filter.
func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		if c.subs["*"] && len(msg.Types) > 0 {
			delete(c.subs, "*")
		}
		for _, t := range msg.Types {
			c.subs[t] = true
		}
	case "unsubscribe":
		for _, t := range msg.Types {
			delete(c.subs, t)
		}
	}
}

// sendInitialStatus pushes a small JSON envelope so clients can immediately
// mark the connection as healthy even when no market events are flowing yet.
func (c *client) sendInitialStatus() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	payload := map[string]any{
		"mode":           c.hub.mode,
		"ws_connected":   true,
		"uptime_seconds": uptime,
	}
	if c.hub.stats != nil {
		projects, markets := c.hub.stats()
		payload["total_projects"] = projects
		payload["active_markets"] = markets
	}

	msg, err := json.Marshal(map[string]any{
		"type":    "status",
		"payload": payload,
	})
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

// wantsType checks whether the client's filter matches the given event type.
func (c *client) wantsType(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subs["*"] || c.subs[eventType] {
		return true
	}

	// Wildcard match: "market.*" should match "market.resolved".
	for sub := range c.subs {
		if strings.HasSuffix(sub, "*") && strings.HasPrefix(eventType, sub[:len(sub)-1]) {
			return true
		}
	}

	return false
}

// writePump pumps events from the hub to the WebSocket connection, with
// periodic ping frames for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
