package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/btcguess/internal/domain/types"
	"github.com/okian/btcguess/internal/game"
	"github.com/okian/btcguess/internal/game/countdown"
	"github.com/okian/btcguess/pkg/logger"
	"github.com/okian/btcguess/pkg/metrics"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients authenticate with a bearer token, not cookies.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub tracks the websocket clients streaming game state.
type Hub struct {
	game   Game
	logger logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	userID string
	states <-chan game.State
	ticks  <-chan countdown.Tick
	cancel func()
	done   chan struct{}
	once   sync.Once
}

// NewHub creates a hub streaming from g.
func NewHub(g Game, l logger.Logger) *Hub {
	return &Hub{
		game:    g,
		logger:  l,
		clients: make(map[*client]struct{}),
	}
}

// HandleWS upgrades an authenticated request and streams the player's
// state changes and countdown ticks.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	const op = "api.ws"
	u, _ := UserFromContext(r.Context())
	states, ticks, cancel, err := h.game.Subscribe(r.Context(), u.ID)
	if err != nil {
		status, code := classify(err)
		writeJSON(w, status, types.ErrorResponse{Code: code, Message: game.Message(err, game.MsgFetchFailed)})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		h.logger.Warn(r.Context(), "upgrade failed", logger.String("op", op), logger.Error(err))
		return
	}

	c := &client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		userID: u.ID,
		states: states,
		ticks:  ticks,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if !h.register(c) {
		cancel()
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.WebsocketConnected()
	h.logger.Debug(context.Background(), "client connected",
		logger.String("client", c.id),
		logger.String("user", c.userID),
		logger.Int("clients", len(h.clients)),
	)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	metrics.WebsocketDisconnected()
	h.logger.Debug(context.Background(), "client disconnected",
		logger.String("client", c.id),
		logger.String("user", c.userID),
		logger.Int("clients", len(h.clients)),
	)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
}

func (c *client) stop() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		c.hub.unregister(c)
	})
}

// readPump drains the connection so control frames are processed.
func (c *client) readPump() {
	defer func() {
		c.stop()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn(context.Background(), "unexpected close",
					logger.String("client", c.id),
					logger.Error(err),
				)
			}
			return
		}
	}
}

// writePump is the only writer of the connection.
func (c *client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.writeClose()
			return
		case st, ok := <-c.states:
			if !ok {
				c.stop()
				c.writeClose()
				return
			}
			if err := c.write(types.StreamState, st); err != nil {
				return
			}
		case t, ok := <-c.ticks:
			if !ok {
				c.stop()
				c.writeClose()
				return
			}
			if err := c.write(types.StreamTick, t); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(types.StreamMessage{Type: kind, Payload: payload})
}

func (c *client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
