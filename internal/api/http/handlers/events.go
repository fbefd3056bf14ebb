package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hindsight/hub/internal/broadcast"
	"github.com/hindsight/hub/internal/hub"
	"github.com/hindsight/hub/internal/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		// In production, validate origin
		return true
	},
}

// WSMessage is the control envelope exchanged on the events socket.
// Trace events flow peer-ward as plain TraceEvent JSON; control traffic
// (discovery request and reply) uses this envelope.
type WSMessage struct {
	Type     string   `json:"type"`
	Services []string `json:"services,omitempty"`
}

// EventHandlers serves the live event stream.
type EventHandlers struct {
	hub *hub.Hub
	log zerolog.Logger
}

// NewEventHandlers creates event stream handlers backed by the hub.
func NewEventHandlers(h *hub.Hub) *EventHandlers {
	return &EventHandlers{
		hub: h,
		log: logger.WithComponent("http.events"),
	}
}

// client is one events socket peer. It receives every published trace
// event and answers the one-shot capability discovery request. The
// socket is a control and delivery channel only; span ingestion happens
// over the ingest endpoints, never here.
type client struct {
	conn *websocket.Conn
	sub  *broadcast.Subscription
	log  zerolog.Logger

	writeMu sync.Mutex

	describeCh chan []string
}

// DescribeServices asks the peer to enumerate its services and waits for
// the reply or ctx expiry. Implements capability.Describer.
func (c *client) DescribeServices(ctx context.Context) ([]string, error) {
	if err := c.writeJSON(WSMessage{Type: "describe_request"}); err != nil {
		return nil, err
	}
	select {
	case services := <-c.describeCh:
		return services, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeJSON writes one message under the write lock. gorilla allows a
// single concurrent writer per connection.
func (c *client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *client) writePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// ServeEvents handles GET /api/v1/events. Each connection gets its own
// broadcaster subscription and capability session; both are torn down
// synchronously when the peer goes away.
func (e *EventHandlers) ServeEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:       conn,
		log:        logger.WithComponent("http.events.client"),
		describeCh: make(chan []string, 1),
	}
	c.sub = e.hub.SubscribeEvents(ctx)
	sessionID := e.hub.AttachSession(ctx, c)

	e.log.Debug().Str("session_id", sessionID.String()).Msg("Events client connected")

	go c.writePump()
	go c.readPump(func() {
		cancel()
		e.hub.DetachSession(sessionID)
		e.log.Debug().Str("session_id", sessionID.String()).Msg("Events client disconnected")
	})
}

// readPump consumes peer messages for pong handling and discovery
// replies. It owns connection teardown.
func (c *client) readPump(onClose func()) {
	defer func() {
		onClose()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to set read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Msg("WebSocket error")
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "capabilities" {
			select {
			case c.describeCh <- msg.Services:
			default:
			}
		}
	}
}

// writePump forwards subscribed trace events to the peer and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.Events():
			if !ok {
				c.writeMu.Lock()
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.writeMu.Unlock()
				return
			}
			if err := c.writeJSON(ev); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.log.Debug().Err(err).Msg("Event write failed")
				}
				return
			}

		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}
