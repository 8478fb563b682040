package chathub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"matchpoint/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	userID   string
	userName string
	connID   string

	Conn *websocket.Conn
	Hub  *Hub
	Send chan models.Event

	log       zerolog.Logger
	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded connection for an authenticated user.
func NewWebSocketClient(conn *websocket.Conn, hub *Hub, userID, userName, connID string, log zerolog.Logger) *WebSocketClient {
	return &WebSocketClient{
		userID:   userID,
		userName: userName,
		connID:   connID,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan models.Event, sendBufferSize),
		log: log.With().
			Str("component", "ws").
			Str("user_id", userID).
			Str("conn_id", connID).
			Logger(),
	}
}

func (c *WebSocketClient) UserID() string                   { return c.userID }
func (c *WebSocketClient) UserName() string                 { return c.userName }
func (c *WebSocketClient) ConnID() string                   { return c.connID }
func (c *WebSocketClient) SendChannel() chan<- models.Event { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close shuts the send channel down, which stops the write pump and closes
// the socket behind it.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// readPump drains inbound frames and hands each event to the hub
// synchronously, so events on this connection are handled in arrival order.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.HandleDisconnect(c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		c.Hub.HandleEvent(c, raw)
	}
}

// writePump serializes events from the Send channel onto the socket and
// keeps the connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(evt)
			if err != nil {
				c.log.Error().Err(err).Str("event", evt.Name).Msg("event marshal failed")
				continue
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)
			w.Write([]byte{'\n'})

			// Flush whatever else is already queued.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next, ok := <-c.Send
				if !ok {
					w.Close()
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				extra, err := json.Marshal(next)
				if err != nil {
					continue
				}
				w.Write(extra)
				w.Write([]byte{'\n'})
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
