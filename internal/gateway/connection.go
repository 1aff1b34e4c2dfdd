package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Connection is one authenticated WebSocket client.
type Connection struct {
	ID       string
	UserID   string
	Username string
	Conn     *websocket.Conn
	Manager  *ConnectionManager

	ConnectedAt time.Time

	sendMu sync.Mutex
	sendCh chan []byte
	closed bool
}

func newConnection(id, userID, username string, ws *websocket.Conn, cm *ConnectionManager) *Connection {
	return &Connection{
		ID:          id,
		UserID:      userID,
		Username:    username,
		Conn:        ws,
		Manager:     cm,
		ConnectedAt: time.Now(),
		sendCh:      make(chan []byte, 256),
	}
}

// send enqueues a frame for the write pump. Returns false when the buffer is
// full, which marks the client as too slow to keep. The mutex serializes send
// against closeSend: the broadcast loop and the pump goroutines race on
// disconnect, and a send on the closed channel would panic the loop.
func (c *Connection) send(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		// Disconnecting; drop the frame rather than report a slow client.
		return true
	}
	select {
	case c.sendCh <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.sendCh:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump parses inbound frames and hands them to the message handler.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug().
				Str("connection_id", c.ID).
				Msg("dropping malformed client frame")
			continue
		}

		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(c, &msg)
		}
	}
}
