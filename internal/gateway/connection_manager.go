package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/smallnest/chanx"
)

// ConnectionManager owns the registry and the broadcast loop. All outbound
// frames funnel through a single unbounded channel, so the delivery order for
// one auction always matches commit order; nothing is dropped or reordered.
type ConnectionManager struct {
	registry *ConnectionRegistry
	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh *chanx.UnboundedChan[broadcastMessage]

	// Lifecycle hooks, set by the Service before any connection arrives.
	onDisconnect func(conn *Connection)
	handler      MessageHandler
}

// MessageHandler consumes parsed client frames.
type MessageHandler interface {
	HandleMessage(conn *Connection, msg *Message)
}

// broadcastMessage routes one encoded frame. Exactly one of the targets is
// set: Conn for sender-only replies, UserID for a user's group, neither for
// a global broadcast.
type broadcastMessage struct {
	Conn   *Connection
	UserID string
	Data   []byte
}

// ConnectionConfig holds WebSocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    25 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a connection manager. ctx bounds the lifetime
// of the broadcast channel.
func NewConnectionManager(ctx context.Context, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		registry: NewConnectionRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: chanx.NewUnboundedChan[broadcastMessage](ctx, 256),
	}
}

// Start drains the broadcast channel until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh.Out:
			cm.deliver(message)
		}
	}
}

// Register adds a connection and starts its pumps.
func (cm *ConnectionManager) Register(conn *Connection) {
	cm.registry.Add(conn)

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Int("total_connections", cm.registry.Count()).
		Msg("connection registered")
}

// unregister removes a connection and fires the disconnect hook once.
func (cm *ConnectionManager) unregister(conn *Connection) {
	if !cm.registry.Remove(conn) {
		return
	}
	conn.closeSend()

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Int("total_connections", cm.registry.Count()).
		Msg("connection unregistered")

	if cm.onDisconnect != nil {
		cm.onDisconnect(conn)
	}
}

// BroadcastAll queues a frame for every live connection.
func (cm *ConnectionManager) BroadcastAll(data []byte) {
	cm.broadcastCh.In <- broadcastMessage{Data: data}
}

// SendToUser queues a frame for every connection in one user's group.
func (cm *ConnectionManager) SendToUser(userID string, data []byte) {
	cm.broadcastCh.In <- broadcastMessage{UserID: userID, Data: data}
}

// SendToConnection queues a frame for a single connection.
func (cm *ConnectionManager) SendToConnection(conn *Connection, data []byte) {
	cm.broadcastCh.In <- broadcastMessage{Conn: conn, Data: data}
}

// ConnectionCount returns the number of live connections.
func (cm *ConnectionManager) ConnectionCount() int {
	return cm.registry.Count()
}

func (cm *ConnectionManager) deliver(message broadcastMessage) {
	var targets []*Connection
	switch {
	case message.Conn != nil:
		targets = []*Connection{message.Conn}
	case message.UserID != "":
		targets = cm.registry.ForUser(message.UserID)
	default:
		targets = cm.registry.All()
	}

	for _, conn := range targets {
		if !conn.send(message.Data) {
			// Slow or dead client; evict rather than block the loop.
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID).
				Msg("connection send buffer full, closing connection")
			cm.unregister(conn)
			conn.Conn.Close()
		}
	}
}
