package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcourt/quizclash/go/internal/game"
	"github.com/mcourt/quizclash/go/internal/game/events"
)

// ConnectionManager manages WebSocket connections for game sessions. It is
// the Broadcast Layer: the game core hands it events, it fans them out to
// session pools or single connections.
type ConnectionManager struct {
	// Connection pools organized by session code
	sessionConns map[string]map[*Connection]bool
	byConnID     map[string]*Connection
	mu           sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Event broadcasting
	broadcastCh chan BroadcastMessage

	// Inbound message routing, set once at wiring time
	router *Router
}

// Connection represents a WebSocket connection to a client. SessionCode and
// StableID stay empty until the client creates or joins a session.
type Connection struct {
	ID          string
	StableID    string
	SessionCode string
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to fan out to connections
type BroadcastMessage struct {
	SessionCode  string
	Event        *events.Event
	ConnectionID string // if set, only send to this connection
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		sessionConns: make(map[string]map[*Connection]bool),
		byConnID:     make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// SetRouter wires the inbound message router. Must be called before any
// connection is accepted.
func (cm *ConnectionManager) SetRouter(r *Router) {
	cm.router = r
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.byConnID[connection.ID] = connection
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Msg("WebSocket connection established")

	return nil
}

// Bind associates a connection with a session and stable identity after a
// successful create, join or rejoin.
func (cm *ConnectionManager) Bind(conn *Connection, sessionCode, stableID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn.SessionCode = sessionCode
	conn.StableID = stableID

	if cm.sessionConns[sessionCode] == nil {
		cm.sessionConns[sessionCode] = make(map[*Connection]bool)
	}
	cm.sessionConns[sessionCode][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session", sessionCode).
		Str("stable_id", stableID).
		Int("total_connections", len(cm.sessionConns[sessionCode])).
		Msg("connection bound to session")
}

// Unbind detaches a connection from its session pool, undoing a Bind whose
// game operation failed.
func (cm *ConnectionManager) Unbind(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.sessionConns[conn.SessionCode]; exists {
		delete(connections, conn)
		if len(connections) == 0 {
			delete(cm.sessionConns, conn.SessionCode)
		}
	}
	conn.SessionCode = ""
	conn.StableID = ""
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.byConnID[conn.ID]; !exists {
		return
	}
	delete(cm.byConnID, conn.ID)
	close(conn.Send)

	if connections, exists := cm.sessionConns[conn.SessionCode]; exists {
		delete(connections, conn)
		if len(connections) == 0 {
			delete(cm.sessionConns, conn.SessionCode)
		}
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("session", conn.SessionCode).
		Msg("connection unregistered")
}

// BroadcastToSession sends an event to all connections of a session.
// Implements game.Broadcaster.
func (cm *ConnectionManager) BroadcastToSession(sessionCode string, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionCode: sessionCode, Event: event}:
	default:
		log.Warn().Str("session", sessionCode).Msg("broadcast channel full, dropping message")
	}
}

// SendToConnection sends an event to a single connection. Implements
// game.Broadcaster.
func (cm *ConnectionManager) SendToConnection(connectionID string, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{ConnectionID: connectionID, Event: event}:
	default:
		log.Warn().
			Str("connection_id", connectionID).
			Msg("broadcast channel full, dropping unicast message")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.ConnectionID != "" {
		if conn, ok := cm.byConnID[message.ConnectionID]; ok {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.sessionConns[message.SessionCode] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	// Marshal the event once
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Send under the read lock: unregisterConnection closes Send while
	// holding the write lock, so a connection still present in byConnID
	// here cannot have a closed channel. Sends never block (select with
	// default), so holding the lock is safe.
	var stale []*Connection
	cm.mu.RLock()
	for _, conn := range targets {
		if _, registered := cm.byConnID[conn.ID]; !registered {
			continue
		}
		select {
		case conn.Send <- eventData:
		default:
			// Connection is slow/dead, close it
			stale = append(stale, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range stale {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("session", message.Event.SessionCode).
		Int("connections", len(targets)).
		Msg("event broadcast")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() (total int, sessions int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.byConnID), len(cm.sessionConns)
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
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
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection. When the
// read loop ends it reports the disconnect to the game core, classifying
// clean closes as departures and everything else (dropped transport,
// keepalive timeout) as transient.
func (c *Connection) readPump() {
	reason := game.ReasonTransient
	defer func() {
		c.Manager.router.HandleDisconnect(c, reason)
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = game.ReasonDeparture
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.Manager.router.HandleMessage(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
