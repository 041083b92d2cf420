package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dex-backend/internal/events"
	"dex-backend/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrHubQueueFull is returned when the broadcast queue cannot accept a message
var ErrHubQueueFull = errors.New("websocket hub queue full")

// Connection is one websocket client. Send is closed by the hub on unregister.
type Connection struct {
	ID          string          `json:"id"`
	Conn        *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	ConnectedAt time.Time       `json:"connected_at"`

	groups map[string]struct{}
}

// NewConnection creates a connection with a buffered send queue
func NewConnection(id string, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:          id,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		ConnectedAt: time.Now(),
		groups:      make(map[string]struct{}),
	}
}

type registration struct {
	conn *Connection
	done chan struct{}
}

type groupFrame struct {
	group string
	tag   events.Tag
	data  []byte
}

// WebSocketHub routes event bus frames to the connections subscribed to a group
type WebSocketHub struct {
	connections map[string]*Connection
	groups      map[string]map[string]*Connection // group -> connID -> conn
	hub         chan groupFrame
	register    chan registration
	unregister  chan *Connection
	stopCh      chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	logger      *logrus.Logger
}

// NewWebSocketHub creates the hub and starts its dispatch loop
func NewWebSocketHub(logger *logrus.Logger) *WebSocketHub {
	h := &WebSocketHub{
		connections: make(map[string]*Connection),
		groups:      make(map[string]map[string]*Connection),
		hub:         make(chan groupFrame, 1024),
		register:    make(chan registration),
		unregister:  make(chan *Connection),
		stopCh:      make(chan struct{}),
		logger:      logger,
	}
	go h.run()
	return h
}

func (h *WebSocketHub) run() {
	for {
		select {
		case reg := <-h.register:
			h.handleRegister(reg.conn)
			close(reg.done)
		case conn := <-h.unregister:
			h.handleUnregister(conn)
		case frame := <-h.hub:
			h.handleBroadcast(frame)
		case <-h.stopCh:
			h.closeAll()
			return
		}
	}
}

// Stop closes every connection's send queue and ends the dispatch loop
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Register adds a connection and returns once it can subscribe. It receives
// nothing until it subscribes.
func (h *WebSocketHub) Register(conn *Connection) {
	reg := registration{conn: conn, done: make(chan struct{})}
	select {
	case h.register <- reg:
		<-reg.done
	case <-h.stopCh:
	}
}

// Unregister removes a connection from every group and closes its send queue
func (h *WebSocketHub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.stopCh:
	}
}

func (h *WebSocketHub) handleRegister(conn *Connection) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.connections[conn.ID] = conn
	metrics.WebSocketClients.Set(float64(len(h.connections)))
	h.logger.WithField("conn_id", conn.ID).Debug("WebSocket connection registered")
}

func (h *WebSocketHub) handleUnregister(conn *Connection) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	for group := range conn.groups {
		h.removeFromGroup(conn, group)
	}
	delete(h.connections, conn.ID)
	close(conn.Send)
	metrics.WebSocketClients.Set(float64(len(h.connections)))
	h.logger.WithField("conn_id", conn.ID).Debug("WebSocket connection unregistered")
}

func (h *WebSocketHub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for id, conn := range h.connections {
		close(conn.Send)
		delete(h.connections, id)
	}
	h.groups = make(map[string]map[string]*Connection)
	metrics.WebSocketClients.Set(0)
}

// Subscribe adds a registered connection to a group
func (h *WebSocketHub) Subscribe(conn *Connection, group string) error {
	if group == "" {
		return fmt.Errorf("empty group")
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return fmt.Errorf("connection %s not registered", conn.ID)
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]*Connection)
		h.groups[group] = members
	}
	members[conn.ID] = conn
	conn.groups[group] = struct{}{}
	return nil
}

// Unsubscribe removes a connection from a group
func (h *WebSocketHub) Unsubscribe(conn *Connection, group string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeFromGroup(conn, group)
}

func (h *WebSocketHub) removeFromGroup(conn *Connection, group string) {
	delete(conn.groups, group)
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, conn.ID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Publish queues a message for every subscriber of msg.Group. It never blocks
// on slow clients.
func (h *WebSocketHub) Publish(ctx context.Context, msg events.Message) error {
	data, err := msg.Frame()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	select {
	case h.hub <- groupFrame{group: msg.Group, tag: msg.Tag, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopCh:
		return fmt.Errorf("websocket hub stopped")
	default:
		return ErrHubQueueFull
	}
}

func (h *WebSocketHub) handleBroadcast(frame groupFrame) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.groups[frame.group]
	if len(members) == 0 {
		return
	}

	sent, dropped := 0, 0
	for _, conn := range members {
		select {
		case conn.Send <- frame.data:
			sent++
		default:
			dropped++
			h.logger.WithFields(logrus.Fields{
				"conn_id": conn.ID,
				"group":   frame.group,
				"tag":     frame.tag,
			}).Warn("WebSocket send queue full, dropping frame")
		}
	}
	h.logger.WithFields(logrus.Fields{
		"group":   frame.group,
		"tag":     frame.tag,
		"sent":    sent,
		"dropped": dropped,
	}).Debug("WebSocket frame delivered")
}

// ActiveConnections returns the number of registered connections
func (h *WebSocketHub) ActiveConnections() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.connections)
}

// GroupSize returns the number of connections subscribed to a group
func (h *WebSocketHub) GroupSize(group string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.groups[group])
}
