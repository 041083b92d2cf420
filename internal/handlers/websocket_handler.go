package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"dex-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WebSocketHandler upgrades clients and lets them subscribe to event groups
type WebSocketHandler struct {
	hub      *services.WebSocketHub
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WebSocketHub, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// SubscriptionMessage is a client control frame
type SubscriptionMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Type   string `json:"type"`   // "ping"
	Group  string `json:"group"`  // {chain_id}{base}{quote} or {chain_id}
}

type controlReply struct {
	Type      string `json:"type"`
	Group     string `json:"group,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HandleWebSocket GET /ws[?group=...]. Every group query value is subscribed on connect.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := services.NewConnection(uuid.New().String(), conn)
	h.hub.Register(client)

	for _, group := range c.QueryArray("group") {
		if err := h.hub.Subscribe(client, group); err != nil {
			h.logger.WithError(err).WithField("conn_id", client.ID).Warn("Initial subscription failed")
		}
	}
	h.logger.WithField("conn_id", client.ID).Info("WebSocket client connected")

	replies := make(chan controlReply, 16)
	go h.writePump(client, replies)
	h.readPump(client, replies)
}

// readPump handles control frames until the client goes away
func (h *WebSocketHandler) readPump(client *services.Connection, replies chan<- controlReply) {
	defer func() {
		h.hub.Unregister(client)
		h.logger.WithField("conn_id", client.ID).Info("WebSocket client disconnected")
	}()

	conn := client.Conn
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.WithError(err).WithField("conn_id", client.ID).Warn("WebSocket read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if messageType != websocket.TextMessage {
			continue
		}

		var msg SubscriptionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(replies, controlReply{Type: "error", Error: "invalid message"})
			continue
		}

		switch {
		case msg.Type == "ping":
			h.reply(replies, controlReply{Type: "pong"})
		case msg.Action == "subscribe":
			if err := h.hub.Subscribe(client, msg.Group); err != nil {
				h.reply(replies, controlReply{Type: "error", Group: msg.Group, Error: err.Error()})
				continue
			}
			h.reply(replies, controlReply{Type: "subscribed", Group: msg.Group})
		case msg.Action == "unsubscribe":
			h.hub.Unsubscribe(client, msg.Group)
			h.reply(replies, controlReply{Type: "unsubscribed", Group: msg.Group})
		default:
			h.reply(replies, controlReply{Type: "error", Error: "unknown action"})
		}
	}
}

func (h *WebSocketHandler) reply(replies chan<- controlReply, r controlReply) {
	r.Timestamp = time.Now().Unix()
	select {
	case replies <- r:
	default:
		h.logger.Debug("WebSocket reply queue full, dropping reply")
	}
}

// writePump is the only writer of the connection. It ends when the hub closes Send.
func (h *WebSocketHandler) writePump(client *services.Connection, replies <-chan controlReply) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	conn := client.Conn
	for {
		select {
		case frame, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case r := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(r); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
