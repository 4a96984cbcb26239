package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	ws "github.com/kapjain-rh/error-resolver/pkg/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one WebSocket connection.
type Client struct {
	ID            string
	conn          *websocket.Conn
	hub           *Hub
	send          chan []byte
	subscriptions map[string]bool // session IDs streamed to this client
	logger        *logger.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(id string, conn *websocket.Conn, hub *Hub, log *logger.Logger) *Client {
	return &Client{
		ID:            id,
		conn:          conn,
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
		logger:        log.WithFields(zap.String("client_id", id)),
	}
}

// ReadPump reads frames from the connection until it closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", zap.Error(err))
			}
			return
		}

		var msg ws.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("", "", ws.ErrorCodeBadRequest, "invalid message format")
			continue
		}
		c.handleMessage(ctx, &msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *ws.Message) {
	// Subscription frames need the client itself; everything else goes
	// through the dispatcher.
	switch msg.Action {
	case ws.ActionSessionSubscribe:
		c.handleSubscription(msg, true)
		return
	case ws.ActionSessionUnsubscribe:
		c.handleSubscription(msg, false)
		return
	}

	response, err := c.hub.dispatcher.Dispatch(ctx, msg)
	if err != nil {
		c.logger.Error("handler error", zap.String("action", msg.Action), zap.Error(err))
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeInternalError, err.Error())
		return
	}
	if response != nil {
		c.sendMessage(response)
	}
}

type subscriptionRequest struct {
	SessionID string `json:"session_id"`
}

func (c *Client) handleSubscription(msg *ws.Message, subscribe bool) {
	var req subscriptionRequest
	if err := msg.ParsePayload(&req); err != nil {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "invalid payload: "+err.Error())
		return
	}
	if req.SessionID == "" {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeValidation, "session_id is required")
		return
	}

	if subscribe {
		c.hub.SubscribeToSession(c, req.SessionID)
	} else {
		c.hub.UnsubscribeFromSession(c, req.SessionID)
	}

	resp, _ := ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"success":    true,
		"session_id": req.SessionID,
	})
	c.sendMessage(resp)
}

func (c *Client) sendMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal frame", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full")
	}
}

func (c *Client) sendError(id, action, code, message string) {
	msg, err := ws.NewError(id, action, code, message)
	if err != nil {
		return
	}
	c.sendMessage(msg)
}

// WritePump writes queued frames and keepalive pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
