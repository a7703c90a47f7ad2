package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/sqlsession/internal/infrastructure/config"
	"github.com/nerrad567/sqlsession/internal/session"
)

// Message types on the event stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	// wsSendBufferSize is the per-client outbound queue length.
	wsSendBufferSize = 256

	// AllSessionChannels subscribes to every lifecycle event.
	AllSessionChannels = "session.*"

	sessionChannelPrefix = "session."
)

// sessionChannels are the channels a client may name besides AllSessionChannels.
var sessionChannels = map[string]bool{
	SessionChannel(session.EventOpened):    true,
	SessionChannel(session.EventMigrated):  true,
	SessionChannel(session.EventReset):     true,
	SessionChannel(session.EventDestroyed): true,
}

// SessionChannel returns the channel carrying events of type t, e.g. "session.migrated".
func SessionChannel(t session.EventType) string {
	return sessionChannelPrefix + string(t)
}

// WSMessage is an outbound frame. Clients receive event, response and
// error frames in this shape.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound frame; the payload is decoded per type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// WSClient is one connected event-stream consumer.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
	subject       string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// handleWebSocket upgrades an authenticated request to the event stream.
//
// Browsers cannot set headers on the upgrade request, so a single-use
// ticket (from POST /auth/ws-ticket) is accepted as a query parameter.
// Other clients may send the bearer token instead.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.authenticateWebSocket(r)
	if !ok {
		writeUnauthorized(w, "valid ticket or bearer token is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       subject,
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// authenticateWebSocket resolves the caller from a ticket or bearer token.
func (s *Server) authenticateWebSocket(r *http.Request) (string, bool) {
	if ticket := r.URL.Query().Get("ticket"); ticket != "" {
		entry, ok := s.tickets.redeem(ticket)
		return entry.subject, ok
	}

	raw, ok := bearerToken(r)
	if !ok {
		return "", false
	}
	claims, err := parseToken([]byte(s.secCfg.JWT.Secret), raw)
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

// keepalive returns how long a connection may stay silent.
func keepalive(cfg config.WebSocketConfig) (pingInterval, deadline time.Duration) {
	pingInterval = time.Duration(cfg.PingInterval) * time.Second
	return pingInterval, pingInterval + time.Duration(cfg.PongTimeout)*time.Second
}

// writeWait bounds a single frame write; a stalled peer is dropped after one pong timeout.
func writeWait(cfg config.WebSocketConfig) time.Duration {
	return time.Duration(cfg.PongTimeout) * time.Second
}

// readPump processes inbound frames until the connection fails.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	_, deadline := keepalive(cfg)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(deadline)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Application frames count as liveness too; some browsers never answer pings.
		extend() //nolint:errcheck // Best-effort deadline reset
		c.handleMessage(data)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval, _ := keepalive(cfg)
	wait := writeWait(cfg)
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // Write error caught below
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // Best-effort close frame
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.changeSubscriptions(req, true)
	case WSTypeUnsubscribe:
		c.changeSubscriptions(req, false)
	case WSTypePing:
		c.sendResponse(req.ID, WSTypePong, nil)
	default:
		c.sendError(req.ID, "unknown message type: "+req.Type)
	}
}

// changeSubscriptions adds or removes the requested channels. An unknown
// channel rejects the whole request.
func (c *WSClient) changeSubscriptions(req wsRequest, add bool) {
	var body WSSubscribePayload
	if err := json.Unmarshal(req.Payload, &body); err != nil || len(body.Channels) == 0 {
		c.sendError(req.ID, "payload must list channels")
		return
	}
	for _, ch := range body.Channels {
		if ch != AllSessionChannels && !sessionChannels[ch] {
			c.sendError(req.ID, fmt.Sprintf("unknown channel %q", ch))
			return
		}
	}

	c.mu.Lock()
	for _, ch := range body.Channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if add {
		key = "subscribed"
		c.hub.logger.Info("websocket client subscribed", "channels", body.Channels, "subject", c.subject)
	}
	c.sendResponse(req.ID, WSTypeResponse, map[string]any{key: body.Channels})
}

// trySend queues data without blocking. It reports false when the buffer
// is full or the client has already been unregistered.
func (c *WSClient) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.subscriptions[AllSessionChannels]; ok && sessionChannels[channel] {
		return true
	}
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
