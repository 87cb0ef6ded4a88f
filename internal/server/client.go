package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"classpoll/internal/events"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Rate limits per minute
type RateLimits struct {
	MaxChatMessages int
	MaxPingMessages int
	MaxCommands     int
}

var DefaultRateLimits = RateLimits{
	MaxChatMessages: 30,
	MaxPingMessages: 60,
	MaxCommands:     120,
}

// ClientRateLimiter refills a fixed token budget per client every minute.
type ClientRateLimiter struct {
	limits        RateLimits
	chatTokens    int
	pingTokens    int
	commandTokens int
	lastRefill    time.Time
	now           func() time.Time
	mu            sync.Mutex
}

func NewClientRateLimiter(limits RateLimits) *ClientRateLimiter {
	rl := &ClientRateLimiter{limits: limits, now: time.Now}
	rl.refillTokens()
	rl.lastRefill = rl.now()
	return rl
}

func (rl *ClientRateLimiter) Allow(command string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.refillTokens()
		rl.lastRefill = now
	}

	var tokens *int
	switch command {
	case events.CommandSendChatMessage:
		tokens = &rl.chatTokens
	case events.CommandPing:
		tokens = &rl.pingTokens
	default:
		tokens = &rl.commandTokens
	}
	if *tokens > 0 {
		*tokens--
		return true
	}
	return false
}

func (rl *ClientRateLimiter) refillTokens() {
	rl.chatTokens = rl.limits.MaxChatMessages
	rl.pingTokens = rl.limits.MaxPingMessages
	rl.commandTokens = rl.limits.MaxCommands
}

// Client is a single WebSocket connection. Its id doubles as the socket id
// shown in the participant roster.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	clientID     string
	rateLimiter  *ClientRateLimiter
	connectedAt  time.Time
	lastActivity atomic.Int64
	logger       *WebSocketLogger

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, clientID string, logger *WebSocketLogger) *Client {
	now := time.Now()
	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		clientID:    clientID,
		rateLimiter: NewClientRateLimiter(hub.rateLimits),
		connectedAt: now,
		logger:      logger,
	}
	c.lastActivity.Store(now.UnixNano())
	return c
}

func (c *Client) ID() string {
	return c.clientID
}

// SendMessage queues data for the write pump. It reports false when the
// client is closed or its buffer is full; the message is dropped.
func (c *Client) SendMessage(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("client send buffer full", c.clientID, c.name())
		return false
	}
}

// SendEvent encodes and queues a single event for this client only.
func (c *Client) SendEvent(event events.Event) bool {
	data, err := event.Encode()
	if err != nil {
		c.logger.Error("encode event failed", c.clientID, c.name(), err, zap.String("msg_type", event.Name))
		return false
	}
	return c.SendMessage(data)
}

// closeSend stops accepting messages. The write pump flushes what is queued
// and then closes the connection.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) name() string {
	if c.hub == nil || c.hub.presence == nil {
		return ""
	}
	p, ok := c.hub.presence.Get(c.clientID)
	if !ok {
		return ""
	}
	return p.Name
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("websocket unexpected close", c.clientID, c.name(), err)
			}
			break
		}

		c.touch()
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var env events.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Warn("malformed message", c.clientID, c.name(), zap.Error(err))
		return
	}

	if !c.rateLimiter.Allow(env.Event) {
		c.logger.Warn("rate limit exceeded", c.clientID, c.name(), zap.String("msg_type", env.Event))
		return
	}

	if c.hub.dispatcher == nil {
		return
	}
	c.hub.dispatcher.Dispatch(context.Background(), c, env)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			// one envelope per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if time.Since(time.Unix(0, c.lastActivity.Load())) > pongWait*2 {
				c.logger.Info("client idle timeout", c.clientID, c.name())
				return
			}
		}
	}
}
