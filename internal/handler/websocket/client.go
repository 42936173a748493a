// Package websocket streams live chat-list and message snapshots to
// connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mixgram/mixgram/internal/domain/chat"
	"github.com/mixgram/mixgram/internal/domain/message"
	httphandler "github.com/mixgram/mixgram/internal/handler/http"
	"github.com/mixgram/mixgram/internal/store"
)

// Default client configuration constants.
const (
	defaultPingInterval   = 30 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultWriteWait      = 10 * time.Second
	defaultMaxMessageSize = 4096
	defaultSendBufferSize = 256
)

// ClientConfig holds configuration for WebSocket clients.
type ClientConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultClientConfig returns sensible default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:   defaultPingInterval,
		PongWait:       defaultPongWait,
		WriteWait:      defaultWriteWait,
		MaxMessageSize: defaultMaxMessageSize,
	}
}

// SnapshotService is the slice of the messaging service the client needs.
// Declared on the consumer side per project guidelines.
type SnapshotService interface {
	GetChat(ctx context.Context, chatID string) (*chat.Chat, error)
	SubscribeToChats(ctx context.Context, userID string, fn func(chats []*chat.Chat)) (store.Unsubscribe, error)
	SubscribeToMessages(ctx context.Context, chatID string, fn func(messages []*message.Message)) (store.Unsubscribe, error)
}

// ClientMessage represents a message from client to server.
type ClientMessage struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id,omitempty"`
}

// chatsFrame is the chat-list snapshot pushed to the client.
type chatsFrame struct {
	Type  string                     `json:"type"`
	Chats []httphandler.ChatResponse `json:"chats"`
}

// messagesFrame is the per-chat message snapshot pushed to the client.
type messagesFrame struct {
	Type     string                        `json:"type"`
	ChatID   string                        `json:"chat_id"`
	Messages []httphandler.MessageResponse `json:"messages"`
}

// Client represents a single WebSocket connection. Each snapshot
// subscription it holds delivers the full current state, never a diff; the
// latest frame always supersedes earlier ones.
type Client struct {
	conn    *websocket.Conn
	service SnapshotService
	send    chan []byte
	userID  string
	config  ClientConfig
	logger  *slog.Logger

	// mu protects subscriptions and closed.
	mu            sync.Mutex
	chatListSub   store.Unsubscribe
	subscriptions map[string]store.Unsubscribe
	closed        bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientConfig sets the client configuration.
func WithClientConfig(config ClientConfig) ClientOption {
	return func(c *Client) {
		c.config = config
	}
}

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new WebSocket client for an authenticated user.
func NewClient(conn *websocket.Conn, service SnapshotService, userID string, opts ...ClientOption) *Client {
	c := &Client{
		conn:          conn,
		service:       service,
		send:          make(chan []byte, defaultSendBufferSize),
		userID:        userID,
		config:        DefaultClientConfig(),
		logger:        slog.Default(),
		subscriptions: make(map[string]store.Unsubscribe),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// UserID returns the user ID associated with this client.
func (c *Client) UserID() string {
	return c.userID
}

// Start opens the chat-list subscription and runs the read/write pumps.
// It blocks until the connection closes.
func (c *Client) Start(ctx context.Context) error {
	unsub, err := c.service.SubscribeToChats(ctx, c.userID, func(chats []*chat.Chat) {
		frame := chatsFrame{Type: "chats", Chats: make([]httphandler.ChatResponse, 0, len(chats))}
		for _, ch := range chats {
			frame.Chats = append(frame.Chats, httphandler.ToChatResponse(ch))
		}
		c.sendJSON(frame)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.chatListSub = unsub
	c.mu.Unlock()

	go c.writePump()
	c.readPump(ctx)
	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", slog.String("error", err.Error()))
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error",
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		c.handleClientMessage(ctx, raw)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline", slog.String("error", err.Error()))
				return
			}

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.logger.Warn("websocket write error",
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()),
				)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes a message received from the client.
func (c *Client) handleClientMessage(ctx context.Context, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warn("invalid client message",
			slog.String("user_id", c.userID),
			slog.String("error", err.Error()),
		)
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case "subscribe":
		if msg.ChatID == "" {
			c.sendError("chat_id is required for subscribe")
			return
		}
		c.subscribeMessages(ctx, msg.ChatID)

	case "unsubscribe":
		if msg.ChatID == "" {
			c.sendError("chat_id is required for unsubscribe")
			return
		}
		c.unsubscribeMessages(msg.ChatID)
		c.sendAck("unsubscribed", msg.ChatID)

	case "ping":
		c.sendJSON(map[string]string{"type": "pong"})

	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

// subscribeMessages opens a message snapshot subscription for a chat the
// user participates in.
func (c *Client) subscribeMessages(ctx context.Context, chatID string) {
	found, err := c.service.GetChat(ctx, chatID)
	if err != nil {
		c.logger.Error("chat lookup failed",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		c.sendError("subscription failed")
		return
	}
	if found == nil || !found.HasParticipant(c.userID) {
		c.sendError("chat not available")
		return
	}

	c.mu.Lock()
	if _, exists := c.subscriptions[chatID]; exists {
		c.mu.Unlock()
		c.sendAck("subscribed", chatID)
		return
	}
	c.mu.Unlock()

	unsub, err := c.service.SubscribeToMessages(ctx, chatID, func(messages []*message.Message) {
		frame := messagesFrame{
			Type:     "messages",
			ChatID:   chatID,
			Messages: make([]httphandler.MessageResponse, 0, len(messages)),
		}
		for _, m := range messages {
			frame.Messages = append(frame.Messages, httphandler.ToMessageResponse(m))
		}
		c.sendJSON(frame)
	})
	if err != nil {
		c.sendError("subscription failed")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsub()
		return
	}
	c.subscriptions[chatID] = unsub
	c.mu.Unlock()

	c.sendAck("subscribed", chatID)
}

// unsubscribeMessages drops the message subscription for a chat.
func (c *Client) unsubscribeMessages(chatID string) {
	c.mu.Lock()
	unsub, ok := c.subscriptions[chatID]
	delete(c.subscriptions, chatID)
	c.mu.Unlock()

	if ok {
		unsub()
	}
}

// sendError sends an error message to the client.
func (c *Client) sendError(text string) {
	c.sendJSON(map[string]string{
		"type":    "error",
		"message": text,
	})
}

// sendAck sends an acknowledgment message to the client.
func (c *Client) sendAck(action, chatID string) {
	c.sendJSON(map[string]string{
		"type":    "ack",
		"action":  action,
		"chat_id": chatID,
	})
}

// sendJSON marshals a frame and queues it for delivery. Frames are dropped
// when the send buffer is full; a later snapshot carries the full state.
func (c *Client) sendJSON(frame any) {
	raw, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("frame marshal failed", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- raw:
	default:
		c.logger.Warn("client send buffer full",
			slog.String("user_id", c.userID),
		)
	}
}

// Close tears down all subscriptions and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	chatListSub := c.chatListSub
	subs := make([]store.Unsubscribe, 0, len(c.subscriptions))
	for _, unsub := range c.subscriptions {
		subs = append(subs, unsub)
	}
	c.subscriptions = make(map[string]store.Unsubscribe)
	close(c.send)
	c.mu.Unlock()

	if chatListSub != nil {
		chatListSub()
	}
	for _, unsub := range subs {
		unsub()
	}

	_ = c.conn.Close()

	c.logger.Debug("client connection closed",
		slog.String("user_id", c.userID),
	)
}
