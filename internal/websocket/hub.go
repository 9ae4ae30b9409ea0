// Package websocket serves the interview session to renderer clients. Every
// client receives full session snapshots and notices, and may send commands
// and binary microphone audio.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mockinterview/domain"
	"github.com/satriahrh/mockinterview/domain/entities"
	"github.com/satriahrh/mockinterview/domain/repositories"
	"github.com/satriahrh/mockinterview/internal/interview"
	"github.com/satriahrh/mockinterview/internal/notify"
	"github.com/satriahrh/mockinterview/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Time allowed for the session to handle one command.
	commandTimeout = 10 * time.Second

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	// The server binds to a loopback address and every connection carries a
	// signed renderer token.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Session is the interview session driven by renderer clients
type Session interface {
	Current() usecase.Snapshot
	SubscribeSnapshots(handler notify.Handler[usecase.Snapshot]) (unsubscribe func())
	SubscribeNotices(handler notify.Handler[domain.Notice]) (unsubscribe func())
	StartDictation(ctx context.Context) error
	StopDictation(ctx context.Context) error
	ToggleMicrophone(ctx context.Context) error
	ToggleCamera(ctx context.Context) error
	EndInterview(ctx context.Context) error
	SubmitFeedback(ctx context.Context, feedback entities.Feedback) error
	FeedAudio(audio []byte) error
}

// Hub maintains the set of active clients and broadcasts session updates to
// them.
type Hub struct {
	session   Session
	validator *MessageValidator

	// Registered clients.
	clients map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Outbound frames for every client.
	broadcast chan WriteData

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(session Session, logger *zap.Logger) *Hub {
	return &Hub{
		session:    session,
		validator:  NewMessageValidator(),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan WriteData, sendBufferSize),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	unsubscribeSnapshots := h.session.SubscribeSnapshots(func(snapshot usecase.Snapshot) {
		h.queue(CreateStateMessage(snapshot))
	})
	defer unsubscribeSnapshots()

	unsubscribeNotices := h.session.SubscribeNotices(func(notice domain.Notice) {
		h.queue(CreateNoticeMessage(notice))
	})
	defer unsubscribeNotices()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("viewerID", client.viewerID))

			if data, err := encode(CreateStateMessage(h.session.Current())); err == nil {
				client.write(data)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("viewerID", client.viewerID))

		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.write(data) {
					h.logger.Warn("Dropping slow client", zap.String("viewerID", client.viewerID))
					delete(h.clients, client)
					client.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// queue never blocks; it runs on the session goroutine.
func (h *Hub) queue(msg any) {
	data, err := encode(msg)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast queue full, dropping message")
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

func encode(msg any) (WriteData, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return WriteData{}, err
	}
	return WriteData{Type: websocket.TextMessage, Payload: payload}, nil
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Viewer ID from the renderer token
	viewerID string

	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// write queues data without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) write(data WriteData) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) reply(msg any) {
	data, err := encode(msg)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	if !c.write(data) {
		c.logger.Warn("Reply dropped")
	}
}

// HandleWebSocket upgrades an authenticated renderer connection
func HandleWebSocket(hub *Hub, c echo.Context, viewerID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, sendBufferSize),
		viewerID: viewerID,
		logger:   logger.With(zap.String("viewerID", viewerID)),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the session.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			if err := c.hub.session.FeedAudio(message); err != nil {
				c.logger.Debug("Audio chunk not accepted", zap.Int("size", len(message)), zap.Error(err))
			}
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage handles one renderer command
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.reply(CreateErrorMessage("", ErrorCodeInvalidMessage, "Invalid message", err.Error()))
		return
	}

	var base BaseMessage
	switch msg := parsed.(type) {
	case *PingMessage:
		c.reply(CreatePongMessage(msg.MessageID, msg.Data))
		return
	case *FeedbackMessage:
		base = msg.BaseMessage
		err = c.dispatch(func(ctx context.Context) error {
			return c.hub.session.SubmitFeedback(ctx, msg.Feedback())
		})
	case *CommandMessage:
		base = msg.BaseMessage
		err = c.dispatch(c.command(msg.Type))
	}

	if err != nil {
		code := errorCode(err)
		c.logger.Info("Command failed",
			zap.String("command", string(base.Type)),
			zap.String("code", code),
			zap.Error(err))
		c.reply(CreateErrorMessage(base.MessageID, code, "Command "+string(base.Type)+" failed", err.Error()))
		return
	}
	c.reply(CreateAckMessage(base.MessageID, base.Type))
}

func (c *Client) command(messageType MessageType) func(ctx context.Context) error {
	session := c.hub.session
	switch messageType {
	case MessageTypeStartDictation:
		return session.StartDictation
	case MessageTypeStopDictation:
		return session.StopDictation
	case MessageTypeToggleMicrophone:
		return session.ToggleMicrophone
	case MessageTypeToggleCamera:
		return session.ToggleCamera
	case MessageTypeEndInterview:
		return session.EndInterview
	default:
		return func(context.Context) error {
			return fmt.Errorf("unsupported command: %s", messageType)
		}
	}
}

func (c *Client) dispatch(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return fn(ctx)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, interview.ErrRejected), errors.Is(err, repositories.ErrRecognizerUnavailable):
		return ErrorCodeRejected
	case errors.Is(err, usecase.ErrSessionClosed):
		return ErrorCodeSessionClosed
	default:
		return ErrorCodeInternal
	}
}
