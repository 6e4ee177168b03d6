package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ArowuTest/tambola-backend/internal/metrics"
	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/tambola"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

// CloseReason explains why a connection was dropped
type CloseReason string

const (
	ReasonWriteError CloseReason = "write_error"
	ReasonPingError  CloseReason = "ping_error"
	ReasonReadError  CloseReason = "read_error"
	ReasonBufferFull CloseReason = "buffer_full"
	ReasonShutdown   CloseReason = "server_shutdown"
)

// Identity is the authenticated user behind a connection
type Identity struct {
	UserID  string
	Name    string
	IsAdmin bool
}

// Client is one websocket connection
type Client struct {
	id       string
	identity Identity
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	limiter  *rate.Limiter
	hub      *Hub
	logger   *zap.Logger

	closeOnce sync.Once
	rooms     map[string]struct{} // guarded by hub.mu
}

func newClient(id string, identity Identity, conn *websocket.Conn, hub *Hub, limiter *rate.Limiter, buffer int, logger *zap.Logger) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		limiter:  limiter,
		hub:      hub,
		logger:   logger.With(zap.String("client_id", id), zap.String("user_id", identity.UserID)),
		rooms:    make(map[string]struct{}),
	}
}

// enqueue hands payload to the write pump without blocking; a full buffer drops the client
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		metrics.RecordDroppedClient()
		c.closeWithReason(ReasonBufferFull, nil)
		return false
	}
}

// SendEvent delivers an event to this client only
func (c *Client) SendEvent(event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("failed to encode event", zap.String("event", event.Event), zap.Error(err))
		return
	}
	c.enqueue(payload)
}

// SendError reports a failed command to this client only
func (c *Client) SendError(err error) {
	c.SendEvent(models.Event{
		Event: models.EventError,
		Data: models.ErrorMessage{
			Message: tambola.MessageOf(err),
			Code:    string(tambola.CodeOf(err)),
		},
	})
}

func (c *Client) closeWithReason(reason CloseReason, err error) {
	c.closeOnce.Do(func() {
		fields := []zap.Field{zap.String("reason", string(reason))}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		c.logger.Debug("ws connection closed", fields...)
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump decodes frames and dispatches them until the connection fails
func (c *Client) readPump(dispatcher *Dispatcher) {
	var readErr error
	defer func() {
		c.hub.unregister(c)
		c.closeWithReason(ReasonReadError, readErr)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				readErr = err
			}
			return
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.SendError(tambola.ErrRateLimited)
			continue
		}
		c.handle(dispatcher, message)
	}
}

func (c *Client) handle(dispatcher *Dispatcher, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered from panic while handling message", zap.Any("panic", r))
		}
	}()

	cmd, err := DecodeCommand(message)
	if err != nil {
		c.SendError(err)
		return
	}
	if err := dispatcher.Dispatch(context.Background(), c, cmd); err != nil {
		c.logger.Debug("command failed", zap.String("event", cmd.Event), zap.Error(err))
		c.SendError(err)
	}
}

// writePump writes queued payloads and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.closeWithReason(ReasonWriteError, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closeWithReason(ReasonPingError, err)
				return
			}
		}
	}
}
