package ws

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/thornboo/jincheng-campus-api/internal/auth"
	"github.com/thornboo/jincheng-campus-api/internal/bus"
	"github.com/thornboo/jincheng-campus-api/internal/chat"
	"github.com/thornboo/jincheng-campus-api/internal/presence"
)

// Client is one admitted websocket connection. identity is set once
// at admission and read-only afterwards. Inbound events are handled
// sequentially on the read loop, which gives per-connection FIFO
// delivery order for everything this socket publishes.
type Client struct {
	id       string
	identity auth.Identity

	conn     socketConn
	send     chan []byte
	hub      *Hub
	router   *chat.Router
	registry presence.Registry
	limiter  *rate.Limiter
	log      *zap.SugaredLogger

	pongWait   time.Duration
	pingPeriod time.Duration
	writeWait  time.Duration
	maxMsgSize int64

	closed int32
}

type clientConfig struct {
	rateLimitPerSec int
	sendBuffer      int
	pongWait        time.Duration
	pingPeriod      time.Duration
	writeWait       time.Duration
	maxMsgSize      int64
}

func newClient(conn socketConn, socketID string, ident auth.Identity, hub *Hub, router *chat.Router, registry presence.Registry, cfg clientConfig, log *zap.SugaredLogger) *Client {
	return &Client{
		id:         socketID,
		identity:   ident,
		conn:       conn,
		send:       make(chan []byte, cfg.sendBuffer),
		hub:        hub,
		router:     router,
		registry:   registry,
		limiter:    rate.NewLimiter(rate.Limit(cfg.rateLimitPerSec), cfg.rateLimitPerSec),
		log:        log,
		pongWait:   cfg.pongWait,
		pingPeriod: cfg.pingPeriod,
		writeWait:  cfg.writeWait,
		maxMsgSize: cfg.maxMsgSize,
	}
}

// enqueue hands a frame to the write loop without blocking. Returns
// false when the buffer is full (slow consumer).
func (c *Client) enqueue(frame []byte) bool {
	if atomic.LoadInt32(&c.closed) == 1 {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// shutdown marks the client dead and closes the connection. The send
// channel is left open so concurrent enqueues never panic; writePump
// exits on the next failed write.
func (c *Client) shutdown() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		_ = c.conn.Close()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		if err := c.registry.Retire(context.Background(), c.id, c.identity.ID); err != nil {
			c.log.Warnw("presence retire failed", "socket", c.id, "err", err)
		}
		c.shutdown()
	}()

	c.conn.SetReadLimit(c.maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			c.enqueue(errorFrame("rate limit exceeded"))
			continue
		}
		c.handle(raw)
	}
}

// handle processes one inbound frame. Failures surface as scoped
// error events; the connection stays open.
func (c *Client) handle(raw []byte) {
	in, err := DecodeInbound(raw)
	if err != nil {
		c.enqueue(errorFrame(err.Error()))
		return
	}
	ctx := context.Background()

	switch in.Event {
	case EventJoinChat:
		sess, err := c.router.JoinSession(ctx, c.identity, in.Join.SessionID)
		if err != nil {
			c.enqueue(c.scopedError(err))
			return
		}
		c.hub.Join(bus.ChatRoom(sess.ID), c)
		c.enqueue(encodeFrame("joined_chat", map[string]string{"sessionId": sess.ID}))

	case EventSendMessage:
		_, err := c.router.Send(ctx, c.identity, chat.SendInput{
			SessionID:   in.Send.SessionID,
			Content:     in.Send.Content,
			MessageType: in.Send.MessageType,
		})
		if err != nil {
			c.enqueue(c.scopedError(err))
		}

	case EventMarkRead:
		if _, err := c.router.MarkRead(ctx, c.identity, c.id, chat.MarkReadInput{
			SessionID:  in.MarkRead.SessionID,
			MessageIDs: in.MarkRead.MessageIDs,
		}); err != nil {
			c.enqueue(c.scopedError(err))
		}
	}
}

// scopedError maps router errors to client-visible messages without
// leaking storage internals.
func (c *Client) scopedError(err error) []byte {
	switch {
	case errors.Is(err, chat.ErrNotParticipant),
		errors.Is(err, chat.ErrEmptyContent),
		errors.Is(err, chat.ErrInvalidMessageType):
		return errorFrame(err.Error())
	default:
		c.log.Errorw("operation failed", "socket", c.id, "user", c.identity.ID, "err", err)
		return errorFrame("operation failed")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if err := c.registry.Touch(context.Background(), c.id, c.identity.ID); err != nil {
				c.log.Warnw("presence touch failed", "socket", c.id, "err", err)
			}
		}
	}
}
