package ws

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thornboo/jincheng-campus-api/internal/auth"
	"github.com/thornboo/jincheng-campus-api/internal/chat"
	"github.com/thornboo/jincheng-campus-api/internal/config"
	"github.com/thornboo/jincheng-campus-api/internal/metrics"
	"github.com/thornboo/jincheng-campus-api/internal/presence"
)

// socketConn is the slice of *websocket.Conn the gate and client use.
type socketConn interface {
	Query(key string, defaultValue ...string) string
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ socketConn = (*websocket.Conn)(nil)

// Gate authenticates every inbound connection before any event is
// processed. Unauthenticated attempts are rejected outright: no hub
// registration, no room, no presence entry.
type Gate struct {
	verifier auth.Verifier
	hub      *Hub
	router   *chat.Router
	registry presence.Registry
	cfg      clientConfig
	log      *zap.SugaredLogger
}

func NewGate(verifier auth.Verifier, hub *Hub, router *chat.Router, registry presence.Registry, cfg *config.Config, log *zap.SugaredLogger) *Gate {
	return &Gate{
		verifier: verifier,
		hub:      hub,
		router:   router,
		registry: registry,
		cfg: clientConfig{
			rateLimitPerSec: cfg.WS.RateLimitPerSec,
			sendBuffer:      cfg.WS.SendBuffer,
			pongWait:        cfg.PongWait,
			pingPeriod:      cfg.PingPeriod,
			writeWait:       cfg.WriteWait,
			maxMsgSize:      cfg.WS.MaxMessageBytes,
		},
		log: log,
	}
}

// Handle runs for each upgraded connection: /ws?token=<jwt>
func (g *Gate) Handle(conn *websocket.Conn) {
	g.serve(conn)
}

func (g *Gate) serve(conn socketConn) {
	token := conn.Query("token")
	if token == "" {
		g.reject(conn, "authentication token required")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	ident, err := g.verifier.Verify(ctx, token)
	cancel()
	if err != nil {
		// generic on purpose: no hint about which check failed
		g.reject(conn, "invalid token")
		return
	}

	socketID := uuid.NewString()
	client := newClient(conn, socketID, ident, g.hub, g.router, g.registry, g.cfg, g.log)

	g.hub.Register(client)
	if err := g.registry.Announce(context.Background(), socketID, ident.ID); err != nil {
		g.log.Warnw("presence announce failed", "socket", socketID, "err", err)
	}
	metrics.ActiveConnections.Inc()
	g.log.Infow("connected", "user", ident.Username, "socket", socketID)

	go client.writePump()
	client.readPump()

	metrics.ActiveConnections.Dec()
	g.log.Infow("disconnected", "user", ident.Username, "socket", socketID)
}

func (g *Gate) reject(conn socketConn, message string) {
	_ = conn.WriteMessage(websocket.TextMessage, errorFrame(message))
	_ = conn.Close()
}
