package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/thornboo/jincheng-campus-api/internal/auth"
	"github.com/thornboo/jincheng-campus-api/internal/chat"
	"github.com/thornboo/jincheng-campus-api/internal/config"
	"github.com/thornboo/jincheng-campus-api/internal/metrics"
	"github.com/thornboo/jincheng-campus-api/internal/model"
	"github.com/thornboo/jincheng-campus-api/internal/presence"
	"github.com/thornboo/jincheng-campus-api/internal/store"
	"github.com/thornboo/jincheng-campus-api/internal/ws"
)

// Server hosts the REST surface around the realtime core plus the
// websocket upgrade endpoint.
type Server struct {
	app        *fiber.App
	store      store.Store
	registry   presence.Registry
	fanout     *chat.Fanout
	authorizer *chat.Authorizer
	log        *zap.SugaredLogger
}

func NewServer(cfg *config.Config, st store.Store, registry presence.Registry, fanout *chat.Fanout, gate *ws.Gate, verifier auth.Verifier, log *zap.SugaredLogger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	s := &Server{
		app:        app,
		store:      st,
		registry:   registry,
		fanout:     fanout,
		authorizer: chat.NewAuthorizer(st),
		log:        log,
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(gate.Handle))

	app.Get("/presence/:userId", s.getPresence)

	api := app.Group("/api", RequireAuth(verifier))
	api.Get("/chat/sessions", s.listSessions)
	api.Post("/chat/sessions", s.createOrGetSession)
	api.Get("/chat/sessions/:id/messages", s.listMessages)
	api.Put("/chat/sessions/:id/read", s.markSessionRead)
	api.Get("/notifications", s.listNotifications)
	api.Put("/notifications/:id/read", s.markNotificationRead)
	api.Get("/online", s.countOnline)
	api.Post("/broadcast", s.broadcast)

	return s
}

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.app.ShutdownWithContext(ctx) }

func (s *Server) listSessions(c *fiber.Ctx) error {
	ident := identityFrom(c)
	sessions, err := s.store.ListSessions(c.Context(), ident.ID)
	if err != nil {
		s.log.Errorw("list sessions failed", "user", ident.ID, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list sessions")
	}
	return c.JSON(fiber.Map{"success": true, "data": sessions})
}

func (s *Server) createOrGetSession(c *fiber.Ctx) error {
	ident := identityFrom(c)
	var body struct {
		OtherUserID string `json:"otherUserId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	sess, created, err := s.store.CreateOrGetSession(c.Context(), ident.ID, body.OtherUserID)
	if errors.Is(err, store.ErrInvalidParticipants) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	if err != nil {
		s.log.Errorw("create session failed", "user", ident.ID, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create session")
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"success": true, "data": fiber.Map{
		"id":          sess.ID,
		"otherUserId": sess.OtherParticipant(ident.ID),
		"createdAt":   sess.CreatedAt,
	}})
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	ident := identityFrom(c)
	sessionID := c.Params("id")
	if _, err := s.authorizer.Authorize(c.Context(), ident.ID, sessionID); err != nil {
		return s.authError(err)
	}
	page := int64(c.QueryInt("page", 1))
	limit := int64(c.QueryInt("limit", 50))
	msgs, err := s.store.ListMessages(c.Context(), sessionID, page, limit)
	if err != nil {
		s.log.Errorw("list messages failed", "session", sessionID, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list messages")
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return c.JSON(fiber.Map{"success": true, "data": msgs})
}

func (s *Server) markSessionRead(c *fiber.Ctx) error {
	ident := identityFrom(c)
	sessionID := c.Params("id")
	if _, err := s.authorizer.Authorize(c.Context(), ident.ID, sessionID); err != nil {
		return s.authError(err)
	}
	n, err := s.store.MarkSessionRead(c.Context(), sessionID, ident.ID)
	if err != nil {
		s.log.Errorw("mark session read failed", "session", sessionID, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to mark read")
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"markedRead": n}})
}

func (s *Server) listNotifications(c *fiber.Ctx) error {
	ident := identityFrom(c)
	page := int64(c.QueryInt("page", 1))
	limit := int64(c.QueryInt("limit", 20))
	notifications, unread, err := s.store.ListNotifications(c.Context(), ident.ID, page, limit)
	if err != nil {
		s.log.Errorw("list notifications failed", "user", ident.ID, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list notifications")
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{
		"notifications": notifications,
		"unreadCount":   unread,
	}})
}

func (s *Server) markNotificationRead(c *fiber.Ctx) error {
	ident := identityFrom(c)
	err := s.store.MarkNotificationRead(c.Context(), ident.ID, c.Params("id"))
	if errors.Is(err, store.ErrNotificationNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "notification not found")
	}
	if err != nil {
		s.log.Errorw("mark notification read failed", "user", ident.ID, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to mark notification read")
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) countOnline(c *fiber.Ctx) error {
	n, err := s.registry.CountOnline(c.Context())
	if err != nil {
		s.log.Errorw("count online failed", "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to count online users")
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"online": n}})
}

func (s *Server) broadcast(c *fiber.Ctx) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&body); err != nil || body.Message == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message required")
	}
	if err := s.fanout.Broadcast(c.Context(), body.Message); err != nil {
		s.log.Errorw("broadcast failed", "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "broadcast failed")
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) getPresence(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId required")
	}
	online, err := s.registry.IsOnline(c.Context(), userID)
	if err != nil {
		s.log.Errorw("presence lookup failed", "user", userID, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "presence lookup failed")
	}
	return c.JSON(fiber.Map{"userId": userID, "online": online})
}

func (s *Server) authError(err error) error {
	if errors.Is(err, chat.ErrNotParticipant) {
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "operation failed")
}
