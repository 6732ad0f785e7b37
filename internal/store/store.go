package store

import (
	"context"
	"errors"

	"github.com/thornboo/jincheng-campus-api/internal/model"
)

var (
	ErrSessionNotFound      = errors.New("chat session not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidParticipants  = errors.New("invalid session participants")
)

// SessionSummary is a session as shown in the caller's session list.
type SessionSummary struct {
	Session     model.ChatSession  `json:"session"`
	OtherUserID string             `json:"otherUserId"`
	LastMessage *model.ChatMessage `json:"lastMessage,omitempty"`
	UnreadCount int64              `json:"unreadCount"`
}

// Store is the single durable source of truth for chat state. All
// in-memory room/presence state is derived and reconstructible; only
// what goes through here survives a restart.
type Store interface {
	// FindSession returns the session or ErrSessionNotFound.
	FindSession(ctx context.Context, sessionID string) (*model.ChatSession, error)

	// CreateOrGetSession returns the canonical session for the
	// unordered pair, creating it on first contact. The bool reports
	// whether a new session was created.
	CreateOrGetSession(ctx context.Context, userID, otherID string) (*model.ChatSession, bool, error)

	// ListSessions returns the user's sessions, most recently active
	// first, with last message and unread count.
	ListSessions(ctx context.Context, userID string) ([]SessionSummary, error)

	// AppendMessage persists m (filling ID and CreatedAt) and updates
	// the session's last_message_id and last_active_at in the same
	// atomic write. last_active_at never decreases.
	AppendMessage(ctx context.Context, m *model.ChatMessage) error

	// ListMessages returns one page of session history in ascending
	// chronological order. Pages count from 1 and are taken off the
	// newest end of the conversation.
	ListMessages(ctx context.Context, sessionID string, page, limit int64) ([]model.ChatMessage, error)

	// MarkMessagesRead flips is_read on the given messages, provided
	// they belong to the session, were not sent by readerID, and are
	// still unread. Returns the ids actually flipped; reapplying the
	// same set is a no-op.
	MarkMessagesRead(ctx context.Context, sessionID, readerID string, messageIDs []string) ([]string, error)

	// MarkSessionRead flips is_read on every unread message in the
	// session not sent by readerID. Returns the number flipped.
	MarkSessionRead(ctx context.Context, sessionID, readerID string) (int64, error)

	// CreateNotification persists n, filling ID and CreatedAt.
	CreateNotification(ctx context.Context, n *model.Notification) error

	// ListNotifications returns one page of the user's notifications,
	// newest first, plus the user's total unread count.
	ListNotifications(ctx context.Context, userID string, page, limit int64) ([]model.Notification, int64, error)

	// MarkNotificationRead flips is_read on one notification owned by
	// userID, or returns ErrNotificationNotFound.
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}
