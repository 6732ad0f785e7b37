package model

import (
	"strings"
	"time"
)

// UserSummary is the slice of a user profile that rides along with
// chat events. The full user entity lives in the identity service.
type UserSummary struct {
	ID       string `bson:"id" json:"id"`
	Username string `bson:"username" json:"username"`
	Nickname string `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Avatar   string `bson:"avatar,omitempty" json:"avatar,omitempty"`
}

// ChatSession is a durable two-participant conversation. Exactly one
// session exists per unordered participant pair; PairKey is the
// canonical form backing that uniqueness.
type ChatSession struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	Participant1ID string    `bson:"participant1_id" json:"participant1Id"`
	Participant2ID string    `bson:"participant2_id" json:"participant2Id"`
	PairKey        string    `bson:"pair_key" json:"-"`
	LastMessageID  string    `bson:"last_message_id,omitempty" json:"lastMessageId,omitempty"`
	LastActiveAt   time.Time `bson:"last_active_at" json:"lastActiveAt"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// PairKey returns the canonical key for an unordered participant pair.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (s *ChatSession) HasParticipant(userID string) bool {
	return userID == s.Participant1ID || userID == s.Participant2ID
}

// OtherParticipant returns the participant that is not userID.
// userID must be a participant of the session.
func (s *ChatSession) OtherParticipant(userID string) string {
	if userID == s.Participant1ID {
		return s.Participant2ID
	}
	return s.Participant1ID
}

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage:
		return true
	}
	return false
}

// ChatMessage is immutable after creation except for the one-way
// IsRead transition, which only the non-sender participant may flip.
type ChatMessage struct {
	ID          string      `bson:"_id,omitempty" json:"id"`
	SessionID   string      `bson:"session_id" json:"sessionId"`
	SenderID    string      `bson:"sender_id" json:"senderId"`
	Content     string      `bson:"content" json:"content"`
	MessageType MessageType `bson:"message_type" json:"messageType"`
	IsRead      bool        `bson:"is_read" json:"isRead"`
	CreatedAt   time.Time   `bson:"created_at" json:"createdAt"`
}

// Notification is the durable record behind best-effort realtime
// delivery; clients reconcile unread state against it on next login.
type Notification struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    string    `bson:"user_id" json:"userId"`
	Title     string    `bson:"title" json:"title"`
	Content   string    `bson:"content" json:"content"`
	Type      string    `bson:"type" json:"type"`
	SessionID string    `bson:"session_id,omitempty" json:"sessionId,omitempty"`
	IsRead    bool      `bson:"is_read" json:"isRead"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// DisplayName picks the name shown in notification content.
func (u UserSummary) DisplayName() string {
	if n := strings.TrimSpace(u.Nickname); n != "" {
		return n
	}
	return u.Username
}
