package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thornboo/jincheng-campus-api/internal/model"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs tests and
// single-node development runs; mongo is the production twin.
type MemoryStore struct {
	mu            sync.Mutex
	sessions      map[string]*model.ChatSession // id -> session
	sessionByPair map[string]string             // pair key -> session id
	messages      map[string][]*model.ChatMessage
	notifications map[string][]*model.Notification // user id -> newest last
	now           func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]*model.ChatSession),
		sessionByPair: make(map[string]string),
		messages:      make(map[string][]*model.ChatMessage),
		notifications: make(map[string][]*model.Notification),
		now:           time.Now,
	}
}

func (s *MemoryStore) FindSession(_ context.Context, sessionID string) (*model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) CreateOrGetSession(_ context.Context, userID, otherID string) (*model.ChatSession, bool, error) {
	if userID == "" || otherID == "" || userID == otherID {
		return nil, false, ErrInvalidParticipants
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.PairKey(userID, otherID)
	if id, ok := s.sessionByPair[key]; ok {
		cp := *s.sessions[id]
		return &cp, false, nil
	}
	now := s.now().UTC()
	sess := &model.ChatSession{
		ID:             uuid.NewString(),
		Participant1ID: userID,
		Participant2ID: otherID,
		PairKey:        key,
		LastActiveAt:   now,
		CreatedAt:      now,
	}
	s.sessions[sess.ID] = sess
	s.sessionByPair[key] = sess.ID
	cp := *sess
	return &cp, true, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, userID string) ([]SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SessionSummary
	for _, sess := range s.sessions {
		if !sess.HasParticipant(userID) {
			continue
		}
		sum := SessionSummary{Session: *sess, OtherUserID: sess.OtherParticipant(userID)}
		msgs := s.messages[sess.ID]
		if len(msgs) > 0 {
			last := *msgs[len(msgs)-1]
			sum.LastMessage = &last
		}
		for _, m := range msgs {
			if m.SenderID != userID && !m.IsRead {
				sum.UnreadCount++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Session.LastActiveAt.After(out[j].Session.LastActiveAt)
	})
	return out, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, m *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[m.SessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = s.now().UTC()
	cp := *m
	s.messages[m.SessionID] = append(s.messages[m.SessionID], &cp)
	sess.LastMessageID = m.ID
	if m.CreatedAt.After(sess.LastActiveAt) {
		sess.LastActiveAt = m.CreatedAt
	}
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, sessionID string, page, limit int64) ([]model.ChatMessage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[sessionID]
	// page 1 is the newest slice of the conversation
	end := int64(len(msgs)) - (page-1)*limit
	if end <= 0 {
		return nil, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]model.ChatMessage, 0, end-start)
	for _, m := range msgs[start:end] {
		out = append(out, *m)
	}
	return out, nil
}

func (s *MemoryStore) MarkMessagesRead(_ context.Context, sessionID, readerID string, messageIDs []string) ([]string, error) {
	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped []string
	for _, m := range s.messages[sessionID] {
		if wanted[m.ID] && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			flipped = append(flipped, m.ID)
		}
	}
	return flipped, nil
}

func (s *MemoryStore) MarkSessionRead(_ context.Context, sessionID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages[sessionID] {
		if m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = s.now().UTC()
	cp := *n
	s.notifications[n.UserID] = append(s.notifications[n.UserID], &cp)
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string, page, limit int64) ([]model.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.notifications[userID]
	var unread int64
	for _, n := range all {
		if !n.IsRead {
			unread++
		}
	}
	// newest first
	end := int64(len(all)) - (page-1)*limit
	if end <= 0 {
		return nil, unread, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]model.Notification, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, *all[i])
	}
	return out, unread, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications[userID] {
		if n.ID == notificationID {
			n.IsRead = true
			return nil
		}
	}
	return ErrNotificationNotFound
}
