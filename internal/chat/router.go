package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thornboo/jincheng-campus-api/internal/auth"
	"github.com/thornboo/jincheng-campus-api/internal/bus"
	"github.com/thornboo/jincheng-campus-api/internal/events"
	"github.com/thornboo/jincheng-campus-api/internal/metrics"
	"github.com/thornboo/jincheng-campus-api/internal/model"
	"github.com/thornboo/jincheng-campus-api/internal/store"
)

// SendInput is a validated send_message request.
type SendInput struct {
	SessionID   string
	Content     string
	MessageType model.MessageType
}

// MarkReadInput is a mark_read request.
type MarkReadInput struct {
	SessionID  string
	MessageIDs []string
}

// NewMessageEvent is the payload broadcast to the session room.
type NewMessageEvent struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"sessionId"`
	Content     string            `json:"content"`
	MessageType model.MessageType `json:"messageType"`
	Sender      model.UserSummary `json:"sender"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// MessagesReadEvent is the payload broadcast when receipts land.
type MessagesReadEvent struct {
	SessionID  string   `json:"sessionId"`
	MessageIDs []string `json:"messageIds"`
}

// Router validates, persists and fans out chat traffic. Persistence
// always precedes publish: a message that failed to write is never
// broadcast, and a persisted message that missed its broadcast is
// recovered by a history fetch, not retried.
type Router struct {
	authorizer *Authorizer
	store      store.Store
	bus        bus.Bus
	fanout     *Fanout
	producer   events.Producer // optional, nil disables the stream
	log        *zap.SugaredLogger
}

func NewRouter(st store.Store, b bus.Bus, fanout *Fanout, producer events.Producer, log *zap.SugaredLogger) *Router {
	return &Router{
		authorizer: NewAuthorizer(st),
		store:      st,
		bus:        b,
		fanout:     fanout,
		producer:   producer,
		log:        log,
	}
}

// JoinSession authorizes the user for the session's room. The caller
// subscribes the socket on success.
func (r *Router) JoinSession(ctx context.Context, ident auth.Identity, sessionID string) (*model.ChatSession, error) {
	return r.authorizer.Authorize(ctx, ident.ID, sessionID)
}

// Send persists a message, broadcasts it to the session room across
// the cluster, and notifies the other participant.
func (r *Router) Send(ctx context.Context, ident auth.Identity, in SendInput) (*model.ChatMessage, error) {
	sess, err := r.authorizer.Authorize(ctx, ident.ID, in.SessionID)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	msgType := in.MessageType
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, ErrInvalidMessageType
	}

	msg := &model.ChatMessage{
		SessionID:   in.SessionID,
		SenderID:    ident.ID,
		Content:     content,
		MessageType: msgType,
	}
	if err := r.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	metrics.MessagesSent.Inc()

	data, err := json.Marshal(NewMessageEvent{
		ID:          msg.ID,
		SessionID:   msg.SessionID,
		Content:     msg.Content,
		MessageType: msg.MessageType,
		Sender:      ident.Summary(),
		CreatedAt:   msg.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode message event: %w", err)
	}
	if err := r.bus.Publish(ctx, bus.Event{
		Room: bus.ChatRoom(msg.SessionID),
		Name: "new_message",
		Data: data,
	}); err != nil {
		// already persisted; the recipient recovers via history fetch
		r.log.Warnw("message broadcast failed", "message", msg.ID, "err", err)
	}

	if r.producer != nil {
		if err := r.producer.MessagePersisted(ctx, msg); err != nil {
			r.log.Warnw("message event stream publish failed", "message", msg.ID, "err", err)
		}
	}

	recipient := sess.OtherParticipant(ident.ID)
	if err := r.fanout.Notify(ctx, recipient, Notice{
		Type:      "new_message",
		Title:     "New message",
		Content:   ident.Summary().DisplayName() + ": " + content,
		SessionID: msg.SessionID,
	}); err != nil {
		r.log.Warnw("notification failed", "user", recipient, "err", err)
	}
	return msg, nil
}

// MarkRead flips read state on the given messages and broadcasts the
// receipts to every other socket in the room. socketID names the
// issuing socket, which is excluded from the broadcast. Reapplying an
// already-read set flips nothing and broadcasts nothing.
func (r *Router) MarkRead(ctx context.Context, ident auth.Identity, socketID string, in MarkReadInput) ([]string, error) {
	if _, err := r.authorizer.Authorize(ctx, ident.ID, in.SessionID); err != nil {
		return nil, err
	}
	flipped, err := r.store.MarkMessagesRead(ctx, in.SessionID, ident.ID, in.MessageIDs)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if len(flipped) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(MessagesReadEvent{SessionID: in.SessionID, MessageIDs: flipped})
	if err != nil {
		return flipped, fmt.Errorf("encode read event: %w", err)
	}
	if err := r.bus.Publish(ctx, bus.Event{
		Room:   bus.ChatRoom(in.SessionID),
		Name:   "messages_read",
		Data:   data,
		Except: socketID,
	}); err != nil {
		r.log.Warnw("read receipt broadcast failed", "session", in.SessionID, "err", err)
	}
	return flipped, nil
}
