package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thornboo/jincheng-campus-api/internal/bus"
	"github.com/thornboo/jincheng-campus-api/internal/metrics"
	"github.com/thornboo/jincheng-campus-api/internal/model"
	"github.com/thornboo/jincheng-campus-api/internal/store"
)

// Notice is the payload of a realtime "notification" event.
type Notice struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	SessionID string `json:"sessionId,omitempty"`
}

// Fanout delivers notifications: a best-effort realtime event to the
// recipient's private room, plus an unconditional durable record the
// client reconciles against on next login. The record is written even
// when the recipient is online and received the event; the duplication
// is deliberate, a notification is never lost to a dropped socket.
type Fanout struct {
	store store.Store
	bus   bus.Bus
	log   *zap.SugaredLogger
}

func NewFanout(st store.Store, b bus.Bus, log *zap.SugaredLogger) *Fanout {
	return &Fanout{store: st, bus: b, log: log}
}

func (f *Fanout) Notify(ctx context.Context, userID string, notice Notice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	// realtime leg: fire and forget, a miss only means nobody is online
	if err := f.bus.Publish(ctx, bus.Event{
		Room: bus.UserRoom(userID),
		Name: "notification",
		Data: data,
	}); err != nil {
		f.log.Warnw("realtime notification publish failed", "user", userID, "err", err)
	}

	n := &model.Notification{
		UserID:    userID,
		Title:     notice.Title,
		Content:   notice.Content,
		Type:      notice.Type,
		SessionID: notice.SessionID,
	}
	if err := f.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	metrics.NotificationsCreated.Inc()
	return nil
}

// Broadcast emits an ephemeral system announcement to every connected
// socket cluster-wide. No durable record is written.
func (f *Fanout) Broadcast(ctx context.Context, message string) error {
	data, err := json.Marshal(map[string]any{
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, bus.Event{
		Room: bus.RoomAll,
		Name: "system_broadcast",
		Data: data,
	})
}
