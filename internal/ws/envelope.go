package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thornboo/jincheng-campus-api/internal/model"
)

// Inbound event names form a closed set; anything else is rejected at
// the boundary before touching business logic.
const (
	EventJoinChat    = "join_chat"
	EventSendMessage = "send_message"
	EventMarkRead    = "mark_read"
)

var ErrUnknownEvent = errors.New("unknown event")

// Envelope is the wire format in both directions: an event name and a
// JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinChatPayload struct {
	SessionID string `json:"sessionId"`
}

type SendMessagePayload struct {
	SessionID   string            `json:"sessionId"`
	Content     string            `json:"content"`
	MessageType model.MessageType `json:"messageType,omitempty"`
}

type MarkReadPayload struct {
	SessionID  string   `json:"sessionId"`
	MessageIDs []string `json:"messageIds"`
}

// Inbound is the decoded form of a client frame: exactly one payload
// field is set, matching Event.
type Inbound struct {
	Event    string
	Join     *JoinChatPayload
	Send     *SendMessagePayload
	MarkRead *MarkReadPayload
}

// DecodeInbound parses a client frame, rejecting unknown events and
// payloads that do not match the event's shape.
func DecodeInbound(raw []byte) (*Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch env.Event {
	case EventJoinChat:
		var p JoinChatPayload
		if err := decodeStrict(env.Data, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" {
			return nil, errors.New("sessionId required")
		}
		return &Inbound{Event: env.Event, Join: &p}, nil
	case EventSendMessage:
		var p SendMessagePayload
		if err := decodeStrict(env.Data, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" {
			return nil, errors.New("sessionId required")
		}
		return &Inbound{Event: env.Event, Send: &p}, nil
	case EventMarkRead:
		var p MarkReadPayload
		if err := decodeStrict(env.Data, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" {
			return nil, errors.New("sessionId required")
		}
		if len(p.MessageIDs) == 0 {
			return nil, errors.New("messageIds required")
		}
		return &Inbound{Event: env.Event, MarkRead: &p}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeStrict(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("missing payload")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}

// encodeFrame builds an outbound frame. v must marshal; callers pass
// values under their control.
func encodeFrame(event string, v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	b, _ := json.Marshal(Envelope{Event: event, Data: data})
	return b
}

func errorFrame(message string) []byte {
	return encodeFrame("error", map[string]string{"message": message})
}
