package bus

import (
	"context"
	"encoding/json"
)

// RoomAll addresses every connected socket on every node.
const RoomAll = "*"

// ChatRoom names the broadcast room for a chat session.
func ChatRoom(sessionID string) string { return "chat:" + sessionID }

// UserRoom names a user's private room, joined by each of the user's
// sockets at admission time.
func UserRoom(userID string) string { return "user:" + userID }

// Event is one room-scoped broadcast. Except, when set, names a socket
// that must not receive the event (the issuer of a read receipt).
type Event struct {
	Room   string          `json:"room"`
	Name   string          `json:"name"`
	Data   json.RawMessage `json:"data"`
	Except string          `json:"except,omitempty"`
}

// Bus replicates room-scoped events across server instances. Delivery
// is at-most-once best effort; events from one publisher arrive in
// publish order, with no ordering across publishers. A single-process
// deployment uses Memory; clustered deployments use Redis, which
// relays every publish to every node including the origin.
type Bus interface {
	// Publish fans the event out to every subscriber on every node.
	Publish(ctx context.Context, ev Event) error

	// Subscribe registers a handler for all events reaching this node.
	// Handlers must not block.
	Subscribe(fn func(Event))

	Close() error
}
