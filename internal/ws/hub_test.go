package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thornboo/jincheng-campus-api/internal/auth"
	"github.com/thornboo/jincheng-campus-api/internal/bus"
)

func newTestClient(id, userID string) *Client {
	return &Client{
		id:       id,
		identity: auth.Identity{ID: userID, Username: userID},
		send:     make(chan []byte, 16),
	}
}

func frames(c *Client) []Envelope {
	var out []Envelope
	for {
		select {
		case raw := <-c.send:
			var env Envelope
			if err := json.Unmarshal(raw, &env); err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func publish(t *testing.T, b bus.Bus, ev bus.Event) {
	t.Helper()
	require.NoError(t, b.Publish(context.Background(), ev))
}

func TestHubRoomDelivery(t *testing.T) {
	req := require.New(t)
	b := bus.NewMemory()
	hub := NewHub(b, zap.NewNop().Sugar())

	alice := newTestClient("sock-a", "alice")
	bob := newTestClient("sock-b", "bob")
	carol := newTestClient("sock-c", "carol")
	for _, c := range []*Client{alice, bob, carol} {
		hub.Register(c)
	}
	hub.Join(bus.ChatRoom("s1"), alice)
	hub.Join(bus.ChatRoom("s1"), bob)
	hub.Join(bus.ChatRoom("s2"), carol)

	publish(t, b, bus.Event{Room: bus.ChatRoom("s1"), Name: "new_message", Data: []byte(`{"id":"m1"}`)})

	// both room members see it, sockets in other rooms do not
	req.Len(frames(alice), 1)
	req.Len(frames(bob), 1)
	req.Empty(frames(carol))
}

func TestHubExceptSkipsIssuer(t *testing.T) {
	req := require.New(t)
	b := bus.NewMemory()
	hub := NewHub(b, zap.NewNop().Sugar())

	alice := newTestClient("sock-a", "alice")
	bob := newTestClient("sock-b", "bob")
	hub.Register(alice)
	hub.Register(bob)
	hub.Join(bus.ChatRoom("s1"), alice)
	hub.Join(bus.ChatRoom("s1"), bob)

	publish(t, b, bus.Event{
		Room:   bus.ChatRoom("s1"),
		Name:   "messages_read",
		Data:   []byte(`{"messageIds":["m1"]}`),
		Except: "sock-b",
	})

	req.Len(frames(alice), 1)
	req.Empty(frames(bob), "issuer of the receipt must not hear its own broadcast")
}

func TestHubCrossNodeRoomDelivery(t *testing.T) {
	req := require.New(t)
	b := bus.NewMemory()
	// two hubs on one bus stand in for two processes sharing it
	nodeA := NewHub(b, zap.NewNop().Sugar())
	nodeB := NewHub(b, zap.NewNop().Sugar())

	alice := newTestClient("sock-a", "alice")
	bob := newTestClient("sock-b", "bob")
	carol := newTestClient("sock-c", "carol")
	nodeA.Register(alice)
	nodeB.Register(bob)
	nodeB.Register(carol)
	nodeA.Join(bus.ChatRoom("s1"), alice)
	nodeB.Join(bus.ChatRoom("s1"), bob)
	nodeB.Join(bus.ChatRoom("s2"), carol)

	publish(t, b, bus.Event{Room: bus.ChatRoom("s1"), Name: "new_message", Data: []byte(`{"id":"m1"}`)})

	// one publish reaches the room members on both nodes exactly once
	req.Len(frames(alice), 1)
	req.Len(frames(bob), 1)
	req.Empty(frames(carol))
}

func TestHubUserRoomJoinedAtRegister(t *testing.T) {
	req := require.New(t)
	b := bus.NewMemory()
	hub := NewHub(b, zap.NewNop().Sugar())

	first := newTestClient("sock-1", "alice")
	second := newTestClient("sock-2", "alice")
	hub.Register(first)
	hub.Register(second)

	publish(t, b, bus.Event{Room: bus.UserRoom("alice"), Name: "notification", Data: []byte(`{"type":"new_message"}`)})

	// both of alice's sockets hear her private room
	req.Len(frames(first), 1)
	req.Len(frames(second), 1)
}

func TestHubRoomAllAndUnregister(t *testing.T) {
	req := require.New(t)
	b := bus.NewMemory()
	hub := NewHub(b, zap.NewNop().Sugar())

	alice := newTestClient("sock-a", "alice")
	bob := newTestClient("sock-b", "bob")
	hub.Register(alice)
	hub.Register(bob)
	req.Equal(2, hub.LocalSockets())

	publish(t, b, bus.Event{Room: bus.RoomAll, Name: "system_broadcast", Data: []byte(`{"message":"hi"}`)})
	req.Len(frames(alice), 1)
	req.Len(frames(bob), 1)

	hub.Unregister(bob)
	req.Equal(1, hub.LocalSockets())

	publish(t, b, bus.Event{Room: bus.RoomAll, Name: "system_broadcast", Data: []byte(`{"message":"again"}`)})
	req.Len(frames(alice), 1)
	req.Empty(frames(bob))
}

func TestHubDeliversEnvelopeFrames(t *testing.T) {
	req := require.New(t)
	b := bus.NewMemory()
	hub := NewHub(b, zap.NewNop().Sugar())

	alice := newTestClient("sock-a", "alice")
	hub.Register(alice)
	hub.Join(bus.ChatRoom("s1"), alice)

	publish(t, b, bus.Event{Room: bus.ChatRoom("s1"), Name: "new_message", Data: []byte(`{"id":"m1","content":"hi"}`)})

	got := frames(alice)
	req.Len(got, 1)
	req.Equal("new_message", got[0].Event)
	var payload map[string]string
	req.NoError(json.Unmarshal(got[0].Data, &payload))
	req.Equal("m1", payload["id"])
}
