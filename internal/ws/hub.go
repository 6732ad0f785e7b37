package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/thornboo/jincheng-campus-api/internal/bus"
	"github.com/thornboo/jincheng-campus-api/internal/metrics"
)

// Hub tracks this node's sockets and their room memberships, and
// delivers bus events to local members. Membership is derived state:
// it exists only while the connection does, and a reconnecting client
// rebuilds it by re-authenticating and re-joining.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[string]*Client // socket id -> client
	log     *zap.SugaredLogger
}

func NewHub(b bus.Bus, log *zap.SugaredLogger) *Hub {
	h := &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[string]*Client),
		log:     log,
	}
	b.Subscribe(h.deliver)
	return h
}

// Register admits a client and joins its user's private room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	h.join(bus.UserRoom(c.identity.ID), c)
}

// Join subscribes the client to a room.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.join(room, c)
}

func (h *Hub) join(room string, c *Client) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

// Unregister drops the client from every room.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// LocalSockets reports connections on this node only.
func (h *Hub) LocalSockets() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver fans a bus event out to local members of its room. A full
// send buffer drops the socket rather than blocking the bus.
func (h *Hub) deliver(ev bus.Event) {
	frame, err := json.Marshal(Envelope{Event: ev.Name, Data: ev.Data})
	if err != nil {
		h.log.Warnw("drop undeliverable event", "event", ev.Name, "err", err)
		return
	}

	h.mu.RLock()
	var targets []*Client
	if ev.Room == bus.RoomAll {
		targets = make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			targets = append(targets, c)
		}
	} else {
		for c := range h.rooms[ev.Room] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if ev.Except != "" && c.id == ev.Except {
			continue
		}
		if !c.enqueue(frame) {
			h.log.Warnw("slow consumer dropped", "socket", c.id, "user", c.identity.ID)
			h.Unregister(c)
			c.shutdown()
			continue
		}
		metrics.EventsDelivered.Inc()
	}
}
