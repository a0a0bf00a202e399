package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/okuznetsov/bookline/internal/metrics"
)

// Hub is the delivery gateway's connection registry: one topic per user id,
// fanned out to every live connection of that user. A user may hold any number
// of simultaneous connections (tabs, devices); all of them get every event.
//
// The hub is plain injected state, constructed per process and torn down with
// it. Delivery is best-effort: no retries, no queues, a slow connection's
// event is dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}

	relay *Relay
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*Client]struct{}),
	}
}

// SetRelay attaches a cross-instance relay (optional dependency).
func (h *Hub) SetRelay(r *Relay) {
	h.relay = r
}

// Register binds a connection to its user's topic.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
	first := len(conns) == 1
	total := h.connectionCountLocked()
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	log.Printf("ws hub: user %s connected (%d conns total)", c.userID, total)

	if first {
		h.broadcastPresence(c.userID, "online")
	}
}

// Unregister removes a connection. Safe to call more than once per client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	conns, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conns, c)
	last := len(conns) == 0
	if last {
		delete(h.clients, c.userID)
	}
	total := h.connectionCountLocked()
	h.mu.Unlock()

	c.close()
	metrics.ActiveConnections.Dec()
	log.Printf("ws hub: user %s disconnected (%d conns total)", c.userID, total)

	if last {
		h.broadcastPresence(c.userID, "offline")
	}
}

// Publish fans an event out to every connection of the given user, here and,
// when a relay is attached, on other instances.
func (h *Hub) Publish(userID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}

	h.deliverLocal(userID, event.Type, data)

	if h.relay != nil {
		h.relay.Forward(userID, event.Type, data)
	}
}

// deliverLocal hands raw event bytes to the user's local connections only.
// The relay calls it for events originating on another instance.
func (h *Hub) deliverLocal(userID uuid.UUID, eventType string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- data:
			metrics.EventsPublished.WithLabelValues(eventType).Inc()
		default:
			// Buffer full; the client reconciles via fetch on reconnect.
			metrics.EventsDropped.Inc()
		}
	}
}

// ConnectionCount returns the number of live connections across all users.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connectionCountLocked()
}

// UserOnline reports whether the user has at least one live connection here.
func (h *Hub) UserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) connectionCountLocked() int {
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// broadcastPresence sends online/offline to every other connected user.
func (h *Hub) broadcastPresence(userID uuid.UUID, status string) {
	evt, err := NewEvent(EventTypePresence, nil, PresencePayload{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for uid, conns := range h.clients {
		if uid == userID {
			continue
		}
		for c := range conns {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}
