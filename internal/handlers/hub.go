// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/dispatch"
	"github.com/sirupsen/logrus"
)

// clientBuffer is how many outbound frames a slow client may lag behind.
const clientBuffer = 32

// client is one live websocket attached to a room.
type client struct {
	playerID uuid.UUID
	out      chan []byte
	closing  chan struct{}
	once     sync.Once
	code     int
	reason   string
	log      *logrus.Entry
}

func newClient(playerID uuid.UUID, log *logrus.Entry) *client {
	return &client{
		playerID: playerID,
		out:      make(chan []byte, clientBuffer),
		closing:  make(chan struct{}),
		log:      log,
	}
}

// write queues a frame without blocking the caller. A full buffer drops the frame.
func (c *client) write(data []byte) {
	select {
	case c.out <- data:
	default:
		c.log.Warnf("Outbound buffer for %s full, dropped %d bytes", c.playerID, len(data))
	}
}

// writeJSON marshals and queues msg.
func (c *client) writeJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.WithError(err).Warn("Failed to marshal outgoing message")
		return
	}
	c.write(data)
}

func (c *client) writeError(msg string) {
	c.writeJSON(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// kick asks the write pump to flush what is queued and close the socket.
func (c *client) kick(code int, reason string) {
	c.once.Do(func() {
		c.code = code
		c.reason = reason
		close(c.closing)
	})
}

// Hub fans dispatcher events out to the websockets of each room. It is
// registered with the outbox as a Sink, so every call to Deliver comes from
// the outbox goroutine in publish order.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]*client
	log   *logrus.Entry
}

// NewHub returns an empty hub.
func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		rooms: make(map[string]map[uuid.UUID]*client),
		log:   log.WithField("component", "hub"),
	}
}

// Name implements dispatch.Sink.
func (h *Hub) Name() string { return "websocket-hub" }

// Register attaches a new client for playerID in room code. An older socket
// for the same player is kicked.
func (h *Hub) Register(code string, playerID uuid.UUID) *client {
	c := newClient(playerID, h.log.WithFields(logrus.Fields{"room": code, "player": playerID}))
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[code]
	if !ok {
		members = make(map[uuid.UUID]*client)
		h.rooms[code] = members
	}
	if old, ok := members[playerID]; ok {
		old.kick(NotAMemberError, "replaced by a newer connection")
	}
	members[playerID] = c
	return c
}

// Unregister detaches c if it is still the player's current socket, and
// reports whether it was.
func (h *Hub) Unregister(code string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[code]
	if !ok {
		return false
	}
	cur, ok := members[c.playerID]
	if !ok || cur != c {
		return false
	}
	delete(members, c.playerID)
	if len(members) == 0 {
		delete(h.rooms, code)
	}
	return true
}

// Connected reports how many sockets are attached to room code.
func (h *Hub) Connected(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// Deliver implements dispatch.Sink. Each recipient gets its own envelope so
// private state never reaches another player's socket.
func (h *Hub) Deliver(_ context.Context, ev dispatch.Event) error {
	code := ev.Room()
	recipient := ev.Recipient()

	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[code]))
	for id, c := range h.rooms[code] {
		if recipient == uuid.Nil || recipient == id {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		data, err := json.Marshal(dispatch.EnvelopeFor(ev, c.playerID))
		if err != nil {
			return fmt.Errorf("failed to marshal %s for %s: %w", ev.Kind(), c.playerID, err)
		}
		c.write(data)
	}

	switch e := ev.(type) {
	case dispatch.RoomClosed:
		h.mu.Lock()
		delete(h.rooms, code)
		h.mu.Unlock()
		for _, c := range targets {
			c.kick(RoomClosedError, "room closed: "+e.Reason)
		}
	case dispatch.PlayerLeft:
		if e.Disconnected {
			break
		}
		h.mu.RLock()
		c, ok := h.rooms[code][e.PlayerID]
		h.mu.RUnlock()
		if ok {
			c.kick(NotAMemberError, "left the room")
		}
	}
	return nil
}
