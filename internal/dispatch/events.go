// internal/dispatch/events.go
package dispatch

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/jason-s-yu/trickroom/internal/room"
)

// EventKind tags each outbound event.
type EventKind string

const (
	KindRoomCreated    EventKind = "room_created"
	KindPlayerJoined   EventKind = "player_joined"
	KindPlayerLeft     EventKind = "player_left"
	KindStateUpdated   EventKind = "state_updated"
	KindActionRejected EventKind = "action_rejected"
	KindRoomClosed     EventKind = "room_closed"
)

// Event is an outbound notification. The set of implementations is closed;
// sinks switch on the concrete type.
type Event interface {
	Kind() EventKind
	Room() string
	// Recipient is the single player the event is meant for, or uuid.Nil for the whole room.
	Recipient() uuid.UUID
	event()
}

type RoomCreated struct {
	Code string    `json:"code"`
	Host uuid.UUID `json:"host"`
	Info room.Info `json:"room"`
}

type PlayerJoined struct {
	Code        string      `json:"code"`
	Player      room.Member `json:"player"`
	Members     int         `json:"members"`
	Reconnected bool        `json:"reconnected,omitempty"`
}

type PlayerLeft struct {
	Code         string    `json:"code"`
	PlayerID     uuid.UUID `json:"playerId"`
	NewHostID    uuid.UUID `json:"newHostId,omitempty"`
	Disconnected bool      `json:"disconnected,omitempty"`
}

// StateUpdated follows every accepted action. Views holds each seated player's
// private snapshot and is never serialised as part of the public payload.
type StateUpdated struct {
	Code  string                          `json:"code"`
	Delta game.Delta                      `json:"delta"`
	Views map[uuid.UUID]game.ObfGameState `json:"-"`
}

type ActionRejected struct {
	Code     string          `json:"code"`
	PlayerID uuid.UUID       `json:"playerId"`
	Action   game.ActionKind `json:"action"`
	Error    ActionError     `json:"error"`
}

type RoomClosed struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (RoomCreated) Kind() EventKind    { return KindRoomCreated }
func (PlayerJoined) Kind() EventKind   { return KindPlayerJoined }
func (PlayerLeft) Kind() EventKind     { return KindPlayerLeft }
func (StateUpdated) Kind() EventKind   { return KindStateUpdated }
func (ActionRejected) Kind() EventKind { return KindActionRejected }
func (RoomClosed) Kind() EventKind     { return KindRoomClosed }

func (e RoomCreated) Room() string    { return e.Code }
func (e PlayerJoined) Room() string   { return e.Code }
func (e PlayerLeft) Room() string     { return e.Code }
func (e StateUpdated) Room() string   { return e.Code }
func (e ActionRejected) Room() string { return e.Code }
func (e RoomClosed) Room() string     { return e.Code }

func (e RoomCreated) Recipient() uuid.UUID    { return uuid.Nil }
func (e PlayerJoined) Recipient() uuid.UUID   { return uuid.Nil }
func (e PlayerLeft) Recipient() uuid.UUID     { return uuid.Nil }
func (e StateUpdated) Recipient() uuid.UUID   { return uuid.Nil }
func (e ActionRejected) Recipient() uuid.UUID { return e.PlayerID }
func (e RoomClosed) Recipient() uuid.UUID     { return uuid.Nil }

func (RoomCreated) event()    {}
func (PlayerJoined) event()   {}
func (PlayerLeft) event()     {}
func (StateUpdated) event()   {}
func (ActionRejected) event() {}
func (RoomClosed) event()     {}

// Envelope is the wire form of an event.
type Envelope struct {
	Type    EventKind   `json:"type"`
	Room    string      `json:"room"`
	Payload interface{} `json:"payload"`
}

// privateState is what one player receives for a StateUpdated event.
type privateState struct {
	Delta game.Delta        `json:"delta"`
	State game.ObfGameState `json:"state"`
}

// NewEnvelope wraps ev for broadcast.
func NewEnvelope(ev Event) Envelope {
	return Envelope{Type: ev.Kind(), Room: ev.Room(), Payload: ev}
}

// EnvelopeFor wraps ev for one player, attaching that player's private
// snapshot when the event carries one.
func EnvelopeFor(ev Event, playerID uuid.UUID) Envelope {
	env := NewEnvelope(ev)
	if su, ok := ev.(StateUpdated); ok {
		if view, ok := su.Views[playerID]; ok {
			env.Payload = privateState{Delta: su.Delta, State: view}
		}
	}
	return env
}

// Marshal renders ev as a broadcast envelope.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(NewEnvelope(ev))
}
