// internal/game/state.go
package game

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/deck"
)

// Phase is the lifecycle stage of a session.
type Phase string

const (
	PhaseDealerSelection Phase = "dealer_selection"
	PhaseDealing         Phase = "dealing"
	PhasePlaying         Phase = "playing"
	PhaseRoundEnd        Phase = "round_end"
	PhaseMatchEnd        Phase = "match_end"
)

// ActionKind enumerates what a player can submit.
type ActionKind string

const (
	ActionPlay  ActionKind = "action_play"
	ActionPass  ActionKind = "action_pass"
	ActionReady ActionKind = "action_ready"
	ActionStart ActionKind = "action_start"
)

var (
	ErrNotYourTurn = errors.New("not your turn")
	ErrIllegalPlay = errors.New("illegal play")
	ErrWrongPhase  = errors.New("action not allowed in the current phase")
	ErrNotInGame   = errors.New("player is not seated in this game")
	ErrSeats       = errors.New("invalid number of players")
)

// Action is a validated-on-apply player move. Seq is the turn sequence number
// the client believes is next; redelivery of an applied (actor, Seq) is a no-op.
type Action struct {
	Kind  ActionKind             `json:"kind"`
	Seq   int                    `json:"seq"`
	Cards []deck.Card            `json:"cards,omitempty"`
	Rules map[string]interface{} `json:"rules,omitempty"` // start-game overrides
}

// Player holds a participant's in-session state.
type Player struct {
	ID          uuid.UUID
	Name        string
	Hand        []deck.Card
	Points      int // match total
	RoundPoints int // tricks won this round
	IsDealer    bool
	IsCurrent   bool
	Connected   bool
	Ready       bool
}

// Play is one player's contribution to a trick. Passed plays are face down.
type Play struct {
	PlayerID uuid.UUID
	Cards    []deck.Card
	Passed   bool
	Auto     bool
}

// Trick is the ordered sequence of plays in one exchange.
type Trick struct {
	Plays    []Play
	WinnerID uuid.UUID
}

// Lead returns the opening play, if any.
func (t Trick) Lead() (Play, bool) {
	if len(t.Plays) == 0 {
		return Play{}, false
	}
	return t.Plays[0], true
}

type appliedAction struct {
	actor uuid.UUID
	auto  bool
}
