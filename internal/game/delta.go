// internal/game/delta.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/deck"
)

// PhaseStep records one phase the session passed through while applying an action.
type PhaseStep struct {
	Phase           Phase     `json:"phase"`
	CurrentPlayerID uuid.UUID `json:"currentPlayerId"`
	DealerID        uuid.UUID `json:"dealerId"`
}

// PlayView is the public form of a play; passed cards stay hidden.
type PlayView struct {
	PlayerID uuid.UUID `json:"playerId"`
	Cards    []string  `json:"cards,omitempty"`
	Count    int       `json:"count"`
	Passed   bool      `json:"passed"`
	Auto     bool      `json:"auto,omitempty"`
}

// TrickView is a resolved trick as broadcast to the room.
type TrickView struct {
	Plays    []PlayView `json:"plays"`
	WinnerID uuid.UUID  `json:"winnerId"`
}

// RoundResult is the tally published at the end of a round.
type RoundResult struct {
	Round       int               `json:"round"`
	RoundPoints map[uuid.UUID]int `json:"roundPoints"`
	Points      map[uuid.UUID]int `json:"points"`
	MatchOver   bool              `json:"matchOver"`
	Winners     []uuid.UUID       `json:"winners,omitempty"`
}

// Delta is the public state change produced by one accepted action.
type Delta struct {
	SessionID       uuid.UUID    `json:"sessionId"`
	Seq             int          `json:"seq"`
	Phase           Phase        `json:"phase"`
	Round           int          `json:"round"`
	CurrentPlayerID uuid.UUID    `json:"currentPlayerId"`
	Steps           []PhaseStep  `json:"steps,omitempty"`
	Plays           []PlayView   `json:"plays,omitempty"`
	Trick           *TrickView   `json:"trick,omitempty"`
	RoundResult     *RoundResult `json:"roundResult,omitempty"`
	ReadyPlayerID   uuid.UUID    `json:"readyPlayerId,omitempty"`
	Duplicate       bool         `json:"duplicate,omitempty"`
	Timeout         bool         `json:"timeout,omitempty"`
}

func viewOfPlay(p Play) PlayView {
	v := PlayView{PlayerID: p.PlayerID, Count: len(p.Cards), Passed: p.Passed, Auto: p.Auto}
	if !p.Passed {
		v.Cards = deck.Codes(p.Cards)
	}
	return v
}

func viewOfTrick(t Trick) *TrickView {
	tv := &TrickView{WinnerID: t.WinnerID, Plays: make([]PlayView, len(t.Plays))}
	for i, p := range t.Plays {
		tv.Plays[i] = viewOfPlay(p)
	}
	return tv
}
