// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/deck"
)

// ObfPlayerState is one seat as seen by the requesting player.
type ObfPlayerState struct {
	PlayerID      uuid.UUID   `json:"playerId"`
	Name          string      `json:"name"`
	HandSize      int         `json:"handSize"`
	Points        int         `json:"points"`
	RoundPoints   int         `json:"roundPoints"`
	IsDealer      bool        `json:"isDealer"`
	IsCurrentTurn bool        `json:"isCurrentTurn"`
	Connected     bool        `json:"connected"`
	Ready         bool        `json:"ready"`
	Hand          []string    `json:"hand,omitempty"`  // only for the requesting player
	Flush         *deck.Flush `json:"flush,omitempty"` // own flush, or anyone's when flushes are open
}

// ObfGameState is a snapshot of the session for one player. Other hands and
// passed cards are reduced to counts.
type ObfGameState struct {
	SessionID       uuid.UUID        `json:"sessionId"`
	RoomCode        string           `json:"roomCode"`
	Phase           Phase            `json:"phase"`
	Round           int              `json:"round"`
	Seq             int              `json:"seq"`
	CurrentPlayerID uuid.UUID        `json:"currentPlayerId"`
	DealerID        uuid.UUID        `json:"dealerId"`
	DeckSize        int              `json:"deckSize"`
	FlushVisibility FlushVisibility  `json:"flushVisibility"`
	Rules           HouseRules       `json:"rules"`
	CurrentTrick    []PlayView       `json:"currentTrick"`
	TricksPlayed    int              `json:"tricksPlayed"`
	LastTrick       *TrickView       `json:"lastTrick,omitempty"`
	Players         []ObfPlayerState `json:"players"`
}

// View builds the snapshot sent to forPlayer on join, reconnect or request.
func (s *Session) View(forPlayer uuid.UUID) ObfGameState {
	obf := ObfGameState{
		SessionID:       s.ID,
		RoomCode:        s.RoomCode,
		Phase:           s.Phase,
		Round:           s.Round,
		Seq:             s.Seq,
		DealerID:        s.Players[s.dealerIdx].ID,
		DeckSize:        len(s.Deck),
		FlushVisibility: s.FlushVisibility,
		Rules:           s.Rules,
		CurrentTrick:    make([]PlayView, 0, len(s.CurrentTrick.Plays)),
		TricksPlayed:    len(s.TrickHistory),
	}
	if cur, ok := s.Current(); ok {
		obf.CurrentPlayerID = cur.ID
	}
	for _, p := range s.CurrentTrick.Plays {
		obf.CurrentTrick = append(obf.CurrentTrick, viewOfPlay(p))
	}
	if n := len(s.TrickHistory); n > 0 {
		obf.LastTrick = viewOfTrick(s.TrickHistory[n-1])
	}

	for _, p := range s.Players {
		ps := ObfPlayerState{
			PlayerID:      p.ID,
			Name:          p.Name,
			HandSize:      len(p.Hand),
			Points:        p.Points,
			RoundPoints:   p.RoundPoints,
			IsDealer:      p.IsDealer,
			IsCurrentTurn: p.IsCurrent,
			Connected:     p.Connected,
			Ready:         p.Ready,
		}
		self := p.ID == forPlayer
		if self {
			ps.Hand = deck.Codes(p.Hand)
		}
		if self || s.FlushVisibility == FlushOpen {
			if f, ok := deck.DetectFlush(p.Hand, s.Rules.FlushMinLength); ok {
				ps.Flush = &f
			}
		}
		obf.Players = append(obf.Players, ps)
	}
	return obf
}
