// internal/game/timer.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/trickroom/internal/deck"
)

// armTurnTimer replaces any running timer with one for the current turn. The
// callback carries the sequence number so a late fire can be told apart from
// the turn it was armed for.
func (s *Session) armTurnTimer() {
	s.stopTurnTimer()
	if s.turnDuration() <= 0 || s.TimeoutFn == nil {
		return
	}
	seq := s.Seq
	fn := s.TimeoutFn
	s.turnTimer = s.clock.AfterFunc(s.turnDuration(), func() {
		fn(seq)
	}, "turn")
}

func (s *Session) stopTurnTimer() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
}

// HandleTimeout applies the timeout policy for turn seq. It returns false when
// the turn has already moved on.
func (s *Session) HandleTimeout(seq int) (Delta, bool) {
	if s.Phase != PhasePlaying || seq != s.Seq {
		return Delta{}, false
	}
	p, ok := s.Current()
	if !ok {
		return Delta{}, false
	}
	play, err := s.timeoutPlay(p)
	if err != nil {
		s.log.WithError(err).Error("Failed to build timeout play")
		return Delta{}, false
	}
	s.log.WithField("player", p.ID).Infof("Turn %d timed out, policy %s", seq, s.Rules.TimeoutPolicy)

	d := s.newDelta()
	d.Timeout = true
	s.commitPlay(&d, p, play, true)
	s.fillDelta(&d)
	return d, true
}

// timeoutPlay picks the move made on behalf of an absent player. A leader
// always opens with its weakest card since the lead cannot pass.
func (s *Session) timeoutPlay(p *Player) (Play, error) {
	lead, following := s.CurrentTrick.Lead()
	if !following {
		cards := deck.Lowest(p.Hand, 1)
		if len(cards) == 0 {
			return Play{}, fmt.Errorf("leader %s has no cards", p.ID)
		}
		return Play{PlayerID: p.ID, Cards: cards}, nil
	}
	need := len(lead.Cards)
	if need > len(p.Hand) {
		need = len(p.Hand)
	}
	if s.Rules.TimeoutPolicy == TimeoutAutoPlay && need == len(lead.Cards) {
		if set, ok := deck.LowestSet(p.Hand, need); ok {
			return Play{PlayerID: p.ID, Cards: set}, nil
		}
	}
	return Play{PlayerID: p.ID, Cards: deck.Lowest(p.Hand, need), Passed: true}, nil
}
