// internal/game/game.go
package game

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/deck"
	"github.com/jason-s-yu/trickroom/internal/models"
	"github.com/sirupsen/logrus"
)

// Session holds the authoritative state of one room's match.
//
// A Session is not safe for concurrent use. The owner (the dispatcher) runs every
// call, including timer callbacks, inside the room's exclusive lane.
type Session struct {
	ID       uuid.UUID
	RoomCode string
	Rules    HouseRules

	Players         []*Player
	Deck            []deck.Card
	CurrentTrick    Trick
	TrickHistory    []Trick // tricks resolved in the current round
	Phase           Phase
	FlushVisibility FlushVisibility
	Round           int
	Seq             int // next expected turn sequence number
	Results         []RoundResult

	// TimeoutFn is called from the turn timer with the sequence number it was
	// armed for. The owner must re-enter its lane and call HandleTimeout.
	TimeoutFn func(seq int)

	dealerIdx  int
	currentIdx int // -1 while no single actor is required
	applied    map[int]appliedAction

	rng       *rand.Rand
	clock     quartz.Clock
	turnTimer *quartz.Timer
	log       *logrus.Entry
}

// Option customises a Session at construction.
type Option func(*Session)

// WithSeed makes dealer selection and shuffles reproducible.
func WithSeed(seed int64) Option {
	return func(s *Session) { s.rng = deck.NewRand(seed) }
}

// WithClock replaces the wall clock used for turn timers.
func WithClock(c quartz.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the log entry the session writes to.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Session) { s.log = l }
}

// NewSession seats players in the given order. The session starts in
// dealer selection; call Start to deal.
func NewSession(roomCode string, seats []models.Identity, rules HouseRules, opts ...Option) (*Session, error) {
	if err := rules.Validate(len(seats)); err != nil {
		return nil, err
	}
	id, _ := uuid.NewRandom()
	s := &Session{
		ID:              id,
		RoomCode:        roomCode,
		Rules:           rules,
		Phase:           PhaseDealerSelection,
		FlushVisibility: rules.FlushVisibility,
		Deck:            deck.BuildDeck(),
		currentIdx:      -1,
		applied:         make(map[int]appliedAction),
		rng:             rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		clock:           quartz.NewReal(),
	}
	seen := make(map[uuid.UUID]bool, len(seats))
	for _, seat := range seats {
		if seen[seat.ID] {
			return nil, fmt.Errorf("%w: player %s seated twice", ErrSeats, seat.ID)
		}
		seen[seat.ID] = true
		s.Players = append(s.Players, &Player{ID: seat.ID, Name: seat.DisplayName(), Connected: true})
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger().WithField("room", roomCode)
	}
	s.log = s.log.WithField("session", s.ID)
	return s, nil
}

// Start selects a dealer, deals the first round and opens play.
func (s *Session) Start() (Delta, error) {
	if s.Phase != PhaseDealerSelection {
		return Delta{}, fmt.Errorf("%w: session already started", ErrWrongPhase)
	}
	d := s.newDelta()

	s.dealerIdx = s.rng.IntN(len(s.Players))
	s.Players[s.dealerIdx].IsDealer = true
	s.setCurrent(s.dealerIdx)
	s.recordStep(&d)
	s.log.Infof("Dealer selected: %s", s.Players[s.dealerIdx].ID)

	s.startRound(&d)
	s.fillDelta(&d)
	return d, nil
}

// startRound gathers every card, shuffles, deals and hands the lead to the
// player after the dealer.
func (s *Session) startRound(d *Delta) {
	s.Round++
	s.Phase = PhaseDealing
	s.setCurrent(s.dealerIdx)
	s.recordStep(d)

	pool := make([]deck.Card, 0, deck.Size)
	pool = append(pool, s.Deck...)
	for _, t := range s.TrickHistory {
		for _, p := range t.Plays {
			pool = append(pool, p.Cards...)
		}
	}
	for _, p := range s.Players {
		pool = append(pool, p.Hand...)
		p.Hand = nil
		p.RoundPoints = 0
		p.Ready = false
	}
	s.TrickHistory = nil
	s.CurrentTrick = Trick{}
	shuffled := deck.ShuffleWith(s.rng, pool)

	n := len(s.Players)
	handSize := s.Rules.handSizeFor(n)
	next := 0
	for i := 0; i < handSize; i++ {
		for off := 1; off <= n; off++ {
			p := s.Players[(s.dealerIdx+off)%n]
			p.Hand = append(p.Hand, shuffled[next])
			next++
		}
	}
	s.Deck = shuffled[next:]
	for _, p := range s.Players {
		deck.SortHand(p.Hand)
	}
	s.log.Infof("Round %d dealt: %d cards each, %d left in deck", s.Round, handSize, len(s.Deck))

	s.Phase = PhasePlaying
	s.setCurrent((s.dealerIdx + 1) % n)
	s.recordStep(d)
	s.armTurnTimer()
}

// Validate checks an action without changing any state.
func (s *Session) Validate(actor uuid.UUID, a Action) error {
	p := s.playerByID(actor)
	if p == nil {
		return ErrNotInGame
	}
	switch a.Kind {
	case ActionPlay, ActionPass:
		if s.isDuplicate(actor, a.Seq) {
			return nil
		}
		_, err := s.checkTurn(p, a)
		return err
	case ActionReady:
		if s.Phase != PhaseRoundEnd {
			return fmt.Errorf("%w: ready-up is only accepted between rounds", ErrWrongPhase)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrIllegalPlay, a.Kind)
	}
}

// Apply validates and applies an action. On error nothing has changed.
func (s *Session) Apply(actor uuid.UUID, a Action) (Delta, error) {
	if err := s.Validate(actor, a); err != nil {
		return Delta{}, err
	}
	switch a.Kind {
	case ActionReady:
		return s.applyReady(actor), nil
	default:
		if s.isDuplicate(actor, a.Seq) {
			d := s.newDelta()
			d.Duplicate = true
			s.fillDelta(&d)
			return d, nil
		}
		p := s.playerByID(actor)
		cards, _ := s.checkTurn(p, a)
		d := s.newDelta()
		s.commitPlay(&d, p, Play{PlayerID: actor, Cards: cards, Passed: a.Kind == ActionPass}, false)
		s.fillDelta(&d)
		return d, nil
	}
}

func (s *Session) isDuplicate(actor uuid.UUID, seq int) bool {
	prev, ok := s.applied[seq]
	return ok && !prev.auto && prev.actor == actor
}

// checkTurn validates a play or pass and returns the exact cards it removes from the hand.
func (s *Session) checkTurn(p *Player, a Action) ([]deck.Card, error) {
	if s.Phase != PhasePlaying {
		return nil, fmt.Errorf("%w: phase is %s", ErrWrongPhase, s.Phase)
	}
	if prev, ok := s.applied[a.Seq]; ok && prev.auto && prev.actor == p.ID {
		return nil, fmt.Errorf("%w: turn %d expired and was played automatically", ErrIllegalPlay, a.Seq)
	}
	if !p.IsCurrent {
		return nil, ErrNotYourTurn
	}
	if a.Seq != s.Seq {
		return nil, fmt.Errorf("%w: stale sequence %d, expected %d", ErrIllegalPlay, a.Seq, s.Seq)
	}

	lead, following := s.CurrentTrick.Lead()
	if !following {
		if a.Kind == ActionPass {
			return nil, fmt.Errorf("%w: the leader cannot pass", ErrIllegalPlay)
		}
		if len(a.Cards) < 1 || len(a.Cards) > s.Rules.MaxPlayCards {
			return nil, fmt.Errorf("%w: lead must be 1 to %d cards", ErrIllegalPlay, s.Rules.MaxPlayCards)
		}
		if len(a.Cards) > s.minOpponentHand(p) {
			return nil, fmt.Errorf("%w: lead larger than an opponent's hand", ErrIllegalPlay)
		}
		if !deck.SameRank(a.Cards) {
			return nil, fmt.Errorf("%w: all cards in a play must share a rank", ErrIllegalPlay)
		}
		if !deck.Contains(p.Hand, a.Cards) {
			return nil, fmt.Errorf("%w: cards not in hand", ErrIllegalPlay)
		}
		return a.Cards, nil
	}

	need := len(lead.Cards)
	if need > len(p.Hand) {
		need = len(p.Hand)
	}
	if a.Kind == ActionPass {
		if len(a.Cards) == 0 {
			return deck.Lowest(p.Hand, need), nil
		}
		if len(a.Cards) != need || !deck.Contains(p.Hand, a.Cards) {
			return nil, fmt.Errorf("%w: a pass discards exactly %d of your cards", ErrIllegalPlay, need)
		}
		return a.Cards, nil
	}
	if len(a.Cards) != len(lead.Cards) {
		return nil, fmt.Errorf("%w: must play exactly %d cards", ErrIllegalPlay, len(lead.Cards))
	}
	if !deck.SameRank(a.Cards) {
		return nil, fmt.Errorf("%w: all cards in a play must share a rank", ErrIllegalPlay)
	}
	if !deck.Contains(p.Hand, a.Cards) {
		return nil, fmt.Errorf("%w: cards not in hand", ErrIllegalPlay)
	}
	return a.Cards, nil
}

func (s *Session) minOpponentHand(p *Player) int {
	smallest := deck.Size
	for _, o := range s.Players {
		if o.ID != p.ID && len(o.Hand) < smallest {
			smallest = len(o.Hand)
		}
	}
	return smallest
}

// commitPlay moves cards from the hand into the trick and advances the turn.
func (s *Session) commitPlay(d *Delta, p *Player, play Play, auto bool) {
	play.Auto = auto
	p.Hand = deck.Remove(p.Hand, play.Cards)
	s.CurrentTrick.Plays = append(s.CurrentTrick.Plays, play)
	s.applied[s.Seq] = appliedAction{actor: p.ID, auto: auto}
	s.Seq++
	d.Plays = append(d.Plays, viewOfPlay(play))

	if len(s.CurrentTrick.Plays) < len(s.Players) {
		s.setCurrent((s.indexOf(p.ID) + 1) % len(s.Players))
		s.armTurnTimer()
		return
	}
	s.resolveTrick(d)
}

// resolveTrick picks the strongest play, files the trick and moves on.
func (s *Session) resolveTrick(d *Delta) {
	t := s.CurrentTrick
	best := -1
	for i, play := range t.Plays {
		if play.Passed {
			continue
		}
		if best < 0 || deck.Beats(play.Cards, t.Plays[best].Cards) {
			best = i
		}
	}
	// the lead can never pass, so best is always set
	winner := s.playerByID(t.Plays[best].PlayerID)
	winner.RoundPoints++
	t.WinnerID = winner.ID
	s.TrickHistory = append(s.TrickHistory, t)
	s.CurrentTrick = Trick{}
	d.Trick = viewOfTrick(t)
	s.log.WithField("winner", winner.ID).Debugf("Trick %d resolved", len(s.TrickHistory))

	if s.handsEmpty() {
		s.endRound(d)
		return
	}
	s.setCurrent(s.indexOf(winner.ID))
	s.armTurnTimer()
}

func (s *Session) handsEmpty() bool {
	for _, p := range s.Players {
		if len(p.Hand) > 0 {
			return false
		}
	}
	return true
}

// endRound tallies points and either finishes the match, deals again, or
// waits for every player to ready up.
func (s *Session) endRound(d *Delta) {
	s.stopTurnTimer()
	s.Phase = PhaseRoundEnd
	s.setCurrent(-1)
	s.recordStep(d)

	res := RoundResult{
		Round:       s.Round,
		RoundPoints: make(map[uuid.UUID]int, len(s.Players)),
		Points:      make(map[uuid.UUID]int, len(s.Players)),
	}
	top := 0
	for _, p := range s.Players {
		p.Points += p.RoundPoints
		res.RoundPoints[p.ID] = p.RoundPoints
		res.Points[p.ID] = p.Points
		if p.Points > top {
			top = p.Points
		}
	}
	if (s.Rules.TargetScore > 0 && top >= s.Rules.TargetScore) || (s.Rules.MaxRounds > 0 && s.Round >= s.Rules.MaxRounds) {
		res.MatchOver = true
		for _, p := range s.Players {
			if p.Points == top {
				res.Winners = append(res.Winners, p.ID)
			}
		}
	}
	s.Results = append(s.Results, res)
	d.RoundResult = &res
	s.log.Infof("Round %d ended, top score %d", s.Round, top)

	if res.MatchOver {
		s.Phase = PhaseMatchEnd
		s.recordStep(d)
		s.log.Infof("Match over, winners %v", res.Winners)
		return
	}
	if s.Rules.AutoNextRound {
		s.nextRound(d)
	}
}

func (s *Session) nextRound(d *Delta) {
	s.Players[s.dealerIdx].IsDealer = false
	s.dealerIdx = (s.dealerIdx + 1) % len(s.Players)
	s.Players[s.dealerIdx].IsDealer = true
	s.startRound(d)
}

// applyReady marks a player ready between rounds. Once every connected
// player is ready the next round is dealt.
func (s *Session) applyReady(actor uuid.UUID) Delta {
	d := s.newDelta()
	p := s.playerByID(actor)
	if p.Ready {
		d.Duplicate = true
		s.fillDelta(&d)
		return d
	}
	p.Ready = true
	d.ReadyPlayerID = actor
	if s.allConnectedReady() {
		s.nextRound(&d)
	}
	s.fillDelta(&d)
	return d
}

// AdvanceIfReady deals the next round when the session waits between rounds
// and every player still connected has readied up. Presence changes call it,
// since a departing holdout leaves nobody to send the final ready-up.
func (s *Session) AdvanceIfReady() (Delta, bool) {
	if s.Phase != PhaseRoundEnd || !s.allConnectedReady() {
		return Delta{}, false
	}
	d := s.newDelta()
	s.nextRound(&d)
	s.fillDelta(&d)
	return d, true
}

// allConnectedReady needs at least one connected player.
func (s *Session) allConnectedReady() bool {
	connected := 0
	for _, o := range s.Players {
		if !o.Connected {
			continue
		}
		if !o.Ready {
			return false
		}
		connected++
	}
	return connected > 0
}

// SetConnected records presence. Disconnecting never rolls back applied actions;
// an absent current player is handled by the turn timer.
func (s *Session) SetConnected(id uuid.UUID, connected bool) bool {
	p := s.playerByID(id)
	if p == nil {
		return false
	}
	p.Connected = connected
	return true
}

// Current returns the player who must act, if any.
func (s *Session) Current() (*Player, bool) {
	if s.currentIdx < 0 {
		return nil, false
	}
	return s.Players[s.currentIdx], true
}

// Dealer returns the current dealer.
func (s *Session) Dealer() *Player {
	return s.Players[s.dealerIdx]
}

// Player looks up a seated player.
func (s *Session) Player(id uuid.UUID) (*Player, bool) {
	p := s.playerByID(id)
	return p, p != nil
}

// Over reports whether the match has finished.
func (s *Session) Over() bool {
	return s.Phase == PhaseMatchEnd
}

// Cards returns every card the session owns: deck, hands, current trick and history.
func (s *Session) Cards() []deck.Card {
	out := make([]deck.Card, 0, deck.Size)
	out = append(out, s.Deck...)
	for _, p := range s.Players {
		out = append(out, p.Hand...)
	}
	for _, p := range s.CurrentTrick.Plays {
		out = append(out, p.Cards...)
	}
	for _, t := range s.TrickHistory {
		for _, p := range t.Plays {
			out = append(out, p.Cards...)
		}
	}
	return out
}

// Stop disarms the turn timer. Call it when the session is discarded.
func (s *Session) Stop() {
	s.stopTurnTimer()
}

func (s *Session) setCurrent(idx int) {
	for i, p := range s.Players {
		p.IsCurrent = i == idx
	}
	s.currentIdx = idx
}

func (s *Session) recordStep(d *Delta) {
	step := PhaseStep{Phase: s.Phase, DealerID: s.Players[s.dealerIdx].ID}
	if cur, ok := s.Current(); ok {
		step.CurrentPlayerID = cur.ID
	}
	d.Steps = append(d.Steps, step)
}

func (s *Session) newDelta() Delta {
	return Delta{SessionID: s.ID}
}

func (s *Session) fillDelta(d *Delta) {
	d.Seq = s.Seq
	d.Phase = s.Phase
	d.Round = s.Round
	d.CurrentPlayerID = uuid.Nil
	if cur, ok := s.Current(); ok {
		d.CurrentPlayerID = cur.ID
	}
}

func (s *Session) playerByID(id uuid.UUID) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) indexOf(id uuid.UUID) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) turnDuration() time.Duration {
	return time.Duration(s.Rules.TurnTimeoutSec) * time.Second
}
