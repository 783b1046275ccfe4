// internal/dispatch/dispatcher.go
package dispatch

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/jason-s-yu/trickroom/internal/models"
	"github.com/jason-s-yu/trickroom/internal/room"
	"github.com/sirupsen/logrus"
)

// Dispatcher is the single entry point for room and game requests. It runs
// every request for a room inside that room's lane, so a room's session is
// never mutated by two requests at once, and hands resulting events to the outbox.
type Dispatcher struct {
	reg         *room.Registry
	out         *Outbox
	log         *logrus.Entry
	sessionOpts []game.Option
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's log entry.
func WithLogger(l *logrus.Entry) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithSessionOptions passes options to every session the dispatcher starts.
func WithSessionOptions(opts ...game.Option) Option {
	return func(d *Dispatcher) { d.sessionOpts = append(d.sessionOpts, opts...) }
}

// New builds a dispatcher over an injected registry and outbox.
func New(reg *room.Registry, out *Outbox, opts ...Option) *Dispatcher {
	d := &Dispatcher{reg: reg, out: out}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return d
}

// Registry exposes the registry for read-only queries.
func (d *Dispatcher) Registry() *room.Registry {
	return d.reg
}

// CreateRoom opens a room hosted by host.
func (d *Dispatcher) CreateRoom(host models.Identity) (RoomCreated, error) {
	rm, err := d.reg.CreateRoom(host)
	if err != nil {
		d.log.WithError(err).Error("Failed to create room")
		return RoomCreated{}, err
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()
	ev := RoomCreated{Code: rm.Code, Host: host.ID, Info: rm.Snapshot()}
	d.out.Publish(ev)
	return ev, nil
}

// JoinRoom seats player in the room. A seated player rejoining mid-match is
// treated as a reconnect.
func (d *Dispatcher) JoinRoom(code string, player models.Identity) error {
	rm, err := d.reg.JoinRoom(code, player)
	if err != nil {
		d.log.WithField("room", code).Debugf("Join by %s rejected: %v", player.ID, err)
		return err
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()
	m, ok := rm.Member(player.ID)
	if !ok {
		// left again before we took the lane
		return nil
	}
	ev := PlayerJoined{Code: rm.Code, Player: *m, Members: len(rm.Members)}
	if rm.Game != nil && rm.Game.SetConnected(player.ID, true) {
		ev.Reconnected = true
	}
	d.out.Publish(ev)
	return nil
}

// LeaveRoom removes player from the room for good. A seat in a running match
// stays in place and is marked disconnected.
func (d *Dispatcher) LeaveRoom(code string, playerID uuid.UUID) error {
	rm, destroyed, err := d.reg.LeaveRoom(code, playerID)
	if err != nil {
		return err
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()
	if destroyed {
		if rm.Game != nil {
			rm.Game.Stop()
		}
		d.out.Publish(RoomClosed{Code: rm.Code, Reason: "empty"})
		return nil
	}
	if rm.Game != nil {
		rm.Game.SetConnected(playerID, false)
	}
	ev := PlayerLeft{Code: rm.Code, PlayerID: playerID}
	if h := rm.Host(); h != nil {
		ev.NewHostID = h.ID
	}
	d.out.Publish(ev)
	d.advanceIfReady(rm)
	return nil
}

// CloseRoom tears a room down regardless of who is in it.
func (d *Dispatcher) CloseRoom(code, reason string) error {
	rm, err := d.reg.CloseRoom(code)
	if err != nil {
		return err
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()
	if rm.Game != nil {
		rm.Game.Stop()
	}
	d.out.Publish(RoomClosed{Code: rm.Code, Reason: reason})
	return nil
}

// Disconnect records that a member's transport went away. Nothing already
// applied is rolled back; an absent current player is covered by the turn timer.
func (d *Dispatcher) Disconnect(code string, playerID uuid.UUID) {
	d.setPresence(code, playerID, false)
}

// Reconnect marks a member present again.
func (d *Dispatcher) Reconnect(code string, playerID uuid.UUID) {
	d.setPresence(code, playerID, true)
}

func (d *Dispatcher) setPresence(code string, playerID uuid.UUID, connected bool) {
	rm, ok := d.reg.GetRoom(code)
	if !ok {
		return
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()
	m, ok := rm.Member(playerID)
	if !ok || rm.Closed() {
		return
	}
	if rm.Game != nil {
		rm.Game.SetConnected(playerID, connected)
	}
	if connected {
		d.out.Publish(PlayerJoined{Code: rm.Code, Player: *m, Members: len(rm.Members), Reconnected: true})
		return
	}
	d.out.Publish(PlayerLeft{Code: rm.Code, PlayerID: playerID, Disconnected: true})
	d.advanceIfReady(rm)
}

// advanceIfReady deals the next round once the last player holding it up has
// gone. Caller holds the room lane.
func (d *Dispatcher) advanceIfReady(rm *room.Room) {
	if rm.Game == nil {
		return
	}
	if delta, ok := rm.Game.AdvanceIfReady(); ok {
		d.log.WithField("room", rm.Code).Infof("Round %d dealt after a player left", delta.Round)
		d.publishState(rm, delta)
	}
}

// View returns playerID's private snapshot of the room's session, if one exists.
func (d *Dispatcher) View(code string, playerID uuid.UUID) (game.ObfGameState, bool) {
	rm, ok := d.reg.GetRoom(code)
	if !ok {
		return game.ObfGameState{}, false
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()
	if rm.Game == nil {
		return game.ObfGameState{}, false
	}
	return rm.Game.View(playerID), true
}

// HandleAction validates and applies one action. On failure nothing changes
// and only the actor is told why.
func (d *Dispatcher) HandleAction(code string, actorID uuid.UUID, a game.Action) (game.Delta, *ActionError) {
	rm, ok := d.reg.GetRoom(code)
	if !ok {
		return game.Delta{}, newActionError(CodeInvalidRoom, "no room with code "+code)
	}
	rm.Mu.Lock()
	defer rm.Mu.Unlock()

	delta, aerr := d.handleLocked(rm, actorID, a)
	if aerr != nil {
		d.log.WithFields(logrus.Fields{
			"room":   rm.Code,
			"player": actorID,
			"action": a.Kind,
		}).Debugf("Action rejected: %s", aerr.Message)
		d.out.Publish(ActionRejected{Code: rm.Code, PlayerID: actorID, Action: a.Kind, Error: *aerr})
		return game.Delta{}, aerr
	}
	return delta, nil
}

func (d *Dispatcher) handleLocked(rm *room.Room, actorID uuid.UUID, a game.Action) (game.Delta, *ActionError) {
	if rm.Closed() {
		return game.Delta{}, newActionError(CodeInvalidRoom, "room is closed")
	}
	if _, ok := rm.Member(actorID); !ok {
		return game.Delta{}, newActionError(CodeNotYourTurn, "not a member of this room")
	}

	switch a.Kind {
	case game.ActionStart:
		return d.startGame(rm, actorID, a)
	case game.ActionReady:
		if !rm.InGame() {
			return d.readyUp(rm, actorID), nil
		}
	case game.ActionPlay, game.ActionPass:
	default:
		return game.Delta{}, newActionError(CodeIllegalPlay, "unknown action "+string(a.Kind))
	}

	if rm.Game == nil {
		return game.Delta{}, newActionError(CodeGameNotStarted, "the host has not started a game")
	}
	if err := rm.Game.Validate(actorID, a); err != nil {
		return game.Delta{}, AsActionError(err)
	}
	delta, err := rm.Game.Apply(actorID, a)
	if err != nil {
		return game.Delta{}, AsActionError(err)
	}
	if !delta.Duplicate {
		d.publishState(rm, delta)
	}
	return delta, nil
}

// readyUp flips a member's ready flag before a match.
func (d *Dispatcher) readyUp(rm *room.Room, actorID uuid.UUID) game.Delta {
	delta := game.Delta{ReadyPlayerID: actorID}
	if m, ok := rm.Member(actorID); ok && m.IsReady {
		delta.Duplicate = true
		return delta
	}
	rm.SetReady(actorID, true)
	d.out.Publish(StateUpdated{Code: rm.Code, Delta: delta})
	return delta
}

func (d *Dispatcher) startGame(rm *room.Room, actorID uuid.UUID, a game.Action) (game.Delta, *ActionError) {
	host := rm.Host()
	if host == nil || host.ID != actorID {
		return game.Delta{}, newActionError(CodeNotYourTurn, "only the host can start the game")
	}
	if rm.InGame() {
		// repeated start from the host
		return game.Delta{SessionID: rm.Game.ID, Duplicate: true}, nil
	}
	if len(rm.Members) < 2 {
		return game.Delta{}, newActionError(CodeIllegalPlay, "at least two players are needed")
	}
	rules, err := game.ParseRules(a.Rules, rm.Rules)
	if err != nil {
		return game.Delta{}, newActionError(CodeIllegalPlay, err.Error())
	}
	if rules.RequireAllReady && !rm.AllReady() {
		return game.Delta{}, newActionError(CodeIllegalPlay, "not every player is ready")
	}

	opts := append([]game.Option{game.WithLogger(d.log.WithField("room", rm.Code))}, d.sessionOpts...)
	sess, err := game.NewSession(rm.Code, rm.Identities(), rules, opts...)
	if err != nil {
		return game.Delta{}, AsActionError(err)
	}
	sess.TimeoutFn = d.onTurnTimeout(rm, sess)

	delta, err := sess.Start()
	if err != nil {
		sess.Stop()
		return game.Delta{}, AsActionError(err)
	}
	if rm.Game != nil {
		rm.Game.Stop()
	}
	rm.Game = sess
	rm.Rules = rules
	for _, m := range rm.Members {
		m.IsReady = false
	}
	d.log.WithField("room", rm.Code).Infof("Game %s started with %d players", sess.ID, len(rm.Members))
	d.publishState(rm, delta)
	return delta, nil
}

// onTurnTimeout routes a session's turn timer back through the room lane. A
// fire for a replaced session or an already played turn is dropped.
func (d *Dispatcher) onTurnTimeout(rm *room.Room, sess *game.Session) func(seq int) {
	return func(seq int) {
		rm.Mu.Lock()
		defer rm.Mu.Unlock()
		if rm.Closed() || rm.Game != sess {
			return
		}
		delta, ok := sess.HandleTimeout(seq)
		if !ok {
			return
		}
		d.publishState(rm, delta)
	}
}

func (d *Dispatcher) publishState(rm *room.Room, delta game.Delta) {
	views := make(map[uuid.UUID]game.ObfGameState, len(rm.Game.Players))
	for _, p := range rm.Game.Players {
		views[p.ID] = rm.Game.View(p.ID)
	}
	d.out.Publish(StateUpdated{Code: rm.Code, Delta: delta, Views: views})
}
