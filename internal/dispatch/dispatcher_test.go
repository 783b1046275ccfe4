package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/deck"
	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/jason-s-yu/trickroom/internal/models"
	"github.com/jason-s-yu/trickroom/internal/room"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSink collects delivered events instead of sending them anywhere.
type mockSink struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) Deliver(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockSink) ofKind(kind EventKind) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (m *mockSink) waitFor(t *testing.T, kind EventKind, n int) []Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(m.ofKind(kind)) >= n }, 2*time.Second, 5*time.Millisecond,
		"expected %d %s events", n, kind)
	return m.ofKind(kind)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return logrus.NewEntry(l)
}

// setupDispatcher wires a dispatcher to a running outbox with a mock sink.
func setupDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *mockSink) {
	t.Helper()
	sink := &mockSink{}
	out := NewOutbox(256, quietLogger(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = out.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	reg := room.NewRegistry(room.WithLogger(quietLogger()))
	opts = append([]Option{WithLogger(quietLogger()), WithSessionOptions(game.WithSeed(11))}, opts...)
	return New(reg, out, opts...), sink
}

func newPlayer() models.Identity {
	return models.Identity{ID: uuid.New()}
}

// openRoom creates a room and seats n players including the host.
func openRoom(t *testing.T, d *Dispatcher, n int) (string, []models.Identity) {
	t.Helper()
	players := []models.Identity{newPlayer()}
	created, err := d.CreateRoom(players[0])
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		p := newPlayer()
		require.NoError(t, d.JoinRoom(created.Code, p))
		players = append(players, p)
	}
	return created.Code, players
}

func noTimer() map[string]interface{} {
	return map[string]interface{}{"turnTimeoutSec": float64(0)}
}

func TestEndToEndRoomLifecycle(t *testing.T) {
	d, sink := setupDispatcher(t)

	host := newPlayer()
	created, err := d.CreateRoom(host)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(created.Code), 4)
	require.Len(t, created.Info.Members, 1)
	assert.True(t, created.Info.Members[0].IsHost)
	assert.Equal(t, host.ID, created.Info.Members[0].ID)

	players := []models.Identity{host}
	for i := 0; i < 3; i++ {
		p := newPlayer()
		require.NoError(t, d.JoinRoom(created.Code, p))
		players = append(players, p)
	}
	rm, ok := d.Registry().GetRoom(created.Code)
	require.True(t, ok)
	assert.Len(t, rm.Members, 4)

	for i := 5; i <= 9; i++ {
		err := d.JoinRoom(created.Code, newPlayer())
		if i <= 8 {
			require.NoError(t, err, "player %d should fit", i)
		} else {
			assert.ErrorIs(t, err, room.ErrRoomFull)
			assert.Equal(t, CodeRoomFull, AsActionError(err).Code)
		}
	}
	assert.Len(t, rm.Members, 8)

	delta, aerr := d.HandleAction(created.Code, host.ID, game.Action{Kind: game.ActionStart, Rules: noTimer()})
	require.Nil(t, aerr)
	require.Len(t, delta.Steps, 3)
	assert.Equal(t, game.PhaseDealerSelection, delta.Steps[0].Phase)
	assert.Equal(t, game.PhaseDealing, delta.Steps[1].Phase)
	assert.Equal(t, game.PhasePlaying, delta.Steps[2].Phase)
	for _, st := range delta.Steps {
		assert.NotEqual(t, uuid.Nil, st.CurrentPlayerID, "one current player at every step")
	}

	current := 0
	for _, p := range rm.Game.Players {
		if p.IsCurrent {
			current++
		}
	}
	assert.Equal(t, 1, current)

	sink.waitFor(t, KindRoomCreated, 1)
	sink.waitFor(t, KindPlayerJoined, 7)
	updates := sink.waitFor(t, KindStateUpdated, 1)
	su := updates[0].(StateUpdated)
	assert.Equal(t, created.Code, su.Code)
	assert.Len(t, su.Views, 8)
	assert.Empty(t, sink.ofKind(KindActionRejected))
}

func TestHandleActionErrors(t *testing.T) {
	d, sink := setupDispatcher(t)
	code, players := openRoom(t, d, 2)

	_, aerr := d.HandleAction("ZZZZZZ", players[0].ID, game.Action{Kind: game.ActionPlay})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeInvalidRoom, aerr.Code)

	_, aerr = d.HandleAction(code, players[0].ID, game.Action{Kind: game.ActionPlay})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeGameNotStarted, aerr.Code)

	_, aerr = d.HandleAction(code, uuid.New(), game.Action{Kind: game.ActionPlay})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeNotYourTurn, aerr.Code)

	_, aerr = d.HandleAction(code, players[1].ID, game.Action{Kind: game.ActionStart})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeNotYourTurn, aerr.Code, "only the host starts")

	_, aerr = d.HandleAction(code, players[0].ID, game.Action{Kind: "action_fold"})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeIllegalPlay, aerr.Code)

	rejected := sink.waitFor(t, KindActionRejected, 4)
	for _, ev := range rejected {
		assert.NotEqual(t, uuid.Nil, ev.Recipient(), "rejections go to the actor only")
	}
}

func TestStartRequiresTwoPlayersAndReadiness(t *testing.T) {
	d, _ := setupDispatcher(t)
	code, players := openRoom(t, d, 1)

	_, aerr := d.HandleAction(code, players[0].ID, game.Action{Kind: game.ActionStart})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeIllegalPlay, aerr.Code)

	guest := newPlayer()
	require.NoError(t, d.JoinRoom(code, guest))

	rules := noTimer()
	rules["requireAllReady"] = true
	_, aerr = d.HandleAction(code, players[0].ID, game.Action{Kind: game.ActionStart, Rules: rules})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeIllegalPlay, aerr.Code)

	delta, aerr := d.HandleAction(code, guest.ID, game.Action{Kind: game.ActionReady})
	require.Nil(t, aerr)
	assert.Equal(t, guest.ID, delta.ReadyPlayerID)
	rm, _ := d.Registry().GetRoom(code)
	rm.Mu.Lock()
	m, ok := rm.Member(guest.ID)
	require.True(t, ok)
	assert.True(t, m.IsReady)
	rm.Mu.Unlock()
	delta, aerr = d.HandleAction(code, guest.ID, game.Action{Kind: game.ActionReady})
	require.Nil(t, aerr)
	assert.True(t, delta.Duplicate)

	_, aerr = d.HandleAction(code, players[0].ID, game.Action{Kind: game.ActionStart, Rules: rules})
	require.Nil(t, aerr)

	delta, aerr = d.HandleAction(code, players[0].ID, game.Action{Kind: game.ActionStart})
	require.Nil(t, aerr)
	assert.True(t, delta.Duplicate, "a second start is a no-op")

	err := d.JoinRoom(code, newPlayer())
	assert.ErrorIs(t, err, room.ErrGameInProgress)
}

func TestPlayThroughDispatcher(t *testing.T) {
	d, sink := setupDispatcher(t)
	code, _ := openRoom(t, d, 3)
	rm, _ := d.Registry().GetRoom(code)
	host := rm.Members[0].ID

	start, aerr := d.HandleAction(code, host, game.Action{Kind: game.ActionStart, Rules: noTimer()})
	require.Nil(t, aerr)
	leader := start.CurrentPlayerID

	var other uuid.UUID
	for _, m := range rm.Members {
		if m.ID != leader {
			other = m.ID
			break
		}
	}
	view, ok := d.View(code, other)
	require.True(t, ok)
	var otherHand []string
	for _, ps := range view.Players {
		if ps.PlayerID == other {
			otherHand = ps.Hand
		}
	}
	require.NotEmpty(t, otherHand)
	card, err := deck.ParseCard(otherHand[0])
	require.NoError(t, err)

	_, aerr = d.HandleAction(code, other, game.Action{Kind: game.ActionPlay, Seq: 0, Cards: []deck.Card{card}})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeNotYourTurn, aerr.Code)

	leaderView, _ := d.View(code, leader)
	var leaderHand []string
	for _, ps := range leaderView.Players {
		if ps.PlayerID == leader {
			leaderHand = ps.Hand
		}
	}
	lead, err := deck.ParseCard(leaderHand[0])
	require.NoError(t, err)

	_, aerr = d.HandleAction(code, leader, game.Action{Kind: game.ActionPlay, Seq: 0, Cards: []deck.Card{card}})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeIllegalPlay, aerr.Code, "card belongs to someone else")

	action := game.Action{Kind: game.ActionPlay, Seq: 0, Cards: []deck.Card{lead}}
	delta, aerr := d.HandleAction(code, leader, action)
	require.Nil(t, aerr)
	assert.Equal(t, 1, delta.Seq)
	assert.False(t, delta.Duplicate)

	delta, aerr = d.HandleAction(code, leader, action)
	require.Nil(t, aerr)
	assert.True(t, delta.Duplicate)
	assert.Len(t, rm.Game.CurrentTrick.Plays, 1, "redelivery is not applied twice")

	// one StateUpdated for start and one for the single applied play
	sink.waitFor(t, KindStateUpdated, 2)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, sink.ofKind(KindStateUpdated), 2)
}

func TestTurnTimeoutThroughLane(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mockClock := quartz.NewMock(t)
	d, sink := setupDispatcher(t, WithSessionOptions(game.WithClock(mockClock)))
	code, players := openRoom(t, d, 2)

	start, aerr := d.HandleAction(code, players[0].ID, game.Action{
		Kind:  game.ActionStart,
		Rules: map[string]interface{}{"turnTimeoutSec": float64(5)},
	})
	require.Nil(t, aerr)
	d.Disconnect(code, start.CurrentPlayerID)

	mockClock.Advance(5 * time.Second).MustWait(ctx)

	updates := sink.waitFor(t, KindStateUpdated, 2)
	su := updates[1].(StateUpdated)
	assert.True(t, su.Delta.Timeout)
	require.Len(t, su.Delta.Plays, 1)
	assert.Equal(t, start.CurrentPlayerID, su.Delta.Plays[0].PlayerID)
	assert.True(t, su.Delta.Plays[0].Auto)
	sink.waitFor(t, KindPlayerLeft, 1)
}

func TestLeaveRoomEvents(t *testing.T) {
	d, sink := setupDispatcher(t)
	code, players := openRoom(t, d, 2)

	require.NoError(t, d.LeaveRoom(code, players[0].ID))
	left := sink.waitFor(t, KindPlayerLeft, 1)[0].(PlayerLeft)
	assert.Equal(t, players[0].ID, left.PlayerID)
	assert.Equal(t, players[1].ID, left.NewHostID)

	require.NoError(t, d.LeaveRoom(code, players[1].ID))
	closed := sink.waitFor(t, KindRoomClosed, 1)[0].(RoomClosed)
	assert.Equal(t, code, closed.Code)
	assert.Zero(t, d.Registry().Len())

	assert.ErrorIs(t, d.LeaveRoom(code, players[1].ID), room.ErrRoomNotFound)
}

func TestDisconnectOfLastUnreadyPlayerDealsNextRound(t *testing.T) {
	d, sink := setupDispatcher(t)
	code, players := openRoom(t, d, 3)
	rm, _ := d.Registry().GetRoom(code)

	_, aerr := d.HandleAction(code, players[0].ID, game.Action{
		Kind: game.ActionStart,
		Rules: map[string]interface{}{
			"turnTimeoutSec": float64(0),
			"autoNextRound":  false,
			"handSize":       float64(1),
		},
	})
	require.Nil(t, aerr)

	for i := 0; i < 3; i++ {
		rm.Mu.Lock()
		cur, _ := rm.Game.Current()
		a := game.Action{Kind: game.ActionPlay, Seq: rm.Game.Seq, Cards: cur.Hand[:1]}
		rm.Mu.Unlock()
		_, aerr = d.HandleAction(code, cur.ID, a)
		require.Nil(t, aerr)
	}
	rm.Mu.Lock()
	require.Equal(t, game.PhaseRoundEnd, rm.Game.Phase)
	rm.Mu.Unlock()

	for _, p := range players[:2] {
		_, aerr = d.HandleAction(code, p.ID, game.Action{Kind: game.ActionReady})
		require.Nil(t, aerr)
	}
	d.Disconnect(code, players[2].ID)

	rm.Mu.Lock()
	assert.Equal(t, game.PhasePlaying, rm.Game.Phase)
	assert.Equal(t, 2, rm.Game.Round)
	rm.Mu.Unlock()
	require.Eventually(t, func() bool {
		for _, ev := range sink.ofKind(KindStateUpdated) {
			if su := ev.(StateUpdated); su.Delta.Round == 2 && su.Delta.Phase == game.PhasePlaying {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRoomsAreIndependent(t *testing.T) {
	d, _ := setupDispatcher(t)
	codeA, playersA := openRoom(t, d, 2)
	codeB, playersB := openRoom(t, d, 2)

	_, aerr := d.HandleAction(codeA, playersA[0].ID, game.Action{Kind: game.ActionStart, Rules: noTimer()})
	require.Nil(t, aerr)

	_, aerr = d.HandleAction(codeB, playersB[0].ID, game.Action{Kind: game.ActionPlay})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeGameNotStarted, aerr.Code)

	_, aerr = d.HandleAction(codeB, playersA[0].ID, game.Action{Kind: game.ActionStart})
	require.NotNil(t, aerr)
	assert.Equal(t, CodeNotYourTurn, aerr.Code, "membership is per room")
}

func TestEnvelopeJSON(t *testing.T) {
	player := uuid.New()
	ev := ActionRejected{
		Code:     "ABCDEF",
		PlayerID: player,
		Action:   game.ActionPlay,
		Error:    ActionError{Code: CodeIllegalPlay, Message: "cards not in hand"},
	}
	raw, err := Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "action_rejected", decoded["type"])
	assert.Equal(t, "ABCDEF", decoded["room"])
	payload := decoded["payload"].(map[string]interface{})
	assert.Equal(t, player.String(), payload["playerId"])
	assert.Equal(t, "illegal_play", payload["error"].(map[string]interface{})["code"])

	su := StateUpdated{
		Code:  "ABCDEF",
		Delta: game.Delta{Seq: 3},
		Views: map[uuid.UUID]game.ObfGameState{player: {Seq: 3, RoomCode: "ABCDEF"}},
	}
	raw, err = json.Marshal(EnvelopeFor(su, player))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":`)

	raw, err = json.Marshal(EnvelopeFor(su, uuid.New()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"state":`, "other players never see a private snapshot")
}

func TestAsActionError(t *testing.T) {
	assert.Nil(t, AsActionError(nil))
	assert.Equal(t, CodeRoomNotFound, AsActionError(room.ErrRoomNotFound).Code)
	assert.Equal(t, CodeNotYourTurn, AsActionError(game.ErrNotYourTurn).Code)
	assert.Equal(t, CodeIllegalPlay, AsActionError(game.ErrWrongPhase).Code)
	ae := newActionError(CodeGameNotStarted, "x")
	assert.Same(t, ae, AsActionError(ae))
}
