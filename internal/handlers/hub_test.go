package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/dispatch"
	"github.com/jason-s-yu/trickroom/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietHub() *Hub {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return NewHub(logrus.NewEntry(l))
}

func nextFrame(t *testing.T, c *client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.out:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func TestHubRoutesRejectionsToActorOnly(t *testing.T) {
	h := quietHub()
	a, b := uuid.New(), uuid.New()
	ca := h.Register("ROOM01", a)
	cb := h.Register("ROOM01", b)

	require.NoError(t, h.Deliver(context.Background(), dispatch.ActionRejected{
		Code:     "ROOM01",
		PlayerID: a,
		Action:   game.ActionPlay,
		Error:    dispatch.ActionError{Code: dispatch.CodeNotYourTurn, Message: "wait"},
	}))
	assert.Equal(t, string(dispatch.KindActionRejected), nextFrame(t, ca)["type"])
	assert.Empty(t, cb.out)
}

func TestHubAttachesPrivateViews(t *testing.T) {
	h := quietHub()
	a, b := uuid.New(), uuid.New()
	ca := h.Register("ROOM01", a)
	cb := h.Register("ROOM01", b)

	ev := dispatch.StateUpdated{
		Code: "ROOM01",
		Views: map[uuid.UUID]game.ObfGameState{
			a: {RoomCode: "ROOM01", Round: 1},
			b: {RoomCode: "ROOM01", Round: 2},
		},
	}
	require.NoError(t, h.Deliver(context.Background(), ev))

	stateOf := func(c *client) map[string]interface{} {
		return nextFrame(t, c)["payload"].(map[string]interface{})["state"].(map[string]interface{})
	}
	assert.Equal(t, float64(1), stateOf(ca)["round"])
	assert.Equal(t, float64(2), stateOf(cb)["round"])
}

func TestHubReplacesOlderSocket(t *testing.T) {
	h := quietHub()
	p := uuid.New()
	old := h.Register("ROOM01", p)
	cur := h.Register("ROOM01", p)

	select {
	case <-old.closing:
	default:
		t.Fatal("older socket was not kicked")
	}
	assert.False(t, h.Unregister("ROOM01", old), "a replaced socket does not own presence")
	assert.Equal(t, 1, h.Connected("ROOM01"))
	assert.True(t, h.Unregister("ROOM01", cur))
	assert.Zero(t, h.Connected("ROOM01"))
}

func TestHubClosesRoom(t *testing.T) {
	h := quietHub()
	c := h.Register("ROOM01", uuid.New())
	require.NoError(t, h.Deliver(context.Background(), dispatch.RoomClosed{Code: "ROOM01", Reason: "empty"}))

	assert.Equal(t, string(dispatch.KindRoomClosed), nextFrame(t, c)["type"])
	select {
	case <-c.closing:
	default:
		t.Fatal("socket was not kicked")
	}
	assert.Equal(t, RoomClosedError, c.code)
	assert.Zero(t, h.Connected("ROOM01"))
}
